package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы выполнения job для метки outcome.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRetry     = "retry"
	OutcomeFinal     = "final"
	OutcomeRejected  = "rejected"
)

// Метрики регистрируются в prometheus.DefaultRegisterer
// и отдаются через promhttp.Handler() на /metrics.
var (
	// JobsTotal — количество попыток выполнения по типу job и исходу.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genflow_jobs_total",
		Help: "Job attempts by type and outcome",
	}, []string{"type", "outcome"})

	// JobDuration — длительность Worker.Execute по типу job.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genflow_job_duration_seconds",
		Help:    "Job execution duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"type"})

	// CircuitBreakerOpen — 1, если circuit breaker открыт.
	CircuitBreakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "genflow_circuit_breaker_open",
		Help: "Whether the circuit breaker is open (1) or closed (0)",
	})

	// CircuitBreakerRejections — job, отклонённые открытым circuit breaker.
	CircuitBreakerRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genflow_circuit_breaker_rejections_total",
		Help: "Job attempts rejected by an open circuit breaker",
	})

	// DomainEventsTotal — опубликованные доменные события по типу.
	DomainEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genflow_domain_events_total",
		Help: "Domain events published by type",
	}, []string{"event"})

	// HTTPRequestDuration — длительность запросов admin API
	// по шаблону маршрута и коду ответа.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genflow_http_request_duration_seconds",
		Help:    "Admin API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})

	// SubscriberErrors — ошибки и паники подписчиков событий.
	SubscriberErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genflow_subscriber_errors_total",
		Help: "Domain event subscriber failures",
	})
)
