package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Genflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobReady  MessageType = "job.ready"
	MessageTypeJobResult MessageType = "job.result"
	MessageTypeJobDead   MessageType = "job.dead"
	MessageTypeEvent     MessageType = "domain.event"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт конверт с новым ID и текущим временем.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// JobResultPayload — результат попытки вместе с контекстом job.
type JobResultPayload struct {
	JobID        uuid.UUID         `json:"job_id"`
	Type         domain.JobType    `json:"type"`
	GenerationID uuid.UUID         `json:"generation_id"`
	StepID       *uuid.UUID        `json:"step_id,omitempty"`
	Status       domain.JobStatus  `json:"status"`
	Result       *domain.JobResult `json:"result"`
}

// DeadJobPayload — job с исчерпанными повторами.
type DeadJobPayload struct {
	Job    *domain.Job       `json:"job"`
	Result *domain.JobResult `json:"result,omitempty"`
	Reason string            `json:"reason"`
}

// EventPayload — доменное событие.
type EventPayload struct {
	Name  string `json:"name"`
	Event any    `json:"event"`
}

// publishOptions — параметры AMQP-публикации.
type publishOptions struct {
	expiration time.Duration
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	return p.publish(ctx, exchange, routingKey, msg, publishOptions{})
}

func (p *Publisher) publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, opts publishOptions) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	}
	if opts.expiration > 0 {
		// TTL сообщения в миллисекундах (строкой, как требует AMQP)
		publishing.Expiration = strconv.FormatInt(opts.expiration.Milliseconds(), 10)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			publishing,
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishJob публикует job в jobs.ready.
// Потребитель: genflow-worker.
func (p *Publisher) PublishJob(ctx context.Context, job *domain.Job) error {
	return p.Publish(ctx, ExchangeJobs, RoutingKeyReady, NewMessage(MessageTypeJobReady, job))
}

// PublishJobRetry публикует job в jobs.retry с TTL = delay.
// По истечении TTL RabbitMQ вернёт его в jobs.ready.
func (p *Publisher) PublishJobRetry(ctx context.Context, job *domain.Job, delay time.Duration) error {
	if delay <= 0 {
		return p.PublishJob(ctx, job)
	}
	msg := NewMessage(MessageTypeJobReady, job)
	return p.publish(ctx, ExchangeJobs, RoutingKeyRetry, msg, publishOptions{expiration: delay})
}

// PublishJobResult публикует результат попытки в jobs.results.
// Потребитель: продюсер job.
func (p *Publisher) PublishJobResult(ctx context.Context, job *domain.Job, result *domain.JobResult) error {
	payload := JobResultPayload{
		JobID:        job.ID,
		Type:         job.Type,
		GenerationID: job.GenerationID,
		StepID:       job.StepID,
		Status:       job.Status,
		Result:       result,
	}
	return p.Publish(ctx, ExchangeJobs, RoutingKeyResult, NewMessage(MessageTypeJobResult, payload))
}

// PublishDeadJob публикует job в dlq.jobs.
func (p *Publisher) PublishDeadJob(ctx context.Context, job *domain.Job, result *domain.JobResult, reason string) error {
	payload := DeadJobPayload{Job: job, Result: result, Reason: reason}
	return p.Publish(ctx, ExchangeDLQ, RoutingKeyDLQJobs, NewMessage(MessageTypeJobDead, payload))
}

// PublishEvent публикует доменное событие в genflow.events.
// Routing key — имя события.
func (p *Publisher) PublishEvent(ctx context.Context, name string, event any) error {
	msg := NewMessage(MessageTypeEvent, EventPayload{Name: name, Event: event})
	return p.Publish(ctx, ExchangeEvents, RoutingKey(name), msg)
}
