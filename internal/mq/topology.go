package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeJobs   Exchange = "genflow.jobs"
	ExchangeEvents Exchange = "genflow.events"
	ExchangeDLQ    Exchange = "genflow.dlq"
)

// Queues — имена очередей.
const (
	QueueJobsReady   Queue = "jobs.ready"
	QueueJobsRetry   Queue = "jobs.retry"
	QueueJobsResults Queue = "jobs.results"
	QueueDLQJobs     Queue = "dlq.jobs"
)

// Routing keys.
const (
	RoutingKeyReady   RoutingKey = "ready"
	RoutingKeyRetry   RoutingKey = "retry"
	RoutingKeyResult  RoutingKey = "result"
	RoutingKeyDLQJobs RoutingKey = "jobs"
)

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeJobs, amqp.ExchangeDirect},
		// События маршрутизируются по имени (generation.updated, step.updated)
		{ExchangeEvents, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// jobs.ready — невалидные сообщения (nack без requeue) уходят в DLQ
		{QueueJobsReady, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQJobs),
		}},

		// jobs.retry — без consumer'ов: по истечении TTL сообщения
		// возвращаются в jobs.ready
		{QueueJobsRetry, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeJobs),
			"x-dead-letter-routing-key": string(RoutingKeyReady),
		}},

		// jobs.results — результаты попыток для продюсера
		{QueueJobsResults, nil},

		// dlq.jobs — job с исчерпанными повторами, ручной разбор
		{QueueDLQJobs, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueJobsReady, RoutingKeyReady, ExchangeJobs},
		{QueueJobsRetry, RoutingKeyRetry, ExchangeJobs},
		{QueueJobsResults, RoutingKeyResult, ExchangeJobs},
		{QueueDLQJobs, RoutingKeyDLQJobs, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Genflow RabbitMQ Topology:

    genflow.jobs (direct)
    ├── jobs.ready [routing: ready]
    │       Consumer: genflow-worker
    │       DLQ: dlq.jobs
    ├── jobs.retry [routing: retry]
    │       TTL per message, dead-letters back to jobs.ready
    └── jobs.results [routing: result]
            Consumer: producer

    genflow.events (topic)
    └── generation.updated, step.updated
            Consumers bind their own queues

    genflow.dlq (direct)
    └── dlq.jobs [routing: jobs]
            Manual processing
  `
}
