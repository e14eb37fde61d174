package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/Genflow/internal/telemetry"
)

// Handler — подписчик на доменные события.
type Handler func(ctx context.Context, event Event) error

// SubscriptionID — идентификатор подписки для Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Dispatcher — синхронный in-process publish/subscribe.
//
// Publish вызывает подписчиков по очереди в порядке подписки.
// Ошибки и panic подписчика логируются и не мешают остальным.
// Безопасен для конкурентных Publish/Subscribe/Unsubscribe.
//
// Создаётся явно при старте сервиса и передаётся зависимостям.
type Dispatcher struct {
	mu     sync.RWMutex
	nextID SubscriptionID
	subs   []subscription
	logger *slog.Logger
}

// NewDispatcher создаёт Dispatcher. logger == nil — slog.Default().
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// Subscribe добавляет подписчика в конец списка.
func (d *Dispatcher) Subscribe(fn Handler) SubscriptionID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.subs = append(d.subs, subscription{id: d.nextID, handler: fn})
	return d.nextID
}

// Unsubscribe удаляет подписку. Возвращает false, если её не было.
func (d *Dispatcher) Unsubscribe(id SubscriptionID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, s := range d.subs {
		if s.id == id {
			subs := make([]subscription, 0, len(d.subs)-1)
			subs = append(subs, d.subs[:i]...)
			d.subs = append(subs, d.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len возвращает количество подписчиков.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Publish доставляет событие всем подписчикам.
// Подписчики вызываются вне блокировки и могут сами подписываться/отписываться.
func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	d.mu.RLock()
	subs := d.subs
	d.mu.RUnlock()

	telemetry.DomainEventsTotal.WithLabelValues(event.EventName()).Inc()

	for _, s := range subs {
		if err := d.deliver(ctx, s, event); err != nil {
			telemetry.SubscriberErrors.Inc()
			d.logger.Error("event subscriber failed",
				"event", event.EventName(),
				"subscription", uint64(s.id),
				"error", err,
			)
		}
	}
}

// deliver вызывает подписчика, превращая panic в ошибку.
func (d *Dispatcher) deliver(ctx context.Context, s subscription, event Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in subscriber: %v", p)
		}
	}()
	return s.handler(ctx, event)
}
