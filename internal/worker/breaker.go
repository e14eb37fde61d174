package worker

import (
	"sync"
	"time"

	"github.com/shaiso/Genflow/internal/telemetry"
)

// Значения по умолчанию для circuit breaker.
const (
	defaultFailureThreshold = 5
	defaultBreakerWindow    = 60 * time.Second
)

// CircuitBreaker — счётчик неудач в скользящем окне времени.
//
// Открывается, когда число неудач в окне достигает порога, и
// закрывается сам, как только все неудачи выпадают из окна.
// Успехи учитываются в статистике, но открытый breaker не закрывают.
//
// Один экземпляр разделяется всеми вызовами RetryableRunner,
// все методы защищены мьютексом.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	window    time.Duration
	now       func() time.Time

	successes []time.Time
	failures  []time.Time
	open      bool
}

// BreakerOption — опция CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock задаёт источник времени (для тестов).
func WithBreakerClock(clock func() time.Time) BreakerOption {
	return func(b *CircuitBreaker) {
		if clock != nil {
			b.now = clock
		}
	}
}

// NewCircuitBreaker создаёт breaker с порогом неудач и длиной окна.
// Неположительные значения заменяются на 5 и 60s.
func NewCircuitBreaker(failureThreshold int, windowSize time.Duration, opts ...BreakerOption) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	if windowSize <= 0 {
		windowSize = defaultBreakerWindow
	}

	b := &CircuitBreaker{
		threshold: failureThreshold,
		window:    windowSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RecordSuccess записывает успешную попытку.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.successes = append(b.successes, now)
	b.prune(now)
}

// RecordFailure записывает неудачную попытку и открывает breaker,
// если неудач в окне не меньше порога.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.failures = append(b.failures, now)
	b.prune(now)

	if len(b.failures) >= b.threshold {
		b.setOpen(true)
	}
}

// IsOpen сообщает, блокирует ли breaker новые попытки.
// Открытый breaker закрывается, когда окно неудач опустело.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(b.now())
	if b.open && len(b.failures) == 0 {
		b.setOpen(false)
	}
	return b.open
}

// BreakerStats — снимок состояния breaker.
type BreakerStats struct {
	Open      bool          `json:"open"`
	Failures  int           `json:"failures"`
	Successes int           `json:"successes"`
	Threshold int           `json:"threshold"`
	Window    time.Duration `json:"window"`
}

// Stats возвращает снимок состояния (с учётом устаревших записей).
func (b *CircuitBreaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(b.now())
	if b.open && len(b.failures) == 0 {
		b.setOpen(false)
	}
	return BreakerStats{
		Open:      b.open,
		Failures:  len(b.failures),
		Successes: len(b.successes),
		Threshold: b.threshold,
		Window:    b.window,
	}
}

// prune удаляет записи старше now - window из обоих окон.
// Вызывается под мьютексом.
func (b *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	b.successes = dropBefore(b.successes, cutoff)
	b.failures = dropBefore(b.failures, cutoff)
}

func (b *CircuitBreaker) setOpen(open bool) {
	if b.open == open {
		return
	}
	b.open = open
	if open {
		telemetry.CircuitBreakerOpen.Set(1)
	} else {
		telemetry.CircuitBreakerOpen.Set(0)
	}
}

// dropBefore отбрасывает отметки не новее cutoff.
// Отметки добавляются по возрастанию, поэтому достаточно найти первую свежую.
func dropBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}
