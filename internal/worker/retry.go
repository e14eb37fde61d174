package worker

import (
	"time"

	"github.com/shaiso/Genflow/internal/domain"
)

// Стратегии backoff.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Значения по умолчанию для задержки повторов.
const (
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second
)

// RetryPolicy решает, нужна ли ещё одна попытка job.
//
// ShouldRetry — чистая функция от счётчиков job. Delay — подсказка
// транспорту, через сколько доставить job повторно; сам RetryPolicy
// ничего не ждёт и ничего не ставит в очередь.
type RetryPolicy struct {
	// Backoff — "fixed" или "exponential" (default: exponential).
	Backoff string

	// InitialDelay — задержка перед первым повтором (default: 1s).
	InitialDelay time.Duration

	// MaxDelay — верхняя граница задержки (default: 30s).
	MaxDelay time.Duration
}

// DefaultRetryPolicy возвращает exponential backoff 1s..30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Backoff:      BackoffExponential,
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
	}
}

// ShouldRetry возвращает true, пока job.Retries < job.MaxRetries.
// Ошибка пока не учитывается.
func (p RetryPolicy) ShouldRetry(job *domain.Job, _ error) bool {
	return job.Retries < job.MaxRetries
}

// Delay вычисляет задержку перед повтором номер attempt (с 1).
//
//   - "exponential": delay = initialDelay * 2^(attempt-1), не больше maxDelay
//   - "fixed" или неизвестная стратегия: delay = initialDelay
func (p RetryPolicy) Delay(attempt int) time.Duration {
	initialDelay := p.InitialDelay
	if initialDelay <= 0 {
		initialDelay = defaultInitialDelay
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	var delay time.Duration
	switch p.Backoff {
	case BackoffFixed:
		delay = initialDelay
	default:
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
