package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Genflow/internal/domain"
)

// --- Fakes ---

// stubWorker — воркер с настраиваемым поведением.
type stubWorker struct {
	types  []domain.JobType
	result func(job *domain.Job) (*domain.JobResult, error)
	calls  int
}

func (w *stubWorker) CanHandle(job *domain.Job) bool {
	for _, t := range w.types {
		if t == job.Type {
			return true
		}
	}
	return false
}

func (w *stubWorker) Execute(_ context.Context, job *domain.Job) (*domain.JobResult, error) {
	w.calls++
	return w.result(job)
}

func succeeding(types ...domain.JobType) *stubWorker {
	return &stubWorker{types: types, result: func(job *domain.Job) (*domain.JobResult, error) {
		return domain.NewSuccessResult(job.ID, map[string]any{"ok": true}), nil
	}}
}

func failing(types ...domain.JobType) *stubWorker {
	return &stubWorker{types: types, result: func(job *domain.Job) (*domain.JobResult, error) {
		return domain.NewFailureResult(job.ID, domain.ErrorCodeExecution, "always fails"), nil
	}}
}

// testClock — ручные часы.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestJob(t *testing.T, jobType domain.JobType, maxRetries int) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(jobType, uuid.New(), nil, map[string]any{"text": "hello"}, maxRetries)
	require.NoError(t, err)
	return job
}

// --- Registry Tests ---

func TestRegistry_FirstMatchWins(t *testing.T) {
	first := succeeding(domain.JobTypeRefineText)
	second := succeeding(domain.JobTypeRefineText, domain.JobTypeFixFormat)
	r := NewRegistry(first, second)

	got, err := r.Resolve(newTestJob(t, domain.JobTypeRefineText, 1))
	require.NoError(t, err)
	assert.Same(t, first, got)

	got, err = r.Resolve(newTestJob(t, domain.JobTypeFixFormat, 1))
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestRegistry_RegisterIdempotent(t *testing.T) {
	w := succeeding(domain.JobTypeFixFormat)
	r := NewRegistry()
	r.Register(w)
	r.Register(w)
	r.Register(nil)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_NotFound(t *testing.T) {
	r := NewRegistry(succeeding(domain.JobTypeFixFormat))

	_, err := r.Resolve(newTestJob(t, domain.JobTypeSolveTasks, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkerNotFound)

	var nf *WorkerNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, domain.JobTypeSolveTasks, nf.JobType)
	assert.Contains(t, err.Error(), "solve_tasks")
}

// --- Runner Tests ---

func TestRunner_Success_StampsTimestamps(t *testing.T) {
	clock := newTestClock()
	runner := NewRunner(RunnerConfig{Registry: NewRegistry(succeeding(domain.JobTypeFixFormat)), Clock: clock.Now})
	job := newTestJob(t, domain.JobTypeFixFormat, 1)

	result := runner.Run(context.Background(), job)

	require.True(t, result.Success)
	assert.Equal(t, job.ID, result.JobID)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.FinishedAt)
	assert.Equal(t, clock.Now(), *job.StartedAt)
	assert.NoError(t, job.Validate())
}

func TestRunner_KeepsStartedAtOfRunningJob(t *testing.T) {
	clock := newTestClock()
	runner := NewRunner(RunnerConfig{Registry: NewRegistry(succeeding(domain.JobTypeFixFormat)), Clock: clock.Now})
	job := newTestJob(t, domain.JobTypeFixFormat, 1)

	started := clock.Now().Add(-time.Minute)
	job.Status = domain.JobStatusRunning
	job.StartedAt = &started

	runner.Run(context.Background(), job)
	assert.Equal(t, started, *job.StartedAt)
}

func TestRunner_WorkerNotFound(t *testing.T) {
	runner := NewRunner(RunnerConfig{Registry: NewRegistry()})
	job := newTestJob(t, domain.JobTypeStructureText, 1)

	result := runner.Run(context.Background(), job)

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrorCodeWorkerNotFound, result.ErrorCode())
	assert.Contains(t, result.Error.Message, "structure_text")
	assert.Equal(t, "*worker.WorkerNotFoundError", result.Error.Details["error_type"])
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.NoError(t, result.Validate())
}

func TestRunner_ExecuteError(t *testing.T) {
	w := &stubWorker{types: []domain.JobType{domain.JobTypeRefineText}, result: func(*domain.Job) (*domain.JobResult, error) {
		return nil, errors.New("provider unavailable")
	}}
	runner := NewRunner(RunnerConfig{Registry: NewRegistry(w)})

	result := runner.Run(context.Background(), newTestJob(t, domain.JobTypeRefineText, 1))

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrorCodeExecution, result.ErrorCode())
	assert.Equal(t, "provider unavailable", result.Error.Message)
	assert.Equal(t, "*errors.errorString", result.Error.Details["error_type"])
}

func TestRunner_RecoversPanic(t *testing.T) {
	w := &stubWorker{types: []domain.JobType{domain.JobTypeRefineText}, result: func(*domain.Job) (*domain.JobResult, error) {
		panic("boom")
	}}
	runner := NewRunner(RunnerConfig{Registry: NewRegistry(w)})
	job := newTestJob(t, domain.JobTypeRefineText, 1)

	var result *domain.JobResult
	require.NotPanics(t, func() { result = runner.Run(context.Background(), job) })

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrorCodeExecution, result.ErrorCode())
	assert.Contains(t, result.Error.Message, "boom")
	assert.Equal(t, "panic", result.Error.Details["error_type"])
	assert.Equal(t, domain.JobStatusFailed, job.Status)
}

func TestRunner_InvalidWorkerResult(t *testing.T) {
	tests := []struct {
		name   string
		result func(job *domain.Job) *domain.JobResult
	}{
		{"nil result", func(*domain.Job) *domain.JobResult { return nil }},
		{"foreign job id", func(*domain.Job) *domain.JobResult {
			return domain.NewSuccessResult(uuid.New(), nil)
		}},
		{"success with error", func(job *domain.Job) *domain.JobResult {
			return &domain.JobResult{JobID: job.ID, Success: true, Output: map[string]any{}, Error: &domain.JobError{Code: "x"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &stubWorker{types: []domain.JobType{domain.JobTypeFixFormat}, result: func(job *domain.Job) (*domain.JobResult, error) {
				return tt.result(job), nil
			}}
			runner := NewRunner(RunnerConfig{Registry: NewRegistry(w)})
			job := newTestJob(t, domain.JobTypeFixFormat, 1)

			result := runner.Run(context.Background(), job)
			require.False(t, result.Success)
			assert.Equal(t, domain.ErrorCodeExecution, result.ErrorCode())
			assert.Equal(t, job.ID, result.JobID)
			assert.NoError(t, result.Validate())
		})
	}
}

func TestRunner_FillsEmptyJobID(t *testing.T) {
	w := &stubWorker{types: []domain.JobType{domain.JobTypeFixFormat}, result: func(*domain.Job) (*domain.JobResult, error) {
		return &domain.JobResult{Success: true, Output: map[string]any{}}, nil
	}}
	runner := NewRunner(RunnerConfig{Registry: NewRegistry(w)})
	job := newTestJob(t, domain.JobTypeFixFormat, 1)

	result := runner.Run(context.Background(), job)
	require.True(t, result.Success)
	assert.Equal(t, job.ID, result.JobID)
}

// --- RetryPolicy Tests ---

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := DefaultRetryPolicy()
	job := &domain.Job{MaxRetries: 2}

	for retries, want := range []bool{true, true, false} {
		job.Retries = retries
		assert.Equal(t, want, p.ShouldRetry(job, nil), "retries=%d", retries)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		attempt int
		want    time.Duration
	}{
		{"exponential 1", RetryPolicy{Backoff: BackoffExponential, InitialDelay: time.Second, MaxDelay: 10 * time.Second}, 1, time.Second},
		{"exponential 3", RetryPolicy{Backoff: BackoffExponential, InitialDelay: time.Second, MaxDelay: 10 * time.Second}, 3, 4 * time.Second},
		{"exponential capped", RetryPolicy{Backoff: BackoffExponential, InitialDelay: time.Second, MaxDelay: 10 * time.Second}, 10, 10 * time.Second},
		{"fixed", RetryPolicy{Backoff: BackoffFixed, InitialDelay: 2 * time.Second}, 5, 2 * time.Second},
		{"defaults", RetryPolicy{}, 2, 2 * time.Second},
		{"initial above max", RetryPolicy{Backoff: BackoffFixed, InitialDelay: time.Minute, MaxDelay: time.Second}, 1, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Delay(tt.attempt))
		})
	}
}

// --- CircuitBreaker Tests ---

func TestCircuitBreaker_OpensAndAutoCloses(t *testing.T) {
	clock := newTestClock()
	b := NewCircuitBreaker(3, 60*time.Second, WithBreakerClock(clock.Now))

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	clock.Advance(10 * time.Second)
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	// Первые две неудачи выпали из окна, третья ещё в окне
	clock.Advance(55 * time.Second)
	assert.True(t, b.IsOpen())

	clock.Advance(10 * time.Second)
	assert.False(t, b.IsOpen())
	assert.Equal(t, 0, b.Stats().Failures)
}

func TestCircuitBreaker_SuccessDoesNotClose(t *testing.T) {
	clock := newTestClock()
	b := NewCircuitBreaker(2, time.Minute, WithBreakerClock(clock.Now))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())

	stats := b.Stats()
	assert.Equal(t, 2, stats.Failures)
	assert.Equal(t, 1, stats.Successes)
	assert.True(t, stats.Open)
}

func TestCircuitBreaker_FailuresSpreadOutsideWindow(t *testing.T) {
	clock := newTestClock()
	b := NewCircuitBreaker(3, time.Minute, WithBreakerClock(clock.Now))

	for i := 0; i < 5; i++ {
		b.RecordFailure()
		clock.Advance(31 * time.Second)
	}
	assert.False(t, b.IsOpen())
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	stats := NewCircuitBreaker(0, 0).Stats()
	assert.Equal(t, defaultFailureThreshold, stats.Threshold)
	assert.Equal(t, defaultBreakerWindow, stats.Window)
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	b := NewCircuitBreaker(1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if (i+j)%2 == 0 {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
				b.IsOpen()
			}
		}(i)
	}
	wg.Wait()

	stats := b.Stats()
	assert.Equal(t, 1000, stats.Failures+stats.Successes)
}

// --- RetryableRunner Tests ---

func TestRetryableRunner_AlwaysFailingWorker(t *testing.T) {
	w := failing(domain.JobTypeRefineText)
	rr := NewRetryableRunner(RetryableConfig{
		Runner:  NewRunner(RunnerConfig{Registry: NewRegistry(w)}),
		Breaker: NewCircuitBreaker(100, time.Minute),
	})
	job := newTestJob(t, domain.JobTypeRefineText, 2)

	want := []struct {
		retry   bool
		final   bool
		retries int
	}{
		{true, false, 1},
		{true, false, 2},
		{false, true, 3},
	}

	for i, exp := range want {
		result := rr.Run(context.Background(), job)

		require.False(t, result.Success, "call %d", i+1)
		assert.Equal(t, exp.retry, result.Retry, "call %d", i+1)
		assert.Equal(t, exp.final, result.Final, "call %d", i+1)
		assert.Equal(t, exp.retries, result.Retries, "call %d", i+1)
		assert.Equal(t, 2, result.MaxRetries)
		assert.LessOrEqual(t, job.Retries, job.MaxRetries)

		if result.Retry {
			assert.Equal(t, domain.JobStatusRetry, job.Status)
			next, err := job.NextAttempt()
			require.NoError(t, err)
			job = next
		} else {
			assert.Equal(t, domain.JobStatusFailed, job.Status)
		}
	}
	assert.Equal(t, 3, w.calls)
}

func TestRetryableRunner_SuccessUnchanged(t *testing.T) {
	var called int
	rr := NewRetryableRunner(RetryableConfig{
		Runner: NewRunner(RunnerConfig{Registry: NewRegistry(succeeding(domain.JobTypeFixFormat))}),
		OnComplete: func(_ context.Context, _ *domain.Job, result *domain.JobResult) error {
			called++
			assert.True(t, result.Success)
			return nil
		},
	})

	result := rr.Run(context.Background(), newTestJob(t, domain.JobTypeFixFormat, 3))

	require.True(t, result.Success)
	assert.False(t, result.Retry)
	assert.False(t, result.Final)
	assert.Zero(t, result.Retries)
	assert.Equal(t, 1, called)
}

func TestRetryableRunner_CallbackErrorIsolated(t *testing.T) {
	rr := NewRetryableRunner(RetryableConfig{
		Runner: NewRunner(RunnerConfig{Registry: NewRegistry(succeeding(domain.JobTypeFixFormat))}),
		OnComplete: func(context.Context, *domain.Job, *domain.JobResult) error {
			return errors.New("storage down")
		},
	})
	result := rr.Run(context.Background(), newTestJob(t, domain.JobTypeFixFormat, 1))
	assert.True(t, result.Success)

	rr = NewRetryableRunner(RetryableConfig{
		Runner: NewRunner(RunnerConfig{Registry: NewRegistry(failing(domain.JobTypeFixFormat))}),
		OnComplete: func(context.Context, *domain.Job, *domain.JobResult) error {
			panic("callback bug")
		},
	})
	require.NotPanics(t, func() {
		result = rr.Run(context.Background(), newTestJob(t, domain.JobTypeFixFormat, 1))
	})
	assert.False(t, result.Success)
	assert.True(t, result.Retry)
}

func TestRetryableRunner_BreakerOpenSkipsWorker(t *testing.T) {
	clock := newTestClock()
	w := failing(domain.JobTypeRefineText)
	var callbacks int
	rr := NewRetryableRunner(RetryableConfig{
		Runner:  NewRunner(RunnerConfig{Registry: NewRegistry(w)}),
		Breaker: NewCircuitBreaker(2, time.Minute, WithBreakerClock(clock.Now)),
		OnComplete: func(context.Context, *domain.Job, *domain.JobResult) error {
			callbacks++
			return nil
		},
	})

	rr.Run(context.Background(), newTestJob(t, domain.JobTypeRefineText, 5))
	rr.Run(context.Background(), newTestJob(t, domain.JobTypeRefineText, 5))
	require.True(t, rr.Breaker().IsOpen())

	job := newTestJob(t, domain.JobTypeRefineText, 5)
	result := rr.Run(context.Background(), job)

	assert.Equal(t, domain.ErrorCodeCircuitBreakerOpen, result.ErrorCode())
	assert.Equal(t, 2, w.calls, "worker must not be called while breaker is open")
	assert.Equal(t, 2, callbacks)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.NoError(t, result.Validate())

	// После окна breaker закрывается сам
	clock.Advance(2 * time.Minute)
	rr.Run(context.Background(), job)
	assert.Equal(t, 3, w.calls)
}

// --- TextWorker Tests ---

type fakeGenerator struct {
	prompt string
	reply  string
	err    error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}

func TestTextWorker_CanHandle(t *testing.T) {
	w := NewTextWorker(&fakeGenerator{}, 0)
	assert.True(t, w.CanHandle(&domain.Job{Type: domain.JobTypeStructureText}))
	assert.True(t, w.CanHandle(&domain.Job{Type: domain.JobTypeSolveTasks}))
	assert.True(t, w.CanHandle(&domain.Job{Type: domain.JobTypeRefineText}))
	assert.False(t, w.CanHandle(&domain.Job{Type: domain.JobTypeFixFormat}))
}

func TestTextWorker_Execute(t *testing.T) {
	gen := &fakeGenerator{reply: "  Refined text.  "}
	w := NewTextWorker(gen, time.Second)
	job := newTestJob(t, domain.JobTypeRefineText, 1)
	job.Payload = map[string]any{"text": "some txt", "instructions": "formal tone"}

	result, err := w.Execute(context.Background(), job)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "Refined text.", result.Output["text"])
	assert.Equal(t, "refine_text", result.Output["type"])
	assert.Contains(t, gen.prompt, "some txt")
	assert.Contains(t, gen.prompt, "formal tone")
}

func TestTextWorker_SolveTasksList(t *testing.T) {
	gen := &fakeGenerator{reply: "answers"}
	w := NewTextWorker(gen, 0)
	job := newTestJob(t, domain.JobTypeSolveTasks, 1)
	job.Payload = map[string]any{"tasks": []any{"2+2", " ", "3*3"}}

	_, err := w.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, gen.prompt, "1. 2+2\n2. 3*3")
}

func TestTextWorker_Errors(t *testing.T) {
	job := newTestJob(t, domain.JobTypeStructureText, 1)

	job.Payload = map[string]any{}
	_, err := NewTextWorker(&fakeGenerator{reply: "x"}, 0).Execute(context.Background(), job)
	assert.ErrorIs(t, err, ErrEmptyInput)

	job.Payload = map[string]any{"text": "abc"}
	_, err = NewTextWorker(&fakeGenerator{reply: "   "}, 0).Execute(context.Background(), job)
	assert.ErrorIs(t, err, ErrEmptyCompletion)

	genErr := errors.New("rate limited")
	_, err = NewTextWorker(&fakeGenerator{err: genErr}, 0).Execute(context.Background(), job)
	assert.ErrorIs(t, err, genErr)
}

// --- FormatFixWorker Tests ---

func TestFixFormat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "a\r\nb\r\n", "a\nb\n"},
		{"trailing spaces", "line   \nnext\t\n", "line\nnext\n"},
		{"inner spaces", "one   two\t\tthree", "one two three\n"},
		{"keeps indent", "    code  here", "    code here\n"},
		{"punctuation", "Hello , world !", "Hello, world!\n"},
		{"blank lines", "a\n\n\n\n\nb", "a\n\nb\n"},
		{"already clean", "clean text\n", "clean text\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FixFormat(tt.in))
		})
	}
}

func TestFormatFixWorker_Execute(t *testing.T) {
	w := &FormatFixWorker{}
	job := newTestJob(t, domain.JobTypeFixFormat, 1)
	job.Payload = map[string]any{"text": "a  b\r\n"}

	result, err := w.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "a b\n", result.Output["text"])
	assert.Equal(t, true, result.Output["changed"])

	job.Payload = map[string]any{"text": "  \n"}
	_, err = w.Execute(context.Background(), job)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.True(t, strings.Contains(err.Error(), "fix_format"))
}
