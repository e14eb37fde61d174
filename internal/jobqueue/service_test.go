package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/events"
	"github.com/shaiso/Genflow/internal/mq"
	"github.com/shaiso/Genflow/internal/worker"
)

// --- Fakes ---

type retried struct {
	job   *domain.Job
	delay time.Duration
}

type fakePublisher struct {
	mu       sync.Mutex
	results  []*domain.JobResult
	retries  []retried
	dead     []*domain.Job
	events   []string
	retryErr error
}

func (p *fakePublisher) PublishJobResult(_ context.Context, _ *domain.Job, result *domain.JobResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
	return nil
}

func (p *fakePublisher) PublishJobRetry(_ context.Context, job *domain.Job, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.retryErr != nil {
		return p.retryErr
	}
	p.retries = append(p.retries, retried{job: job, delay: delay})
	return nil
}

func (p *fakePublisher) PublishDeadJob(_ context.Context, job *domain.Job, _ *domain.JobResult, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dead = append(p.dead, job)
	return nil
}

func (p *fakePublisher) PublishEvent(_ context.Context, name string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, name)
	return nil
}

// flakyWorker падает первые failures раз, потом выполняет job.
type flakyWorker struct {
	failures int
	calls    int
}

func (w *flakyWorker) CanHandle(job *domain.Job) bool { return job.Type == domain.JobTypeFixFormat }

func (w *flakyWorker) Execute(_ context.Context, job *domain.Job) (*domain.JobResult, error) {
	w.calls++
	if w.calls <= w.failures {
		return nil, errors.New("transient failure")
	}
	return domain.NewSuccessResult(job.ID, map[string]any{"text": "ok\n"}), nil
}

func newService(t *testing.T, w worker.Worker, breaker *worker.CircuitBreaker, pub *fakePublisher) *Service {
	t.Helper()
	policy := worker.RetryPolicy{Backoff: worker.BackoffExponential, InitialDelay: time.Second, MaxDelay: time.Minute}
	rr := worker.NewRetryableRunner(worker.RetryableConfig{
		Runner:  worker.NewRunner(worker.RunnerConfig{Registry: worker.NewRegistry(w)}),
		Policy:  &policy,
		Breaker: breaker,
	})
	return New(Config{Runner: rr, Publisher: pub, BreakerRetryDelay: 5 * time.Second})
}

func deliveryFor(t *testing.T, payload any) *mq.Delivery {
	t.Helper()
	body, err := json.Marshal(mq.NewMessage(mq.MessageTypeJobReady, payload))
	require.NoError(t, err)

	var msg mq.Message
	require.NoError(t, json.Unmarshal(body, &msg))
	return &mq.Delivery{Message: msg}
}

func newJob(t *testing.T, maxRetries int) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(domain.JobTypeFixFormat, uuid.New(), nil, map[string]any{"text": "x"}, maxRetries)
	require.NoError(t, err)
	return job
}

// --- Service Tests ---

func TestProcessJob_SuccessPublishesResult(t *testing.T) {
	pub := &fakePublisher{}
	s := newService(t, &flakyWorker{}, nil, pub)

	err := s.handleJobReady(context.Background(), deliveryFor(t, newJob(t, 2)))
	require.NoError(t, err)

	require.Len(t, pub.results, 1)
	assert.True(t, pub.results[0].Success)
	assert.Empty(t, pub.retries)
	assert.Empty(t, pub.dead)
}

func TestProcessJob_RetryThenDeadLetter(t *testing.T) {
	pub := &fakePublisher{}
	w := &flakyWorker{failures: 10}
	s := newService(t, w, worker.NewCircuitBreaker(100, time.Minute), pub)

	job := newJob(t, 2)
	require.NoError(t, s.processJob(context.Background(), job))

	require.Len(t, pub.retries, 1)
	first := pub.retries[0]
	assert.Equal(t, 1, first.job.Retries)
	assert.Equal(t, domain.JobStatusRetry, first.job.Status)
	assert.Equal(t, time.Second, first.delay)

	// Транспорт доставляет следующую попытку
	require.NoError(t, s.processJob(context.Background(), first.job))
	require.Len(t, pub.retries, 2)
	assert.Equal(t, 2, pub.retries[1].job.Retries)
	assert.Equal(t, 2*time.Second, pub.retries[1].delay)

	require.NoError(t, s.processJob(context.Background(), pub.retries[1].job))
	assert.Len(t, pub.retries, 2)
	require.Len(t, pub.dead, 1)
	assert.Equal(t, job.ID, pub.dead[0].ID)

	require.Len(t, pub.results, 3)
	last := pub.results[2]
	assert.True(t, last.Final)
	assert.Equal(t, 3, last.Retries)
	assert.Equal(t, 3, w.calls)
}

func TestProcessJob_BreakerOpenReschedulesSameAttempt(t *testing.T) {
	pub := &fakePublisher{}
	breaker := worker.NewCircuitBreaker(1, time.Hour)
	breaker.RecordFailure()
	w := &flakyWorker{}
	s := newService(t, w, breaker, pub)

	job := newJob(t, 2)
	require.NoError(t, s.processJob(context.Background(), job))

	assert.Zero(t, w.calls)
	require.Len(t, pub.retries, 1)
	assert.Equal(t, 0, pub.retries[0].job.Retries)
	assert.Equal(t, 5*time.Second, pub.retries[0].delay)
	assert.Equal(t, domain.ErrorCodeCircuitBreakerOpen, pub.results[0].ErrorCode())
}

func TestProcessJob_RetryPublishFailureRequeues(t *testing.T) {
	pub := &fakePublisher{retryErr: errors.New("channel closed")}
	s := newService(t, &flakyWorker{failures: 1}, worker.NewCircuitBreaker(100, time.Minute), pub)

	err := s.processJob(context.Background(), newJob(t, 2))
	assert.ErrorContains(t, err, "channel closed")
}

func TestHandleJobReady_InvalidJob(t *testing.T) {
	pub := &fakePublisher{}
	w := &flakyWorker{}
	s := newService(t, w, nil, pub)

	job := newJob(t, 2)
	job.Type = "render_pdf"

	require.NoError(t, s.handleJobReady(context.Background(), deliveryFor(t, job)))
	assert.Zero(t, w.calls)
	require.Len(t, pub.results, 1)
	assert.Equal(t, domain.ErrorCodeInvalidJob, pub.results[0].ErrorCode())
	assert.True(t, pub.results[0].Final)
}

func TestHandleJobReady_Reject(t *testing.T) {
	s := newService(t, &flakyWorker{}, nil, &fakePublisher{})

	err := s.handleJobReady(context.Background(), deliveryFor(t, "not a job"))
	assert.ErrorIs(t, err, mq.ErrReject)

	err = s.handleJobReady(context.Background(), deliveryFor(t, map[string]any{"type": "fix_format"}))
	assert.ErrorIs(t, err, mq.ErrReject)
}

func TestForwardEvent(t *testing.T) {
	pub := &fakePublisher{}
	s := newService(t, &flakyWorker{}, nil, pub)

	d := events.NewDispatcher(nil)
	d.Subscribe(s.forwardEvent)
	d.Publish(context.Background(), events.StepUpdated{StepID: uuid.New()})
	d.Publish(context.Background(), events.GenerationUpdated{GenerationID: uuid.New()})

	assert.Equal(t, []string{events.NameStepUpdated, events.NameGenerationUpdated}, pub.events)
}

func TestStart_RequiresConnection(t *testing.T) {
	s := newService(t, &flakyWorker{}, nil, &fakePublisher{})
	assert.Error(t, s.Start(context.Background()))
}
