package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/lifecycle"
)

// recorder — подписчик, запоминающий события.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

var fixedNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newJob(t *testing.T, jobType domain.JobType, withStep bool) *domain.Job {
	t.Helper()
	var stepID *uuid.UUID
	if withStep {
		id := uuid.New()
		stepID = &id
	}
	job, err := domain.NewJob(jobType, uuid.New(), stepID, nil, 1)
	require.NoError(t, err)
	return job
}

// --- Dispatcher Tests ---

func TestDispatcher_OrderAndIsolation(t *testing.T) {
	d := NewDispatcher(nil)

	var order []string
	d.Subscribe(func(context.Context, Event) error {
		order = append(order, "first")
		return errors.New("broken subscriber")
	})
	d.Subscribe(func(context.Context, Event) error {
		order = append(order, "second")
		panic("worse subscriber")
	})
	d.Subscribe(func(context.Context, Event) error {
		order = append(order, "third")
		return nil
	})

	require.NotPanics(t, func() {
		d.Publish(context.Background(), GenerationUpdated{GenerationID: uuid.New()})
	})
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher(nil)
	rec := &recorder{}

	id := d.Subscribe(rec.handle)
	other := d.Subscribe(func(context.Context, Event) error { return nil })
	require.Equal(t, 2, d.Len())

	assert.True(t, d.Unsubscribe(id))
	assert.False(t, d.Unsubscribe(id))
	assert.NotEqual(t, id, other)

	d.Publish(context.Background(), StepUpdated{})
	assert.Empty(t, rec.all())
	assert.Equal(t, 1, d.Len())
}

func TestDispatcher_ConcurrentPublish(t *testing.T) {
	d := NewDispatcher(nil)
	rec := &recorder{}
	d.Subscribe(rec.handle)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Publish(context.Background(), StepUpdated{StepID: uuid.New()})
		}()
		go func() {
			defer wg.Done()
			id := d.Subscribe(func(context.Context, Event) error { return nil })
			d.Unsubscribe(id)
		}()
	}
	wg.Wait()

	assert.Len(t, rec.all(), 20)
	assert.Equal(t, 1, d.Len())
}

// --- Integration Tests ---

func TestHandleJobResult_FinalSuccess_EventOrder(t *testing.T) {
	d := NewDispatcher(nil)
	rec := &recorder{}
	d.Subscribe(rec.handle)
	integ := NewIntegration(IntegrationConfig{Dispatcher: d, Clock: fixedClock})

	job := newJob(t, domain.JobTypeRefineText, true)
	result := domain.NewSuccessResult(job.ID, map[string]any{"text": "done"})

	require.NoError(t, integ.HandleJobResult(context.Background(), job, result))

	events := rec.all()
	require.Len(t, events, 2)

	step, ok := events[0].(StepUpdated)
	require.True(t, ok, "first event must be StepUpdated, got %T", events[0])
	assert.Equal(t, *job.StepID, step.StepID)
	assert.Equal(t, job.GenerationID, step.GenerationID)
	assert.Equal(t, domain.StepStatusSucceeded, step.Status)
	assert.Equal(t, 100, step.Progress)
	assert.Equal(t, fixedNow, step.OccurredAt)

	gen, ok := events[1].(GenerationUpdated)
	require.True(t, ok, "second event must be GenerationUpdated, got %T", events[1])
	assert.Equal(t, job.GenerationID, gen.GenerationID)
	assert.Equal(t, domain.GenerationStatusGenerated, gen.Status)
}

func TestHandleJobResult_NonFinalSuccessKeepsRunning(t *testing.T) {
	d := NewDispatcher(nil)
	rec := &recorder{}
	d.Subscribe(rec.handle)

	var genFields GenerationFields
	integ := NewIntegration(IntegrationConfig{
		Dispatcher: d,
		Store: StoreFuncs{UpdateGenerationFunc: func(_ context.Context, _ uuid.UUID, f GenerationFields) error {
			genFields = f
			return nil
		}},
	})

	job := newJob(t, domain.JobTypeStructureText, false)
	require.NoError(t, integ.HandleJobResult(context.Background(), job, domain.NewSuccessResult(job.ID, nil)))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.GenerationStatusRunning, events[0].(GenerationUpdated).Status)
	assert.Equal(t, domain.GenerationStatusRunning, genFields.Status)
	assert.Nil(t, genFields.Result)
}

func TestHandleJobResult_FailureOnlyStepEvent(t *testing.T) {
	d := NewDispatcher(nil)
	rec := &recorder{}
	d.Subscribe(rec.handle)

	var stepFields StepFields
	generationUpdated := false
	integ := NewIntegration(IntegrationConfig{
		Dispatcher: d,
		Store: StoreFuncs{
			UpdateStepFunc: func(_ context.Context, _ uuid.UUID, f StepFields) error {
				stepFields = f
				return nil
			},
			UpdateGenerationFunc: func(context.Context, uuid.UUID, GenerationFields) error {
				generationUpdated = true
				return nil
			},
		},
	})

	job := newJob(t, domain.JobTypeRefineText, true)
	result := domain.NewFailureResult(job.ID, domain.ErrorCodeExecution, "boom")
	require.NoError(t, integ.HandleJobResult(context.Background(), job, result))

	events := rec.all()
	require.Len(t, events, 1)
	step := events[0].(StepUpdated)
	assert.Equal(t, domain.StepStatusFailed, step.Status)
	assert.Equal(t, 0, step.Progress)

	assert.Equal(t, domain.StepStatusFailed, stepFields.Status)
	assert.Equal(t, result.Error, stepFields.Error)
	assert.False(t, generationUpdated)
}

func TestHandleJobResult_UsesStepLifecycle(t *testing.T) {
	d := NewDispatcher(nil)
	rec := &recorder{}
	d.Subscribe(rec.handle)

	job := newJob(t, domain.JobTypeSolveTasks, true)
	stored := domain.NewStep(job.GenerationID, string(job.Type), "hash")
	stored.ID = *job.StepID

	var saved StepFields
	integ := NewIntegration(IntegrationConfig{
		Dispatcher: d,
		Clock:      fixedClock,
		Store: StoreFuncs{
			GetStepFunc: func(context.Context, uuid.UUID) (domain.Step, error) { return stored, nil },
			UpdateStepFunc: func(_ context.Context, _ uuid.UUID, f StepFields) error {
				saved = f
				return nil
			},
		},
	})

	result := domain.NewSuccessResult(job.ID, map[string]any{"answer": 4})
	require.NoError(t, integ.HandleJobResult(context.Background(), job, result))

	assert.Equal(t, domain.StepStatusSucceeded, saved.Status)
	assert.Equal(t, 100, saved.Progress)
	require.NotNil(t, saved.StartedAt)
	assert.Equal(t, fixedNow, *saved.StartedAt)
	require.NotNil(t, saved.FinishedAt)
	assert.Len(t, rec.all(), 2)
}

func TestHandleJobResult_FinishedStepSkipped(t *testing.T) {
	for _, status := range []domain.StepStatus{domain.StepStatusSkipped, domain.StepStatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			d := NewDispatcher(nil)
			rec := &recorder{}
			d.Subscribe(rec.handle)

			job := newJob(t, domain.JobTypeFixFormat, true)
			stored := domain.NewStep(job.GenerationID, string(job.Type), "")
			stored.ID = *job.StepID
			stored.Status = status
			if status == domain.StepStatusFailed {
				stored.Error = &domain.JobError{Code: domain.ErrorCodeExecution, Message: "first attempt"}
			}

			stepUpdated, generationUpdated := false, false
			integ := NewIntegration(IntegrationConfig{
				Dispatcher: d,
				Store: StoreFuncs{
					GetStepFunc: func(context.Context, uuid.UUID) (domain.Step, error) { return stored, nil },
					UpdateStepFunc: func(context.Context, uuid.UUID, StepFields) error {
						stepUpdated = true
						return nil
					},
					UpdateGenerationFunc: func(context.Context, uuid.UUID, GenerationFields) error {
						generationUpdated = true
						return nil
					},
				},
			})

			// успешная повторная попытка не оживляет завершённый шаг
			// и не продвигает генерацию в GENERATED
			require.NoError(t, integ.HandleJobResult(context.Background(), job, domain.NewSuccessResult(job.ID, nil)))
			assert.False(t, stepUpdated)
			assert.False(t, generationUpdated)
			assert.Empty(t, rec.all())
		})
	}
}

func TestHandleJobResult_StepFinishedConcurrently(t *testing.T) {
	d := NewDispatcher(nil)
	rec := &recorder{}
	d.Subscribe(rec.handle)

	job := newJob(t, domain.JobTypeRefineText, true)
	stored := domain.NewStep(job.GenerationID, string(job.Type), "")
	stored.ID = *job.StepID
	stored.Status = domain.StepStatusRunning

	generationUpdated := false
	integ := NewIntegration(IntegrationConfig{
		Dispatcher: d,
		Store: StoreFuncs{
			GetStepFunc: func(context.Context, uuid.UUID) (domain.Step, error) { return stored, nil },
			// под блокировкой строка уже FAILED
			UpdateStepFunc: func(_ context.Context, id uuid.UUID, _ StepFields) error {
				return &lifecycle.AlreadyFinishedError{
					StepID:    id,
					Status:    string(domain.StepStatusFailed),
					Operation: "update",
				}
			},
			UpdateGenerationFunc: func(context.Context, uuid.UUID, GenerationFields) error {
				generationUpdated = true
				return nil
			},
		},
	})

	result := domain.NewSuccessResult(job.ID, map[string]any{"text": "late"})
	require.NoError(t, integ.HandleJobResult(context.Background(), job, result))
	assert.False(t, generationUpdated)
	assert.Empty(t, rec.all())
}

func TestHandleJobResult_StoreErrors(t *testing.T) {
	d := NewDispatcher(nil)
	rec := &recorder{}
	d.Subscribe(rec.handle)
	storeErr := errors.New("db down")

	integ := NewIntegration(IntegrationConfig{
		Dispatcher: d,
		Store: StoreFuncs{UpdateStepFunc: func(context.Context, uuid.UUID, StepFields) error {
			return storeErr
		}},
	})

	job := newJob(t, domain.JobTypeRefineText, true)
	err := integ.HandleJobResult(context.Background(), job, domain.NewSuccessResult(job.ID, nil))
	assert.ErrorIs(t, err, storeErr)
	assert.Empty(t, rec.all())

	integ = NewIntegration(IntegrationConfig{
		Dispatcher: d,
		Store: StoreFuncs{GetStepFunc: func(context.Context, uuid.UUID) (domain.Step, error) {
			return domain.Step{}, storeErr
		}},
	})
	err = integ.HandleJobResult(context.Background(), job, domain.NewSuccessResult(job.ID, nil))
	assert.ErrorIs(t, err, storeErr)
}

func TestHandleJobResult_NilArgs(t *testing.T) {
	integ := NewIntegration(IntegrationConfig{})
	job := newJob(t, domain.JobTypeRefineText, false)

	assert.ErrorIs(t, integ.HandleJobResult(context.Background(), nil, nil), domain.ErrValidation)
	assert.ErrorIs(t, integ.HandleJobResult(context.Background(), job, nil), domain.ErrValidation)
}

func TestIntegration_ConfigurableFinalTypes(t *testing.T) {
	integ := NewIntegration(IntegrationConfig{FinalJobTypes: []domain.JobType{domain.JobTypeSolveTasks}})

	assert.True(t, integ.IsFinal(domain.JobTypeSolveTasks))
	assert.False(t, integ.IsFinal(domain.JobTypeRefineText))
	assert.Equal(t, domain.GenerationStatusGenerated, integ.GenerationStatusFor(domain.JobTypeSolveTasks))
	assert.Equal(t, domain.GenerationStatusRunning, integ.GenerationStatusFor(domain.JobTypeFixFormat))
}
