package worker

import (
	"context"
	"sync"

	"github.com/shaiso/Genflow/internal/domain"
)

// Worker — исполнитель job определённого типа.
//
// CanHandle решает, берёт ли воркер job, без статической таблицы
// тип → воркер. Execute выполняет job: логическая неудача возвращается
// как JobResult с Success=false, инфраструктурная — через error.
// Runner превращает любую error (и panic) в failed JobResult.
type Worker interface {
	CanHandle(job *domain.Job) bool
	Execute(ctx context.Context, job *domain.Job) (*domain.JobResult, error)
}

// Registry — упорядоченный реестр воркеров.
//
// Resolve возвращает первый воркер, чей CanHandle вернул true:
// при пересечении типов побеждает тот, кто зарегистрирован раньше.
// Безопасен для конкурентного использования.
type Registry struct {
	mu      sync.RWMutex
	workers []Worker
}

// NewRegistry создаёт реестр с переданными воркерами (в порядке приоритета).
func NewRegistry(workers ...Worker) *Registry {
	r := &Registry{}
	for _, w := range workers {
		r.Register(w)
	}
	return r
}

// Register добавляет воркер в конец списка.
// Повторная регистрация того же экземпляра ничего не делает.
func (r *Registry) Register(w Worker) {
	if w == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.workers {
		if existing == w {
			return
		}
	}
	r.workers = append(r.workers, w)
}

// Resolve возвращает первый воркер, который может обработать job.
// Если такого нет — *WorkerNotFoundError (errors.Is(err, ErrWorkerNotFound)).
func (r *Registry) Resolve(job *domain.Job) (Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, w := range r.workers {
		if w.CanHandle(job) {
			return w, nil
		}
	}
	return nil, &WorkerNotFoundError{JobType: job.Type}
}

// Len возвращает количество зарегистрированных воркеров.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}
