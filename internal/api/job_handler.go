package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/lifecycle"
)

// EnqueueJob создаёт job и публикует его в jobs.ready.
// POST /api/v1/jobs
func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req EnqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	maxRetries := h.defaultMaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	job, err := domain.NewJob(domain.JobType(req.Type), req.GenerationID, req.StepID, req.Payload, maxRetries)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.publisher.PublishJob(r.Context(), job); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("job enqueued", "job_id", job.ID, "type", job.Type, "generation_id", job.GenerationID)
	Accepted(w, JobFromDomain(job))
}

// HashPayload возвращает input_hash JSON-объекта из тела запроса.
// POST /api/v1/hash
func (h *Handler) HashPayload(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		BadRequest(w, "request body must be a JSON object")
		return
	}

	hash, err := lifecycle.CalculateInputHash(payload)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	Success(w, HashResponse{InputHash: hash})
}
