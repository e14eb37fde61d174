package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/events"
	"github.com/shaiso/Genflow/internal/lifecycle"
	"github.com/shaiso/Genflow/internal/telemetry"
)

// GetGeneration возвращает генерацию с шагами.
// GET /api/v1/generations/{id}
func (h *Handler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid generation id")
		return
	}

	g, err := h.store.GetGeneration(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "generation not found") {
		return
	}

	steps, err := h.store.ListSteps(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	Success(w, GenerationFromDomain(*g, steps))
}

// TransitionGeneration меняет статус генерации через машину состояний.
// POST /api/v1/generations/{id}/transition
func (h *Handler) TransitionGeneration(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid generation id")
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	to, ok := domain.ParseGenerationStatus(strings.ToUpper(req.Status))
	if !ok {
		BadRequest(w, "unknown status: "+req.Status)
		return
	}

	err = h.store.UpdateGeneration(r.Context(), id, events.GenerationFields{Status: to})
	if HandleStoreError(w, h.logger, err, "generation not found") {
		return
	}

	g, err := h.store.GetGeneration(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "generation not found") {
		return
	}

	h.dispatcher.Publish(r.Context(), events.GenerationUpdated{
		GenerationID: g.ID,
		Status:       g.Status,
		OccurredAt:   g.UpdatedAt,
	})

	telemetry.FromContext(r.Context()).Info("generation transitioned", "generation_id", id, "status", to)
	Success(w, GenerationFromDomain(*g, nil))
}

// ListTransitions возвращает таблицу допустимых переходов.
// GET /api/v1/transitions
func (h *Handler) ListTransitions(w http.ResponseWriter, r *http.Request) {
	table := make(map[domain.GenerationStatus][]domain.GenerationStatus)
	for _, st := range lifecycle.GenerationStatuses() {
		table[st] = lifecycle.AllowedTransitions(st)
	}
	Success(w, table)
}
