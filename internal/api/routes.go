package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		RequestLogger(h.logger),
		Recovery(),
	)

	// Generations
	mux.Handle("GET /api/v1/generations/{id}", chain(http.HandlerFunc(h.GetGeneration)))
	mux.Handle("POST /api/v1/generations/{id}/transition", chain(http.HandlerFunc(h.TransitionGeneration)))
	mux.Handle("GET /api/v1/transitions", chain(http.HandlerFunc(h.ListTransitions)))

	// Jobs
	mux.Handle("POST /api/v1/jobs", chain(http.HandlerFunc(h.EnqueueJob)))
	mux.Handle("POST /api/v1/hash", chain(http.HandlerFunc(h.HashPayload)))
}
