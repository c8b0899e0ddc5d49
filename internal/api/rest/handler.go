// Package rest exposes the trigger and inspection API.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/blackkolly/rollback-controller/internal/config"
	"github.com/blackkolly/rollback-controller/internal/monitor"
	"github.com/blackkolly/rollback-controller/internal/repository"
	"github.com/blackkolly/rollback-controller/internal/rollback"
)

// Handler manages HTTP request handlers
type Handler struct {
	cfg        *config.Config
	executor   *rollback.Executor
	supervisor *monitor.Supervisor
	repo       repository.Repository
}

// NewHandler creates a new HTTP handler
func NewHandler(cfg *config.Config, executor *rollback.Executor, supervisor *monitor.Supervisor, repo repository.Repository) *Handler {
	return &Handler{
		cfg:        cfg,
		executor:   executor,
		supervisor: supervisor,
		repo:       repo,
	}
}

// SetupRoutes configures API routes
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/rollback", h.TriggerRollback).Methods("POST")
	router.HandleFunc("/status", h.Status).Methods("GET")
	router.HandleFunc("/targets", h.ListTargets).Methods("GET")
	router.HandleFunc("/outcomes", h.ListOutcomes).Methods("GET")
	router.HandleFunc("/snapshots/{service}/{strategy}", h.GetSnapshot).Methods("GET")
}

// respondJSON writes payload as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError writes a plain error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
