package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/pkg/logger"
	"github.com/blackkolly/rollback-controller/internal/pkg/validate"
	"github.com/blackkolly/rollback-controller/internal/repository"
)

// Status handles GET /api/v1/status: active monitoring windows plus the
// thresholds they are evaluated against.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"auto_rollback":            h.cfg.AutoRollback,
		"error_threshold":          h.cfg.ErrorThreshold,
		"critical_error_threshold": h.cfg.CriticalErrorThreshold,
		"poll_interval_sec":        h.cfg.PollIntervalSec,
		"windows":                  h.supervisor.WindowSnapshots(),
	})
}

// ListTargets handles GET /api/v1/targets
func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cfg.Targets)
}

// ListOutcomes handles GET /api/v1/outcomes?service=&limit=
func (h *Handler) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	if service != "" && !validate.ServiceName(service) {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			"invalid service name", logger.FromContext(r.Context()))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest,
				"limit must be a non-negative integer", logger.FromContext(r.Context()))
			return
		}
		limit = n
	}

	outcomes, err := h.repo.ListOutcomes(r.Context(), service, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, outcomes)
}

// GetSnapshot handles GET /api/v1/snapshots/{service}/{strategy}
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	service := vars["service"]
	if !validate.ServiceName(service) {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			"invalid service name", logger.FromContext(r.Context()))
		return
	}
	strategy, err := models.ParseStrategy(vars["strategy"])
	if err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			err.Error(), logger.FromContext(r.Context()))
		return
	}

	snap, err := h.repo.LoadSnapshot(r.Context(), service, strategy)
	if err != nil {
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			respondErrorWithCode(w, http.StatusNotFound, ErrCodeNotFound,
				"no snapshot stored for this service and strategy",
				logger.FromContext(r.Context()))
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}
