package rest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/pkg/logger"
	"github.com/blackkolly/rollback-controller/internal/pkg/validate"
	"github.com/blackkolly/rollback-controller/internal/rollback"
)

// rollbackRequest is the external trigger wire format. deploymentType
// accepts "regular" as an alias for rolling; alerting systems still send it.
type rollbackRequest struct {
	Service        string `json:"service"`
	DeploymentType string `json:"deploymentType"`
	Reason         string `json:"reason"`
}

// rollbackResponse mirrors what callers scrape: success plus a one-line
// output on success, or an error string.
type rollbackResponse struct {
	Success bool                    `json:"success"`
	Output  string                  `json:"output,omitempty"`
	Error   string                  `json:"error,omitempty"`
	Outcome *models.RollbackOutcome `json:"outcome,omitempty"`
}

// rollbackAllResponse is returned for the system-wide form (service "*").
type rollbackAllResponse struct {
	Success  bool                      `json:"success"`
	Outcomes []*models.RollbackOutcome `json:"outcomes"`
}

// TriggerRollback handles POST /api/v1/rollback. Validation happens before
// any side effect; execution is synchronous so the caller gets the completed
// outcome inline.
func (h *Handler) TriggerRollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			"invalid request body: "+err.Error(), logger.FromContext(r.Context()))
		return
	}

	if req.Reason != "" && !validate.Reason(req.Reason) {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			"invalid reason", logger.FromContext(r.Context()))
		return
	}

	// service "*" rolls back every configured target.
	if req.Service == "*" {
		h.triggerRollbackAll(w, r, req)
		return
	}

	if !validate.ServiceName(req.Service) {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			"invalid service name", logger.FromContext(r.Context()))
		return
	}

	target := h.cfg.Target(req.Service)
	if target == nil {
		respondErrorWithCode(w, http.StatusNotFound, ErrCodeNotFound,
			fmt.Sprintf("service %q is not a configured target", req.Service),
			logger.FromContext(r.Context()))
		return
	}

	// The request's strategy overrides the configured one for this execution.
	// When omitted, the deployed strategy is auto-detected; the configured one
	// is only a fallback if detection cannot reach the orchestrator.
	resolved := *target
	if req.DeploymentType != "" {
		strategy, err := models.ParseStrategy(req.DeploymentType)
		if err != nil {
			respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest,
				err.Error(), logger.FromContext(r.Context()))
			return
		}
		resolved.Strategy = strategy
	} else if detected, err := h.executor.DetectStrategy(r.Context(), req.Service); err == nil {
		resolved.Strategy = detected
	} else {
		slog.Default().Warn("strategy detection failed, using configured strategy",
			"service", req.Service,
			"configured", resolved.Strategy,
			"error", err,
		)
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual trigger via API"
	}

	outcome := h.executor.Execute(r.Context(), rollback.Request{
		Target: resolved,
		Source: models.TriggerAPI,
		Reason: reason,
	})

	if !outcome.Success {
		respondJSON(w, http.StatusInternalServerError, rollbackResponse{
			Success: false,
			Error:   outcome.Error,
			Outcome: outcome,
		})
		return
	}
	respondJSON(w, http.StatusOK, rollbackResponse{
		Success: true,
		Output: fmt.Sprintf("rollback of %s (%s) completed, active variant %s",
			outcome.Service, outcome.Strategy, outcome.ActiveVariant),
		Outcome: outcome,
	})
}

// triggerRollbackAll rolls back every configured target with per-target
// strategy auto-detection. Failures are isolated per service, so the
// response always carries one outcome per target.
func (h *Handler) triggerRollbackAll(w http.ResponseWriter, r *http.Request, req rollbackRequest) {
	if req.DeploymentType != "" {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			`deploymentType cannot be combined with service "*"`, logger.FromContext(r.Context()))
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "system-wide rollback via API"
	}

	outcomes := h.executor.ExecuteAll(r.Context(), h.cfg.Targets, models.TriggerAPI, reason)

	allOK := true
	for _, o := range outcomes {
		if !o.Success {
			allOK = false
			break
		}
	}
	status := http.StatusOK
	if !allOK {
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, rollbackAllResponse{Success: allOK, Outcomes: outcomes})
}
