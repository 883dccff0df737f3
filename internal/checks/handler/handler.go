package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"datex/internal/checks"
	"datex/internal/transport/http/shared"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
)

// Service defines the orchestration operation the HTTP layer needs.
type Service interface {
	Perform(ctx context.Context, in checks.PerformInput) (checks.Report, error)
}

// Handler serves the compliance check endpoint.
type Handler struct {
	checks Service
	logger *slog.Logger
}

func New(checks Service, logger *slog.Logger) *Handler {
	return &Handler{checks: checks, logger: logger}
}

// Register mounts the compliance check route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/checks/perform", h.handlePerform)
}

type checkItem struct {
	Type       string `json:"type"`
	MinimumAge int    `json:"minimumAge,omitempty"`
}

type performRequest struct {
	SharedCustomerHash   string      `json:"sharedCustomerHash"`
	ProvidingInstitution string      `json:"providingInstitution"`
	Checks               []checkItem `json:"checks"`
}

type performResponse struct {
	Success         bool                 `json:"success"`
	OverallRisk     string               `json:"overallRisk"`
	// Duration is the batch wall time in milliseconds.
	Duration        int64                `json:"duration"`
	Results         []checks.CheckResult `json:"results"`
	Recommendations []string             `json:"recommendations"`
}

func (h *Handler) handlePerform(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req performRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	subject, err := id.ParseFingerprint(req.SharedCustomerHash)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	provider, err := id.ParseParticipantID(req.ProvidingInstitution)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid providing institution id"))
		return
	}

	in := checks.PerformInput{Subject: subject, Provider: provider}
	for _, c := range req.Checks {
		in.Checks = append(in.Checks, checks.CheckRequest{
			Type:       checks.CheckType(c.Type),
			MinimumAge: c.MinimumAge,
		})
	}

	report, err := h.checks.Perform(ctx, in)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	completed := true
	for _, res := range report.Results {
		if !res.Completed {
			completed = false
			break
		}
	}
	shared.WriteJSON(w, http.StatusOK, performResponse{
		Success:         completed,
		OverallRisk:     string(report.OverallRisk),
		Duration:        report.Duration.Milliseconds(),
		Results:         report.Results,
		Recommendations: report.Recommendations,
	})
}
