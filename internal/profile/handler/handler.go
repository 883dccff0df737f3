// Package handler exposes the provider-facing profile ingestion endpoint.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"datex/internal/profile"
	"datex/internal/transport/http/shared"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
)

// Service defines the ingestion operations the HTTP layer needs.
type Service interface {
	Push(ctx context.Context, in profile.PushInput) error
	Held(ctx context.Context, subject id.Fingerprint) (id.CategorySet, error)
}

// Handler serves the profile bundle push endpoint. Providers call it to
// attest and refresh the customer data they hold; without at least one pushed
// bundle no consent grant can name the provider.
type Handler struct {
	profiles Service
	logger   *slog.Logger
}

func New(profiles Service, logger *slog.Logger) *Handler {
	return &Handler{profiles: profiles, logger: logger}
}

// Register mounts the profile routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/customer/profile", h.handlePush)
	r.Get("/customer/profile/{hash}", h.handleHeld)
}

type pushRequest struct {
	SharedCustomerHash string         `json:"sharedCustomerHash"`
	Category           string         `json:"category"`
	Data               map[string]any `json:"data"`
	Completeness       float64        `json:"completeness"`
}

type heldResponse struct {
	SharedCustomerHash string   `json:"sharedCustomerHash"`
	HeldCategories     []string `json:"heldCategories"`
}

func (h *Handler) handlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	subject, err := id.ParseFingerprint(req.SharedCustomerHash)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.profiles.Push(ctx, profile.PushInput{
		Subject:      subject,
		Category:     id.DataCategory(req.Category),
		Data:         req.Data,
		Completeness: req.Completeness,
	}); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHeld(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subject, err := id.ParseFingerprint(chi.URLParam(r, "hash"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	held, err := h.profiles.Held(ctx, subject)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, heldResponse{
		SharedCustomerHash: subject.String(),
		HeldCategories:     held.Strings(),
	})
}
