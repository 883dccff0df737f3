package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"datex/internal/participant"
	"datex/internal/transport/http/shared"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
)

// Service defines the registry operations the admin HTTP layer needs.
type Service interface {
	Register(ctx context.Context, in participant.RegisterInput) (participant.Participant, string, error)
	Resolve(ctx context.Context, pid id.ParticipantID) (participant.Participant, error)
	ListByIndustry(ctx context.Context, industry string, status participant.Status) ([]participant.Participant, error)
	Suspend(ctx context.Context, pid id.ParticipantID, reason string) error
	Reactivate(ctx context.Context, pid id.ParticipantID) error
	Revoke(ctx context.Context, pid id.ParticipantID, reason string) error
	RotateSecret(ctx context.Context, pid id.ParticipantID) (string, error)
}

// Handler serves trust registry administration.
type Handler struct {
	participants Service
	logger       *slog.Logger
}

func New(participants Service, logger *slog.Logger) *Handler {
	return &Handler{participants: participants, logger: logger}
}

// Register mounts the participant administration routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/participants", h.handleRegister)
	r.Get("/participants", h.handleList)
	r.Get("/participants/{id}", h.handleGet)
	r.Post("/participants/{id}/suspend", h.handleSuspend)
	r.Post("/participants/{id}/reactivate", h.handleReactivate)
	r.Post("/participants/{id}/revoke", h.handleRevoke)
	r.Post("/participants/{id}/rotate-secret", h.handleRotateSecret)
}

type registerRequest struct {
	Name         string   `json:"name"`
	Industry     string   `json:"industry"`
	TrustLevel   string   `json:"trustLevel"`
	Capabilities []string `json:"capabilities"`
	NotBefore    string   `json:"notBefore,omitempty"`
	NotAfter     string   `json:"notAfter,omitempty"`
}

type participantResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Industry     string   `json:"industry"`
	TrustLevel   string   `json:"trustLevel"`
	Status       string   `json:"status"`
	Capabilities []string `json:"capabilities"`
	CreatedAt    string   `json:"createdAt"`
}

type registerResponse struct {
	Participant participantResponse `json:"participant"`
	// APIKey is shown exactly once; it is not recoverable afterwards.
	APIKey string `json:"apiKey"`
}

func toResponse(p participant.Participant) participantResponse {
	caps := make([]string, len(p.Capabilities))
	for i, c := range p.Capabilities {
		caps[i] = string(c)
	}
	return participantResponse{
		ID:           p.ID.String(),
		Name:         p.Name,
		Industry:     p.Industry,
		TrustLevel:   string(p.TrustLevel),
		Status:       string(p.Status),
		Capabilities: caps,
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	in := participant.RegisterInput{
		Name:       req.Name,
		Industry:   req.Industry,
		TrustLevel: participant.TrustLevel(req.TrustLevel),
	}
	for _, c := range req.Capabilities {
		in.Capabilities = append(in.Capabilities, participant.Capability(c))
	}
	if req.NotBefore != "" {
		t, err := time.Parse(time.RFC3339, req.NotBefore)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "notBefore must be RFC 3339"))
			return
		}
		in.NotBefore = t
	}
	if req.NotAfter != "" {
		t, err := time.Parse(time.RFC3339, req.NotAfter)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "notAfter must be RFC 3339"))
			return
		}
		in.NotAfter = t
	}

	p, apiKey, err := h.participants.Register(ctx, in)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, registerResponse{
		Participant: toResponse(p),
		APIKey:      apiKey,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	industry := r.URL.Query().Get("industry")
	status := participant.Status(r.URL.Query().Get("status"))

	list, err := h.participants.ListByIndustry(r.Context(), industry, status)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]participantResponse, len(list))
	for i, p := range list {
		out[i] = toResponse(p)
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"participants": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	pid, err := id.ParseParticipantID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid participant id"))
		return
	}
	p, err := h.participants.Resolve(r.Context(), pid)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(p))
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.participants.Suspend)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.participants.Revoke)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, id.ParticipantID, string) error) {
	pid, err := id.ParseParticipantID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid participant id"))
		return
	}
	var req reasonRequest
	if r.Body != nil {
		// Reason is optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if err := apply(r.Context(), pid, req.Reason); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	pid, err := id.ParseParticipantID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid participant id"))
		return
	}
	if err := h.participants.Reactivate(r.Context(), pid); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	pid, err := id.ParseParticipantID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid participant id"))
		return
	}
	key, err := h.participants.RotateSecret(r.Context(), pid)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"apiKey": key})
}
