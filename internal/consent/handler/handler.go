package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"datex/internal/consent"
	"datex/internal/platform/metrics"
	"datex/internal/transport/http/shared"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
	"datex/pkg/requestcontext"
)

// Service defines the consent operations the HTTP layer needs.
type Service interface {
	Create(ctx context.Context, in consent.CreateInput) (consent.CreateResult, error)
	Status(ctx context.Context, cid id.ConsentID) (consent.Status, error)
	Revoke(ctx context.Context, cid id.ConsentID, actor string) error
}

// Handler handles consent lifecycle endpoints.
type Handler struct {
	consent Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(consent Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{consent: consent, logger: logger, metrics: metrics}
}

// Register mounts the consent routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consent", h.handleCreate)
	r.Get("/consent/{id}", h.handleStatus)
	r.Post("/consent/{id}/revoke", h.handleRevoke)
}

// createRequest mirrors the public contract. ExpiryDate is absolute; the
// service works in TTLs, so the handler converts using the request clock.
type createRequest struct {
	CustomerID            string   `json:"customerId"`
	RequestingInstitution string   `json:"requestingInstitution"`
	ProvidingInstitution  string   `json:"providingInstitution"`
	DataCategories        []string `json:"dataCategories"`
	Purpose               string   `json:"purpose"`
	ExpiryDate            string   `json:"expiryDate"`
}

type createResponse struct {
	ConsentID    string `json:"consentId"`
	Status       string `json:"status"`
	ConsentToken string `json:"consentToken"`
	ExpiresAt    string `json:"expiresAt"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	in, err := h.toCreateInput(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid consent create request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	result, err := h.consent.Create(ctx, in)
	if err != nil {
		h.logger.WarnContext(ctx, "consent create rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ConsentsCreated.Inc()
	}
	shared.WriteJSON(w, http.StatusCreated, createResponse{
		ConsentID:    result.Record.ID.String(),
		Status:       string(result.Record.Status),
		ConsentToken: result.Token,
		ExpiresAt:    result.Record.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) toCreateInput(ctx context.Context, req createRequest) (consent.CreateInput, error) {
	subject, err := id.ParseFingerprint(req.CustomerID)
	if err != nil {
		return consent.CreateInput{}, err
	}
	requesting, err := id.ParseParticipantID(req.RequestingInstitution)
	if err != nil {
		return consent.CreateInput{}, err
	}
	providing, err := id.ParseParticipantID(req.ProvidingInstitution)
	if err != nil {
		return consent.CreateInput{}, err
	}
	purpose, err := id.ParseConsentPurpose(req.Purpose)
	if err != nil {
		return consent.CreateInput{}, err
	}
	expiry, err := time.Parse(time.RFC3339, req.ExpiryDate)
	if err != nil {
		return consent.CreateInput{}, dErrors.New(dErrors.CodeBadRequest, "expiryDate must be RFC 3339")
	}
	categories := make([]id.DataCategory, len(req.DataCategories))
	for i, c := range req.DataCategories {
		categories[i] = id.DataCategory(c)
	}
	return consent.CreateInput{
		Subject:               subject,
		RequestingParticipant: requesting,
		ProvidingParticipant:  providing,
		Purpose:               purpose,
		Categories:            categories,
		TTL:                   expiry.Sub(requestcontext.Now(ctx)),
	}, nil
}

type statusResponse struct {
	ConsentID string `json:"consentId"`
	Status    string `json:"status"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cid, err := id.ParseConsentID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	status, err := h.consent.Status(ctx, cid)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, statusResponse{
		ConsentID: cid.String(),
		Status:    string(status),
	})
}

type revokeRequest struct {
	Actor string `json:"actor"`
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cid, err := id.ParseConsentID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req revokeRequest
	if r.Body != nil {
		// Actor is optional; default to the authenticated participant.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	actor := req.Actor
	if actor == "" {
		if pid := requestcontext.ParticipantID(ctx); !pid.IsNil() {
			actor = pid.String()
		}
	}

	if err := h.consent.Revoke(ctx, cid, actor); err != nil {
		shared.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ConsentsRevoked.Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}
