package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"datex/internal/exchange"
	"datex/internal/transport/http/shared"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
	"datex/pkg/requestcontext"
)

// Service defines the exchange operation the HTTP layer needs.
type Service interface {
	Fetch(ctx context.Context, in exchange.FetchInput) (exchange.FetchResult, error)
}

// Handler serves the customer data release endpoint.
type Handler struct {
	exchange Service
	logger   *slog.Logger
}

func New(exchange Service, logger *slog.Logger) *Handler {
	return &Handler{exchange: exchange, logger: logger}
}

// Register mounts the data exchange route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/customer/data", h.handleFetch)
}

type fetchRequest struct {
	SharedCustomerHash string   `json:"sharedCustomerHash"`
	ConsentToken       string   `json:"consentToken"`
	DataCategories     []string `json:"dataCategories,omitempty"`
}

type fetchResponse struct {
	ConsentID     string                    `json:"consentId"`
	Purpose       string                    `json:"purpose"`
	CustomerData  map[string]map[string]any `json:"customerData"`
	AuditRecorded bool                      `json:"auditRecorded"`
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	subject, err := id.ParseFingerprint(req.SharedCustomerHash)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.ConsentToken == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "consentToken is required"))
		return
	}
	result, err := h.exchange.Fetch(ctx, exchange.FetchInput{
		Subject:    subject,
		Token:      req.ConsentToken,
		Categories: id.CategorySetFromStrings(req.DataCategories).Slice(),
	})
	if err != nil {
		h.logger.InfoContext(ctx, "data fetch denied",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	data := make(map[string]map[string]any, len(result.Bundles))
	for cat, bundle := range result.Bundles {
		data[string(cat)] = bundle.Data
	}
	shared.WriteJSON(w, http.StatusOK, fetchResponse{
		ConsentID:     result.ConsentID.String(),
		Purpose:       result.Purpose.String(),
		CustomerData:  data,
		AuditRecorded: true,
	})
}
