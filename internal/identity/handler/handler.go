package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"datex/internal/identity"
	"datex/internal/transport/http/shared"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
	"datex/pkg/requestcontext"
)

// Service defines the identity operations the HTTP layer needs.
type Service interface {
	Match(ctx context.Context, in id.IdentityInput) (identity.MatchResult, error)
	Record(ctx context.Context, in identity.RecordInput) (id.Fingerprint, error)
}

// Handler handles customer match and identification endpoints.
type Handler struct {
	identity Service
	logger   *slog.Logger
}

func New(identity Service, logger *slog.Logger) *Handler {
	return &Handler{identity: identity, logger: logger}
}

// Register mounts the customer recognition routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/customer/check", h.handleCheck)
	r.Post("/customer/identification", h.handleRecord)
}

// basicData mirrors the wire shape institutions already exchange.
type basicData struct {
	LastName      string   `json:"lastName"`
	GivenName     string   `json:"givenName"`
	DateOfBirth   string   `json:"dateOfBirth"`
	Nationalities []string `json:"nationalities"`
}

func (b basicData) toInput() (id.IdentityInput, error) {
	in := id.IdentityInput{
		LastName:      b.LastName,
		GivenName:     b.GivenName,
		Nationalities: b.Nationalities,
	}
	if b.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", b.DateOfBirth)
		if err != nil {
			return id.IdentityInput{}, dErrors.New(dErrors.CodeInvalidIdentityInput, "dateOfBirth must be YYYY-MM-DD")
		}
		in.DateOfBirth = dob
	}
	return in, nil
}

type checkRequest struct {
	BasicData basicData `json:"basicData"`
}

type checkResponse struct {
	Match              bool   `json:"match"`
	SharedCustomerHash string `json:"sharedCustomerHash"`
	LevelOfAssurance   string `json:"levelOfAssurance,omitempty"`
	IdentificationDate string `json:"identificationDate,omitempty"`
	ValidUntil         string `json:"validUntil,omitempty"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	in, err := req.BasicData.toInput()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.identity.Match(ctx, in)
	if err != nil {
		h.logger.WarnContext(ctx, "customer check failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	resp := checkResponse{
		Match:              result.Matched,
		SharedCustomerHash: result.Fingerprint.String(),
	}
	if result.Matched && result.Assurance != "" {
		resp.LevelOfAssurance = string(result.Assurance)
		resp.IdentificationDate = result.IdentifiedAt.UTC().Format(time.RFC3339)
		resp.ValidUntil = result.ValidUntil.UTC().Format(time.RFC3339)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

type recordRequest struct {
	BasicData        basicData `json:"basicData"`
	LevelOfAssurance string    `json:"levelOfAssurance"`
	ValidForDays     int       `json:"validForDays"`
}

type recordResponse struct {
	SharedCustomerHash string `json:"sharedCustomerHash"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	in, err := req.BasicData.toInput()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	fp, err := h.identity.Record(ctx, identity.RecordInput{
		Identity:     in,
		Assurance:    identity.LevelOfAssurance(req.LevelOfAssurance),
		IdentifiedBy: requestcontext.ParticipantID(ctx),
		ValidFor:     time.Duration(req.ValidForDays) * 24 * time.Hour,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, recordResponse{SharedCustomerHash: fp.String()})
}
