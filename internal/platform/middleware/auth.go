package middleware

import (
	"context"
	"log/slog"
	"net/http"

	id "datex/pkg/domain"
	"datex/pkg/requestcontext"
)

// ParticipantAuthenticator verifies an institution's API credentials.
// Implemented by the participant service: key verification plus an active
// status check against the trust registry.
type ParticipantAuthenticator interface {
	Authenticate(ctx context.Context, participantID, apiKey string) (id.ParticipantID, error)
}

// RequireParticipant authenticates the calling institution from the
// X-Participant-Id and X-Api-Key headers and stores the resolved participant
// in the request context. The OAuth/FAPI front door terminates end-user
// authorization before traffic reaches this core; this layer only proves
// which institution is calling.
func RequireParticipant(auth ParticipantAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			participantID := r.Header.Get("X-Participant-Id")
			apiKey := r.Header.Get("X-Api-Key")
			if participantID == "" || apiKey == "" {
				unauthorized(w)
				return
			}

			pid, err := auth.Authenticate(ctx, participantID, apiKey)
			if err != nil {
				logger.WarnContext(ctx, "participant authentication failed",
					"participant_id", participantID,
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithParticipantID(ctx, pid)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","reason":"invalid participant credentials"}`))
}
