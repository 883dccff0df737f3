package testutil

import (
	"context"
	"net/http"
	"time"

	id "datex/pkg/domain"
	"datex/pkg/requestcontext"
)

// WithParticipant adds an authenticated participant to the request context,
// simulating the participant auth middleware.
func WithParticipant(req *http.Request, pid id.ParticipantID) *http.Request {
	return req.WithContext(requestcontext.WithParticipantID(req.Context(), pid))
}

// WithTime pins the request clock so expiry logic is deterministic.
func WithTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}

// Context builds a service-level context with an authenticated participant
// and a pinned clock.
func Context(pid id.ParticipantID, at time.Time) context.Context {
	ctx := requestcontext.WithParticipantID(context.Background(), pid)
	return requestcontext.WithTime(ctx, at)
}
