package tx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBound_AppliesDeadline(t *testing.T) {
	ctx, cancel := Bound(context.Background(), 50*time.Millisecond)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok, "expected a deadline")
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 20*time.Millisecond)
}

func TestBound_ZeroTimeoutLeavesContextUnchanged(t *testing.T) {
	parent := context.Background()
	ctx, cancel := Bound(parent, 0)
	defer cancel()

	_, ok := ctx.Deadline()
	assert.False(t, ok)
	assert.Equal(t, parent, ctx)
}

func TestBound_ExpiredDeadlineSurfacesAsDeadlineExceeded(t *testing.T) {
	ctx, cancel := Bound(context.Background(), time.Nanosecond)
	defer cancel()

	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}
