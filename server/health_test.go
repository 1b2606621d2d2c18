package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pongarena/server/matchqueue"
	"github.com/pongarena/server/session"
)

type unreachableQueue struct{ matchqueue.Queue }

func (unreachableQueue) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthChecker_HealthyWhenQueueReachable(t *testing.T) {
	store := session.NewStore()
	queue := matchqueue.NewMemory()
	require.NoError(t, queue.Enqueue(context.Background(), "a"))

	h := NewHealthChecker(queue, store)
	resp := h.Check(context.Background())

	assert.Equal(t, "Healthy", resp.Status)
	assert.Equal(t, 1, resp.Metrics.WaitingPlayers)
	assert.True(t, resp.Dependencies.CoordStoreConnected)
}

func TestHealthChecker_DegradedWhenQueueUnreachable(t *testing.T) {
	store := session.NewStore()
	h := NewHealthChecker(unreachableQueue{Queue: matchqueue.NewMemory()}, store)

	resp := h.Check(context.Background())

	assert.Equal(t, "Degraded", resp.Status)
	assert.False(t, resp.Dependencies.CoordStoreConnected)
}
