package matchqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_PairPop(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	require.NoError(t, q.Enqueue(ctx, "A"))
	require.NoError(t, q.Enqueue(ctx, "B"))

	a, b, ok, err := q.PairPop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", a)
	assert.Equal(t, "B", b)

	require.NoError(t, q.Enqueue(ctx, "C"))
	_, _, ok, err = q.PairPop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestMemoryQueue_RemoveDropsDuplicates(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()
	require.NoError(t, q.Enqueue(ctx, "A"))
	require.NoError(t, q.Enqueue(ctx, "A"))
	require.NoError(t, q.Remove(ctx, "A"))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}
