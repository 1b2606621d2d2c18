package input

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_LatestWins(t *testing.T) {
	c := New(5*time.Second, 1000, 0, 500)

	c.Put("a", 100)
	c.Put("a", 200)

	y1, y2 := c.Take("a", "b")
	require.NotNil(t, y1)
	assert.Equal(t, 200.0, *y1)
	assert.Nil(t, y2)
}

func TestCache_ClampsToRange(t *testing.T) {
	c := New(5*time.Second, 1000, 0, 500)
	c.Put("a", -50)
	c.Put("b", 9000)

	y1, y2 := c.Take("a", "b")
	require.NotNil(t, y1)
	require.NotNil(t, y2)
	assert.Equal(t, 0.0, *y1)
	assert.Equal(t, 500.0, *y2)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New(10*time.Millisecond, 1000, 0, 500)
	c.Put("a", 100)
	time.Sleep(20 * time.Millisecond)

	y1, _ := c.Take("a", "b")
	assert.Nil(t, y1)
}

func TestCache_Remove(t *testing.T) {
	c := New(5*time.Second, 1000, 0, 500)
	c.Put("a", 100)
	c.Remove("a")

	y1, _ := c.Take("a", "b")
	assert.Nil(t, y1)
}
