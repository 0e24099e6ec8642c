package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_RefillsOverTime(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := New()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("yahoo", 2, 1))
	assert.True(t, l.Allow("yahoo", 2, 1))
	assert.False(t, l.Allow("yahoo", 2, 1))
	assert.True(t, l.Allow("other", 2, 1))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("yahoo", 2, 1))
	assert.False(t, l.Allow("yahoo", 2, 1))
}

func TestWait_HonoursContext(t *testing.T) {
	l := New()
	assert.True(t, l.Allow("k", 1, 0.001))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx, "k", 1, 0.001), context.DeadlineExceeded)
}

func TestWait_ReturnsWhenTokenAvailable(t *testing.T) {
	l := New()
	assert.NoError(t, l.Wait(context.Background(), "k", 1, 100))
	assert.NoError(t, l.Wait(context.Background(), "k", 1, 100))
}
