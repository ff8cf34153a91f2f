package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurstThenDeny(t *testing.T) {
	tb := NewTokenBucket(3, 1)
	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "burst capacity admits request %d", i)
	}
	assert.False(t, tb.Allow(), "empty bucket denies")
	assert.Zero(t, tb.Remaining())
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(1, 10)
	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, tb.Wait(ctx))
	assert.Greater(t, time.Since(start), 50*time.Millisecond, "Wait blocks until a refill")
}

func TestTokenBucketWaitHonorsContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManagerGroupsAreIndependent(t *testing.T) {
	m := NewManager()
	m.Set(GroupAuth, NewTokenBucket(1, 1))

	assert.True(t, m.Allow(GroupAuth))
	assert.False(t, m.Allow(GroupAuth), "auth group exhausted")
	assert.True(t, m.Allow(GroupTrade), "trade group unaffected")
}

func TestManagerUnknownGroupUsesFallback(t *testing.T) {
	m := NewManager()
	assert.True(t, m.Allow("something-new"))
}
