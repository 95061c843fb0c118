package antibot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leobrain/crawler/internal/domain"
)

func TestBeforeRequestNoPacing(t *testing.T) {
	t.Parallel()

	m := New(0, 0, false, nil)
	req := domain.NewRequest("https://example.com")

	start := time.Now()
	require.NoError(t, m.BeforeRequest(context.Background(), req))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestBeforeRequestDelay(t *testing.T) {
	t.Parallel()

	m := New(0, 50*time.Millisecond, false, nil)
	req := domain.NewRequest("https://example.com")

	start := time.Now()
	require.NoError(t, m.BeforeRequest(context.Background(), req))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestBeforeRequestJitterBounds(t *testing.T) {
	t.Parallel()

	delay := 20 * time.Millisecond
	m := New(0, delay, true, nil)
	req := domain.NewRequest("https://example.com")

	for i := 0; i < 5; i++ {
		start := time.Now()
		require.NoError(t, m.BeforeRequest(context.Background(), req))
		elapsed := time.Since(start)

		assert.GreaterOrEqual(t, elapsed, delay)
		// Upper bound is delay + 5*delay plus scheduling slack.
		assert.Less(t, elapsed, 250*time.Millisecond)
	}
}

func TestBeforeRequestRateLimits(t *testing.T) {
	t.Parallel()

	m := New(50, 0, false, nil)
	req := domain.NewRequest("https://example.com")

	require.NoError(t, m.BeforeRequest(context.Background(), req))

	start := time.Now()
	require.NoError(t, m.BeforeRequest(context.Background(), req))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond,
		"second request waits for a token refill")
}

func TestBeforeRequestContextCancelled(t *testing.T) {
	t.Parallel()

	m := New(0, 10*time.Second, false, nil)
	req := domain.NewRequest("https://example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	beforeErr := m.BeforeRequest(ctx, req)

	require.Error(t, beforeErr)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAfterRequestIsNoOp(t *testing.T) {
	t.Parallel()

	m := New(0, 0, false, nil)
	m.AfterRequest(context.Background(), &domain.Response{StatusCode: 200})
}
