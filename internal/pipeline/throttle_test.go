package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitHeaders(limit, remaining int, reset string) http.Header {
	header := http.Header{}
	header.Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	header.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

	if reset != "" {
		header.Set("X-RateLimit-Reset", reset)
	}

	return header
}

func TestParseRateLimitHeaders(t *testing.T) {
	t.Parallel()

	t.Run("absent headers", func(t *testing.T) {
		t.Parallel()

		_, ok := ParseRateLimitHeaders(http.Header{})
		assert.False(t, ok)
	})

	t.Run("limit only", func(t *testing.T) {
		t.Parallel()

		header := http.Header{}
		header.Set("X-RateLimit-Limit", "100")

		_, ok := ParseRateLimitHeaders(header)
		assert.False(t, ok)
	})

	t.Run("malformed values", func(t *testing.T) {
		t.Parallel()

		header := http.Header{}
		header.Set("X-RateLimit-Limit", "many")
		header.Set("X-RateLimit-Remaining", "3")

		_, ok := ParseRateLimitHeaders(header)
		assert.False(t, ok)
	})

	t.Run("delta seconds reset", func(t *testing.T) {
		t.Parallel()

		info, ok := ParseRateLimitHeaders(rateLimitHeaders(100, 5, "30"))
		require.True(t, ok)
		assert.Equal(t, 100, info.Limit)
		assert.Equal(t, 5, info.Remaining)
		assert.WithinDuration(t, time.Now().Add(30*time.Second), info.ResetAt, time.Second)
	})

	t.Run("unix timestamp reset", func(t *testing.T) {
		t.Parallel()

		reset := time.Now().Add(time.Minute).Unix()

		info, ok := ParseRateLimitHeaders(rateLimitHeaders(100, 5, fmt.Sprintf("%d", reset)))
		require.True(t, ok)
		assert.WithinDuration(t, time.Unix(reset, 0), info.ResetAt, time.Second)
	})

	t.Run("missing reset", func(t *testing.T) {
		t.Parallel()

		info, ok := ParseRateLimitHeaders(rateLimitHeaders(100, 5, ""))
		require.True(t, ok)
		assert.True(t, info.ResetAt.IsZero())
	})
}

func TestThrottle_Observe(t *testing.T) {
	t.Parallel()

	t.Run("quota above threshold schedules nothing", func(t *testing.T) {
		t.Parallel()

		throttle := NewThrottle("test", true, 0.1, nil, clientMetrics{})
		throttle.Observe(rateLimitHeaders(100, 50, "30"))

		start := time.Now()
		require.NoError(t, throttle.Wait(context.Background()))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("low quota delays the next request", func(t *testing.T) {
		t.Parallel()

		throttle := NewThrottle("test", true, 0.1, nil, clientMetrics{})
		// 2 of 100 remaining with 1s left in the window.
		throttle.Observe(rateLimitHeaders(100, 2, "1"))

		start := time.Now()
		require.NoError(t, throttle.Wait(context.Background()))
		// window / (remaining+1) = ~333ms
		assert.Greater(t, time.Since(start), 150*time.Millisecond)
	})

	t.Run("disabled throttle ignores headers", func(t *testing.T) {
		t.Parallel()

		throttle := NewThrottle("test", false, 0.1, nil, clientMetrics{})
		throttle.Observe(rateLimitHeaders(100, 0, "60"))

		start := time.Now()
		require.NoError(t, throttle.Wait(context.Background()))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("missing reset schedules nothing", func(t *testing.T) {
		t.Parallel()

		throttle := NewThrottle("test", true, 0.1, nil, clientMetrics{})
		throttle.Observe(rateLimitHeaders(100, 0, ""))

		start := time.Now()
		require.NoError(t, throttle.Wait(context.Background()))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})
}

func TestThrottle_WaitCancellation(t *testing.T) {
	t.Parallel()

	throttle := NewThrottle("test", true, 0.1, nil, clientMetrics{})
	throttle.Observe(rateLimitHeaders(100, 0, "60"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := throttle.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
