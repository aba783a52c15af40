package pipeline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

func doAndDrain(t *testing.T, p *Pipeline, method, url string) (*http.Response, error) {
	t.Helper()

	resp, err := p.Do(context.Background(), method, url, nil, nil)
	if resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	return resp, err
}

func TestPipeline_RetriesUpToMax(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := New("test", Config{
		RetryMax:         2,
		RetryWaitMin:     time.Millisecond,
		RetryWaitMax:     5 * time.Millisecond,
		BreakerThreshold: 100,
	}, nil, nil, nil)

	resp, err := doAndDrain(t, p, http.MethodGet, server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	// Initial attempt plus RetryMax retries.
	assert.Equal(t, int64(3), attempts.Load())
}

func TestPipeline_RetryMaxZeroMeansSingleAttempt(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := New("test", Config{BreakerThreshold: 100}, nil, nil, nil)

	resp, err := doAndDrain(t, p, http.MethodGet, server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int64(1), attempts.Load())
}

func TestPipeline_NonIdempotentSingleAttempt(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := New("test", Config{
		RetryMax:         3,
		RetryWaitMin:     time.Millisecond,
		RetryWaitMax:     5 * time.Millisecond,
		BreakerThreshold: 100,
	}, nil, nil, nil)

	resp, err := doAndDrain(t, p, http.MethodPost, server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int64(1), attempts.Load())
}

func TestPipeline_RetryAfterHintOverridesBackoff(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := New("test", Config{
		RetryMax:         1,
		RetryWaitMin:     time.Millisecond,
		RetryWaitMax:     5 * time.Millisecond,
		BreakerThreshold: 100,
	}, nil, nil, nil)

	start := time.Now()

	resp, err := doAndDrain(t, p, http.MethodGet, server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// The hint, not the millisecond backoff, governed the wait.
	assert.Greater(t, time.Since(start), 500*time.Millisecond)
}

func TestPipeline_BreakerFailsFastWhenOpen(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := New("test", Config{
		BreakerThreshold: 2,
		BreakerCooldown:  time.Minute,
	}, nil, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := doAndDrain(t, p, http.MethodGet, server.URL)
		require.NoError(t, err)
	}

	assert.Equal(t, StateOpen, p.Breaker())

	_, err := doAndDrain(t, p, http.MethodGet, server.URL)
	require.Error(t, err)
	assert.True(t, nimbus.IsCircuitOpen(err))
	// The open breaker kept the third request off the wire.
	assert.Equal(t, int64(2), attempts.Load())
}

func TestPipeline_BreakerRecoversThroughProbe(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool

	failing.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := New("test", Config{
		BreakerThreshold: 1,
		BreakerCooldown:  10 * time.Millisecond,
	}, nil, nil, nil)

	_, err := doAndDrain(t, p, http.MethodGet, server.URL)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, p.Breaker())

	failing.Store(false)
	time.Sleep(20 * time.Millisecond)

	resp, err := doAndDrain(t, p, http.MethodGet, server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, StateClosed, p.Breaker())
}

func TestPipeline_AttemptTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	p := New("test", Config{
		AttemptTimeout:   20 * time.Millisecond,
		BreakerThreshold: 100,
	}, nil, nil, nil)

	start := time.Now()

	_, err := doAndDrain(t, p, http.MethodGet, server.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPipeline_TotalTimeoutBoundsRetries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := New("test", Config{
		RetryMax:         10,
		RetryWaitMin:     time.Second,
		RetryWaitMax:     time.Second,
		TotalTimeout:     50 * time.Millisecond,
		BreakerThreshold: 100,
	}, nil, nil, nil)

	start := time.Now()

	_, err := doAndDrain(t, p, http.MethodGet, server.URL)
	require.Error(t, err)
	// The total clock cut the enumeration short during the first backoff.
	assert.Less(t, time.Since(start), 700*time.Millisecond)
}

func TestPipeline_RateLimitRetryToggle(t *testing.T) {
	t.Parallel()

	t.Run("disabled propagates 429", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int64

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		p := New("test", Config{
			RetryMax:         3,
			RetryWaitMin:     time.Millisecond,
			RetryWaitMax:     5 * time.Millisecond,
			BreakerThreshold: 100,
		}, nil, nil, nil)

		resp, err := doAndDrain(t, p, http.MethodGet, server.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, int64(1), attempts.Load())
	})

	t.Run("enabled retries 429", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int64

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)

				return
			}

			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		p := New("test", Config{
			RetryMax:         3,
			RetryWaitMin:     time.Millisecond,
			RetryWaitMax:     5 * time.Millisecond,
			RetryOnRateLimit: true,
			BreakerThreshold: 100,
		}, nil, nil, nil)

		resp, err := doAndDrain(t, p, http.MethodGet, server.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(2), attempts.Load())
	})
}

func TestPipeline_ProactiveThrottleDelaysNextRequest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "100")
		w.Header().Set("X-RateLimit-Remaining", "1")
		w.Header().Set("X-RateLimit-Reset", "1")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := New("test", Config{
		ProactiveThrottle: true,
		ThrottleThreshold: 0.1,
		BreakerThreshold:  100,
	}, nil, nil, nil)

	_, err := doAndDrain(t, p, http.MethodGet, server.URL)
	require.NoError(t, err)

	start := time.Now()

	_, err = doAndDrain(t, p, http.MethodGet, server.URL)
	require.NoError(t, err)
	// window / (remaining+1) = ~500ms
	assert.Greater(t, time.Since(start), 200*time.Millisecond)
}

func TestPipeline_OutcomeClassification(t *testing.T) {
	t.Parallel()

	t.Run("response", func(t *testing.T) {
		t.Parallel()

		out := MakeOutcome(&http.Response{StatusCode: 200}, nil)
		assert.Equal(t, OutcomeResponse, out.Kind)
		assert.True(t, out.Success())

		out = MakeOutcome(&http.Response{StatusCode: 503}, nil)
		assert.Equal(t, OutcomeResponse, out.Kind)
		assert.False(t, out.Success())
	})

	t.Run("cancellation", func(t *testing.T) {
		t.Parallel()

		out := MakeOutcome(nil, context.Canceled)
		assert.Equal(t, OutcomeCanceled, out.Kind)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		out := MakeOutcome(nil, context.DeadlineExceeded)
		assert.Equal(t, OutcomeTimeout, out.Kind)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		out := MakeOutcome(nil, assert.AnError)
		assert.Equal(t, OutcomeTransportError, out.Kind)
	})
}
