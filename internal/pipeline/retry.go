package pipeline

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimbus-io/nimbus-client/internal/constants"
)

// ShouldRetry is the retry predicate: it decides, from an attempt outcome and
// the idempotency classification, whether another attempt should occur.
// Rules, in order: non-idempotent methods are never retried; transport and
// timeout failures are; 408 and 5xx responses are; 429 only when
// retryOnRateLimit is set; everything else is final.
func ShouldRetry(out Outcome, idempotent bool, retryOnRateLimit bool) bool {
	if !idempotent {
		return false
	}

	switch out.Kind {
	case OutcomeCanceled:
		return false
	case OutcomeTransportError, OutcomeTimeout:
		return true
	case OutcomeResponse:
		switch {
		case out.StatusCode == http.StatusRequestTimeout:
			return true
		case out.StatusCode >= 500:
			return true
		case out.StatusCode == http.StatusTooManyRequests:
			return retryOnRateLimit
		default:
			return false
		}
	default:
		return false
	}
}

// jitterSource is a locked rand shared by backoff computations. Seeded once;
// retry delay is otherwise a pure function of attempt number and this source.
type jitterSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newJitterSource(seed int64) *jitterSource {
	return &jitterSource{rng: rand.New(rand.NewSource(seed))}
}

func (j *jitterSource) Float64() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.rng.Float64()
}

// BackoffDelay computes the exponential backoff delay for a retry attempt:
// base * 2^attempt with up to 50% random jitter, capped at max.
func BackoffDelay(attempt int, base, max time.Duration, jitter *jitterSource) time.Duration {
	if base <= 0 {
		base = constants.DefaultRetryWaitMin
	}

	if max <= 0 {
		max = constants.DefaultRetryWaitMax
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max

			break
		}
	}

	if jitter != nil {
		// Jitter in [0.5, 1.0) of the computed delay keeps concurrent
		// retries from synchronizing.
		delay = time.Duration(float64(delay) * (0.5 + jitter.Float64()/2))
	}

	if delay > max {
		delay = max
	}

	return delay
}

// parseRetryAfter parses a Retry-After header value in either delay-seconds
// or HTTP-date form. Returns 0 when absent or unparsable.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}

		delay := time.Duration(seconds) * time.Second
		if delay > constants.MaxRetryAfter {
			delay = constants.MaxRetryAfter
		}

		return delay
	}

	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay <= 0 {
			return 0
		}

		if delay > constants.MaxRetryAfter {
			delay = constants.MaxRetryAfter
		}

		return delay
	}

	return 0
}

// checkRetry adapts ShouldRetry to retryablehttp's CheckRetry signature. The
// pipeline routes non-idempotent requests around the retry stage entirely, so
// every request seen here is already classified idempotent.
func (p *Pipeline) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	out := MakeOutcome(resp, err)
	retry := ShouldRetry(out, true, p.cfg.RetryOnRateLimit)

	if retry {
		p.metrics.RetryScheduled()

		if p.logger != nil {
			p.logger.Warn("retrying request", map[string]interface{}{
				"client":  p.name,
				"outcome": out.Kind.String(),
				"status":  out.StatusCode,
			})
		}
	}

	return retry, nil
}

// backoff adapts BackoffDelay to retryablehttp's Backoff signature, honoring
// a server-supplied Retry-After hint over the computed delay.
func (p *Pipeline) backoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if resp != nil {
		if hint := parseRetryAfter(resp.Header.Get("Retry-After")); hint > 0 {
			return hint
		}
	}

	return BackoffDelay(attemptNum, min, max, p.jitter)
}
