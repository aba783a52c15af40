package pipeline

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimbus-io/nimbus-client/internal/constants"
	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

// RateLimitInfo is the normalized view of the server's rate-limit headers.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// ParseRateLimitHeaders extracts X-RateLimit-Limit/Remaining/Reset from a
// response. Reset is accepted as either a unix timestamp or delta seconds.
// Returns false when the headers are absent or unusable.
func ParseRateLimitHeaders(header http.Header) (RateLimitInfo, bool) {
	limitStr := header.Get("X-RateLimit-Limit")
	remainingStr := header.Get("X-RateLimit-Remaining")

	if limitStr == "" || remainingStr == "" {
		return RateLimitInfo{}, false
	}

	limit, err := strconv.Atoi(strings.TrimSpace(limitStr))
	if err != nil || limit <= 0 {
		return RateLimitInfo{}, false
	}

	remaining, err := strconv.Atoi(strings.TrimSpace(remainingStr))
	if err != nil || remaining < 0 {
		return RateLimitInfo{}, false
	}

	info := RateLimitInfo{Limit: limit, Remaining: remaining}

	if resetStr := header.Get("X-RateLimit-Reset"); resetStr != "" {
		if reset, err := strconv.ParseInt(strings.TrimSpace(resetStr), 10, 64); err == nil {
			// Heuristic: values beyond a year's worth of seconds are unix
			// timestamps, smaller values are window-relative deltas.
			if reset > 365*24*3600 {
				info.ResetAt = time.Unix(reset, 0)
			} else {
				info.ResetAt = time.Now().Add(time.Duration(reset) * time.Second)
			}
		}
	}

	return info, true
}

// Throttle is the rate-limit header interpreter: it inspects quota headers on
// every response and, when the remaining quota falls below a fraction of the
// limit, delays the next request on the logical client until capacity
// recovers. This is advisory smoothing to avoid reaching 429, not a
// correctness mechanism; the retry predicate's 429 handling is the backstop.
type Throttle struct {
	enabled   bool
	threshold float64
	client    string
	logger    nimbus.Logger
	metrics   clientMetrics

	mu          sync.Mutex
	nextAllowed time.Time
}

// NewThrottle creates a throttle. A non-positive threshold selects the
// default fraction.
func NewThrottle(client string, enabled bool, threshold float64, logger nimbus.Logger, metrics clientMetrics) *Throttle {
	if threshold <= 0 || threshold > 1 {
		threshold = constants.ThrottleThreshold
	}

	return &Throttle{
		enabled:   enabled,
		threshold: threshold,
		client:    client,
		logger:    logger,
		metrics:   metrics,
	}
}

// Observe inspects one response's rate-limit headers and schedules a delay
// for the next request when quota is running low.
func (t *Throttle) Observe(header http.Header) {
	if t == nil || !t.enabled {
		return
	}

	info, ok := ParseRateLimitHeaders(header)
	if !ok {
		return
	}

	if float64(info.Remaining) >= t.threshold*float64(info.Limit) {
		return
	}

	delay := t.delayFor(info)
	if delay <= 0 {
		return
	}

	t.mu.Lock()
	next := time.Now().Add(delay)
	if next.After(t.nextAllowed) {
		t.nextAllowed = next
	}
	t.mu.Unlock()

	t.metrics.ThrottleScheduled(delay)

	if t.logger != nil {
		t.logger.Debug("proactive throttle engaged", map[string]interface{}{
			"client":    t.client,
			"remaining": info.Remaining,
			"limit":     info.Limit,
			"delay":     delay.String(),
		})
	}
}

// delayFor spreads the remaining quota over the rest of the window: with r
// requests left and d until reset, the next request is pushed d/(r+1) out.
func (t *Throttle) delayFor(info RateLimitInfo) time.Duration {
	if info.ResetAt.IsZero() {
		return 0
	}

	window := time.Until(info.ResetAt)
	if window <= 0 {
		return 0
	}

	return window / time.Duration(info.Remaining+1)
}

// Wait blocks until the scheduled delay (if any) has elapsed, or the context
// is cancelled.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || !t.enabled {
		return nil
	}

	t.mu.Lock()
	wait := time.Until(t.nextAllowed)
	t.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
