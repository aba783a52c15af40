package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nimbus-io/nimbus-client/internal/constants"
	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

// ConcurrencyLimiter bounds in-flight requests on one logical client with a
// fixed number of permits and a bounded FIFO wait queue. Callers beyond the
// queue limit are rejected immediately with a distinct overload error; a
// rejection is not a transport failure and is never retried.
type ConcurrencyLimiter struct {
	client     string
	permits    int64
	queueLimit int64
	sem        *semaphore.Weighted
	queued     int64
	logger     nimbus.Logger
	metrics    clientMetrics

	// hold-time EWMA backing the estimated-wait hint on rejections.
	holdMu  sync.Mutex
	avgHold time.Duration
}

// NewConcurrencyLimiter creates a limiter with the given permit and queue
// limits. Non-positive values select defaults; a permit limit below one is
// clamped to one.
func NewConcurrencyLimiter(client string, permits, queueLimit int, logger nimbus.Logger, metrics clientMetrics) *ConcurrencyLimiter {
	if permits == 0 {
		permits = constants.DefaultMaxConcurrent
	}

	if permits < 1 {
		permits = 1
	}

	if queueLimit <= 0 {
		queueLimit = constants.DefaultQueueLimit
	}

	return &ConcurrencyLimiter{
		client:     client,
		permits:    int64(permits),
		queueLimit: int64(queueLimit),
		sem:        semaphore.NewWeighted(int64(permits)),
		logger:     logger,
		metrics:    metrics,
	}
}

// Acquire obtains a permit, queueing (oldest-first) when all permits are in
// use. It returns an *nimbus.OverloadError when the queue is full, or the
// context error when the caller is cancelled while waiting.
func (l *ConcurrencyLimiter) Acquire(ctx context.Context) (func(), error) {
	if l.sem.TryAcquire(1) {
		return l.releaseFunc(), nil
	}

	if atomic.AddInt64(&l.queued, 1) > l.queueLimit {
		atomic.AddInt64(&l.queued, -1)

		overload := &nimbus.OverloadError{
			Client:        l.client,
			EstimatedWait: l.estimateWait(),
		}

		l.metrics.OverloadRejected()

		if l.logger != nil {
			l.logger.Warn("concurrency limiter rejected request: wait queue full", map[string]interface{}{
				"client":         l.client,
				"queue_limit":    l.queueLimit,
				"estimated_wait": overload.EstimatedWait.String(),
			})
		}

		return nil, overload
	}

	err := l.sem.Acquire(ctx, 1)

	atomic.AddInt64(&l.queued, -1)

	if err != nil {
		return nil, err
	}

	return l.releaseFunc(), nil
}

func (l *ConcurrencyLimiter) releaseFunc() func() {
	start := time.Now()

	var once sync.Once

	return func() {
		once.Do(func() {
			l.recordHold(time.Since(start))
			l.sem.Release(1)
		})
	}
}

func (l *ConcurrencyLimiter) recordHold(hold time.Duration) {
	l.holdMu.Lock()
	defer l.holdMu.Unlock()

	if l.avgHold == 0 {
		l.avgHold = hold

		return
	}

	// EWMA with factor 1/8, the usual smoothed-RTT weighting.
	l.avgHold += (hold - l.avgHold) / 8
}

// estimateWait guesses how long a newly queued caller would wait: queue depth
// times the average permit hold time, divided across permits. Zero when no
// hold time has been observed yet.
func (l *ConcurrencyLimiter) estimateWait() time.Duration {
	l.holdMu.Lock()
	avg := l.avgHold
	l.holdMu.Unlock()

	if avg == 0 {
		return 0
	}

	ahead := atomic.LoadInt64(&l.queued) + l.permits

	return time.Duration(ahead) * avg / time.Duration(l.permits)
}

// Queued returns the current wait-queue depth.
func (l *ConcurrencyLimiter) Queued() int64 {
	return atomic.LoadInt64(&l.queued)
}
