package constants

import "time"

// HTTP and network timeouts.
const (
	// DefaultAttemptTimeout bounds a single transport attempt.
	DefaultAttemptTimeout = 30 * time.Second

	// DefaultTotalTimeout bounds a whole logical operation, retries included.
	DefaultTotalTimeout = 2 * time.Minute
)

// Retry limits and backoff.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 5

	// DefaultRetryWaitMin is the base delay for exponential backoff.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax caps the backoff delay between retries.
	DefaultRetryWaitMax = 30 * time.Second

	// MaxRetryAfter caps server-supplied Retry-After hints.
	MaxRetryAfter = 1 * time.Hour
)

// Concurrency limits.
const (
	// DefaultMaxConcurrent limits in-flight requests per logical client.
	DefaultMaxConcurrent = 10

	// DefaultQueueLimit bounds the limiter's FIFO wait queue.
	DefaultQueueLimit = 100
)

// Circuit breaker defaults.
const (
	// BreakerThreshold is the consecutive-failure count that opens the breaker.
	BreakerThreshold = 5

	// BreakerCooldown is how long the breaker stays open before a probe.
	BreakerCooldown = 30 * time.Second
)

// Proactive throttling defaults.
const (
	// ThrottleThreshold is the remaining/limit fraction below which the
	// interpreter starts delaying requests.
	ThrottleThreshold = 0.1
)

// Pagination limits.
const (
	// DefaultPageSize is the default number of items per page.
	DefaultPageSize = 50

	// MaxPages guards FetchAllPages against runaway enumeration.
	MaxPages = 1000
)

// Cache defaults.
const (
	// DefaultCacheSize is the default memory cache size limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default cache time-to-live.
	DefaultCacheTTL = 5 * time.Minute
)

// Breaker state names used in logs and metrics.
const (
	StatusClosed   = "closed"
	StatusOpen     = "open"
	StatusHalfOpen = "half-open"
)
