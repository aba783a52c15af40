package nimbus

import (
	"context"
	"time"

	"gopkg.in/yaml.v3"
)

// ZonesClient provides access to zone resources.
type ZonesClient interface {
	Create(ctx context.Context, request *ZoneCreateRequest) (*Zone, error)
	Get(ctx context.Context, id string) (*Zone, error)
	List(ctx context.Context, params *QueryParams) (*ListResponse[Zone], error)
	ListWithPath(ctx context.Context, path string, params *QueryParams) (*ListResponse[Zone], error)
	Update(ctx context.Context, id string, request *ZoneUpdateRequest) (*Zone, error)
	Delete(ctx context.Context, id string) error
}

// RecordsClient provides access to DNS record resources. Record listings are
// cursor-paginated by the API.
type RecordsClient interface {
	Create(ctx context.Context, zoneID string, request *RecordCreateRequest) (*Record, error)
	Get(ctx context.Context, zoneID, id string) (*Record, error)
	ListPage(ctx context.Context, zoneID, cursor string) (*CursorPage[Record], error)
	ListAll(ctx context.Context, zoneID string) *CursorIterator[Record]
	Delete(ctx context.Context, zoneID, id string) error
}

// Client is the interface implemented by a configured Nimbus API client.
type Client interface {
	Zones() ZonesClient
	Records() RecordsClient

	// Do executes a raw request through the client's resilience pipeline.
	Do(ctx context.Context, req *Request) (*Response, error)

	// Close releases the client's transport resources. A client must not be
	// used after Close.
	Close() error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a nimbus.Client.
//
// The zero value of every resilience field selects a sensible default; see
// the individual fields. Invalid values never crash the pipeline: negative
// limits are clamped, and RetryMax of zero disables retrying entirely (the
// retry stage is omitted from the pipeline rather than executing a degenerate
// zero-attempt strategy).
type Config struct {
	// APIEndpoint: base URL for the Nimbus API (e.g., "https://api.example.com").
	// Required.
	APIEndpoint string `yaml:"api_endpoint"`

	// APIToken: bearer token attached to every request. Optional; requests
	// are sent unauthenticated when empty.
	APIToken string `yaml:"api_token"`

	// UserAgent overrides the default User-Agent header sent by the client.
	UserAgent string `yaml:"user_agent,omitempty"`

	// Debug enables verbose HTTP request/response logging when a Logger is
	// provided.
	Debug bool `yaml:"debug,omitempty"`

	// Logger: optional structured logger used by the HTTP layer and the
	// pipeline's retry/breaker transition hooks.
	Logger Logger `yaml:"-"`

	// MaxConcurrent bounds in-flight requests on this logical client. 0
	// selects the default; negative values are clamped to 1.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// QueueLimit bounds the limiter's FIFO wait queue. Callers beyond the
	// queue limit receive an OverloadError immediately.
	QueueLimit int `yaml:"queue_limit,omitempty"`

	// RetryMax is the maximum number of retries for transient failures
	// (connection errors, timeouts, 408/5xx, and 429 when RetryOnRateLimit
	// is set). 0 disables retrying.
	RetryMax int `yaml:"retry_max,omitempty"`

	// RetryWaitMin is the base delay for exponential backoff between retries.
	RetryWaitMin time.Duration `yaml:"retry_wait_min,omitempty"`

	// RetryWaitMax caps the backoff delay between retries.
	RetryWaitMax time.Duration `yaml:"retry_wait_max,omitempty"`

	// RetryOnRateLimit enables retrying responses with status 429. When
	// false a 429 propagates to the caller on the first attempt.
	RetryOnRateLimit bool `yaml:"retry_on_rate_limit,omitempty"`

	// ProactiveThrottle enables client-side smoothing based on rate-limit
	// response headers: when the remaining quota falls below
	// ThrottleThreshold of the limit, the next request on this client is
	// delayed until capacity recovers.
	ProactiveThrottle bool `yaml:"proactive_throttle,omitempty"`

	// ThrottleThreshold is the remaining/limit fraction that triggers
	// proactive throttling. 0 selects the default (0.1).
	ThrottleThreshold float64 `yaml:"throttle_threshold,omitempty"`

	// AttemptTimeout bounds one transport attempt. Each retry attempt gets a
	// fresh attempt clock.
	AttemptTimeout time.Duration `yaml:"attempt_timeout,omitempty"`

	// TotalTimeout bounds a whole logical operation including every retry
	// and backoff delay.
	TotalTimeout time.Duration `yaml:"total_timeout,omitempty"`

	// BreakerThreshold is the run of consecutive failures that opens the
	// circuit breaker for this client.
	BreakerThreshold int `yaml:"breaker_threshold,omitempty"`

	// BreakerCooldown is how long the breaker stays open before allowing a
	// single half-open probe.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown,omitempty"`

	// Cache configures the optional GET-response cache. Nil disables caching.
	Cache *CacheConfig `yaml:"cache,omitempty"`

	// Interceptors: optional request/response hooks run around every request.
	Interceptors *InterceptorChain `yaml:"-"`
}

// Validate checks the configuration for missing required fields. It returns
// a *ConfigError naming the offending field; the client name is filled in by
// the factory.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigError{Field: "config", Reason: "required"}
	}

	if c.APIEndpoint == "" {
		return &ConfigError{Field: "api_endpoint", Reason: "required"}
	}

	if c.ThrottleThreshold < 0 || c.ThrottleThreshold > 1 {
		return &ConfigError{Field: "throttle_threshold", Reason: "must be a fraction between 0 and 1"}
	}

	return nil
}

// RedactedYAML renders the configuration as YAML with the API token masked,
// for diagnostic output.
func (c *Config) RedactedYAML() (string, error) {
	redacted := *c
	if redacted.APIToken != "" {
		redacted.APIToken = "***"
	}

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return "", err
	}

	return string(out), nil
}
