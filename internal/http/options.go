package http

import (
	"time"

	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger used for debug and warning output.
func WithLogger(logger nimbus.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response debug logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithCache enables GET-response caching with the given backend and TTL.
func WithCache(cache nimbus.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithInterceptors attaches a request/response interceptor chain.
func WithInterceptors(chain *nimbus.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}
