package pipeline

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/nimbus-io/nimbus-client/internal/constants"
	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

// Config is the immutable resilience configuration one pipeline is bound to.
// It is read-only to the pipeline; invalid values are clamped at construction
// and never crash request execution.
type Config struct {
	MaxConcurrent     int
	QueueLimit        int
	RetryMax          int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RetryOnRateLimit  bool
	ProactiveThrottle bool
	ThrottleThreshold float64
	AttemptTimeout    time.Duration
	TotalTimeout      time.Duration
	BreakerThreshold  int
	BreakerCooldown   time.Duration
}

// ConfigFrom extracts the resilience configuration from a client config.
func ConfigFrom(c *nimbus.Config) Config {
	return Config{
		MaxConcurrent:     c.MaxConcurrent,
		QueueLimit:        c.QueueLimit,
		RetryMax:          c.RetryMax,
		RetryWaitMin:      c.RetryWaitMin,
		RetryWaitMax:      c.RetryWaitMax,
		RetryOnRateLimit:  c.RetryOnRateLimit,
		ProactiveThrottle: c.ProactiveThrottle,
		ThrottleThreshold: c.ThrottleThreshold,
		AttemptTimeout:    c.AttemptTimeout,
		TotalTimeout:      c.TotalTimeout,
		BreakerThreshold:  c.BreakerThreshold,
		BreakerCooldown:   c.BreakerCooldown,
	}
}

// normalized clamps invalid values to safe ones.
func (c Config) normalized() Config {
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}

	if c.RetryWaitMin <= 0 {
		c.RetryWaitMin = constants.DefaultRetryWaitMin
	}

	if c.RetryWaitMax <= 0 {
		c.RetryWaitMax = constants.DefaultRetryWaitMax
	}

	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = constants.DefaultAttemptTimeout
	}

	if c.TotalTimeout <= 0 {
		c.TotalTimeout = constants.DefaultTotalTimeout
	}

	return c
}

// Pipeline is a composed, reusable execution chain bound to one resilience
// configuration and one transport. Stages run in a fixed order, outermost to
// innermost: concurrency limiter, proactive throttle, total timeout, retry,
// circuit breaker, per-attempt timeout, transport. One pipeline exists per
// logical client name and is safe for concurrent use.
type Pipeline struct {
	name    string
	cfg     Config
	logger  nimbus.Logger
	metrics clientMetrics
	jitter  *jitterSource

	limiter  *ConcurrencyLimiter
	throttle *Throttle
	breaker  *CircuitBreaker

	// retrier handles idempotent requests when RetryMax > 0; single handles
	// everything else. Both share the stage transport chain.
	retrier *retryablehttp.Client
	single  *http.Client
	base    http.RoundTripper
}

// New builds a pipeline for the named logical client. A nil base transport
// uses http.DefaultTransport.
func New(name string, cfg Config, logger nimbus.Logger, metrics *Metrics, base http.RoundTripper) *Pipeline {
	cfg = cfg.normalized()

	if base == nil {
		base = http.DefaultTransport
	}

	cm := metrics.ForClient(name)

	p := &Pipeline{
		name:    name,
		cfg:     cfg,
		logger:  logger,
		metrics: cm,
		jitter:  newJitterSource(time.Now().UnixNano()),
		base:    base,
	}

	p.limiter = NewConcurrencyLimiter(name, cfg.MaxConcurrent, cfg.QueueLimit, logger, cm)
	p.throttle = NewThrottle(name, cfg.ProactiveThrottle, cfg.ThrottleThreshold, logger, cm)
	p.breaker = NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, p.onBreakerChange)

	// Attempt-level chain, outermost first: breaker, per-attempt timeout,
	// header observation, transport. The breaker wraps the attempt timeout so
	// its accounting is not subject to the attempt clock, and every retry
	// attempt individually respects breaker state.
	var transport http.RoundTripper = &observeTransport{next: base, throttle: p.throttle}
	transport = &attemptTimeoutTransport{next: transport, timeout: cfg.AttemptTimeout}
	transport = &breakerTransport{next: transport, breaker: p.breaker}

	p.single = &http.Client{Transport: transport}

	// A RetryMax of zero omits the retry stage entirely instead of running a
	// degenerate zero-attempt strategy.
	if cfg.RetryMax > 0 {
		rc := retryablehttp.NewClient()
		rc.HTTPClient = p.single
		rc.RetryMax = cfg.RetryMax
		rc.RetryWaitMin = cfg.RetryWaitMin
		rc.RetryWaitMax = cfg.RetryWaitMax
		rc.Logger = nil
		rc.CheckRetry = p.checkRetry
		rc.Backoff = p.backoff
		rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
		p.retrier = rc
	}

	return p
}

func (p *Pipeline) onBreakerChange(from, to CircuitState) {
	p.metrics.BreakerState(to)

	if p.logger != nil {
		p.logger.Warn("circuit breaker state change", map[string]interface{}{
			"client": p.name,
			"from":   from.String(),
			"to":     to.String(),
		})
	}
}

// Breaker exposes the client's breaker state for diagnostics.
func (p *Pipeline) Breaker() CircuitState {
	return p.breaker.State()
}

// Do executes one logical request through every stage. The caller owns the
// response body; closing it releases the concurrency permit and the total
// timeout. Cancelling ctx aborts whichever suspension point is active: the
// permit wait, a throttle or backoff delay, or the in-flight attempt.
func (p *Pipeline) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	release, err := p.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	p.metrics.RequestStarted()

	finish := func() {
		p.metrics.RequestFinished()
		release()
	}

	if err := p.throttle.Wait(ctx); err != nil {
		finish()

		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, p.cfg.TotalTimeout)

	resp, err := p.execute(opCtx, method, url, header, body)
	if err != nil {
		cancel()
		finish()

		return nil, err
	}

	resp.Body = &completionBody{ReadCloser: resp.Body, done: func() {
		cancel()
		finish()
	}}

	return resp, nil
}

// execute runs the retry stage (or a single attempt for non-idempotent
// methods and retry-disabled configurations).
func (p *Pipeline) execute(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	if p.retrier != nil && MethodIsIdempotent(method) {
		var rawBody interface{}
		if len(body) > 0 {
			rawBody = body
		}

		req, err := retryablehttp.NewRequestWithContext(ctx, method, url, rawBody)
		if err != nil {
			return nil, err
		}

		copyHeader(req.Header, header)

		return p.retrier.Do(req)
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	copyHeader(req.Header, header)

	return p.single.Do(req)
}

// Close releases idle transport connections. The pipeline must not be used
// after Close.
func (p *Pipeline) Close() {
	type idleCloser interface{ CloseIdleConnections() }

	if closer, ok := p.base.(idleCloser); ok {
		closer.CloseIdleConnections()
	}
}

func copyHeader(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// breakerTransport short-circuits attempts while the breaker is open and
// feeds every attempt outcome back into it.
type breakerTransport struct {
	next    http.RoundTripper
	breaker *CircuitBreaker
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.breaker.Allow() {
		return nil, nimbus.ErrCircuitBreakerOpen
	}

	resp, err := t.next.RoundTrip(req)

	if out := MakeOutcome(resp, err); out.Success() {
		t.breaker.RecordSuccess()
	} else if out.Kind != OutcomeCanceled {
		t.breaker.RecordFailure()
	}

	return resp, err
}

// attemptTimeoutTransport bounds a single attempt so one slow attempt cannot
// consume the whole total budget; the next retry starts with a fresh clock.
type attemptTimeoutTransport struct {
	next    http.RoundTripper
	timeout time.Duration
}

func (t *attemptTimeoutTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.timeout <= 0 {
		return t.next.RoundTrip(req)
	}

	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)

	resp, err := t.next.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()

		return nil, err
	}

	// The attempt deadline stays armed until the body is consumed.
	resp.Body = &completionBody{ReadCloser: resp.Body, done: cancel}

	return resp, nil
}

// observeTransport feeds every attempt's response headers to the throttle so
// retried attempts update quota tracking too.
type observeTransport struct {
	next     http.RoundTripper
	throttle *Throttle
}

func (t *observeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if resp != nil {
		t.throttle.Observe(resp.Header)
	}

	return resp, err
}

// completionBody runs a completion hook exactly once when the response body
// is closed.
type completionBody struct {
	io.ReadCloser
	done func()
	ran  bool
}

func (b *completionBody) Close() error {
	err := b.ReadCloser.Close()

	if !b.ran {
		b.ran = true
		b.done()
	}

	return err
}
