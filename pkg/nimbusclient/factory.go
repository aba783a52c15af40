package nimbusclient

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nimbus-io/nimbus-client/internal/client"
	"github.com/nimbus-io/nimbus-client/internal/pipeline"
	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

// Factory builds and caches Nimbus API clients by logical name. Each name
// gets exactly one client regardless of how many goroutines ask for it, so
// resilience state (breaker, limiter, throttle) is shared by everything
// using that name. Two different names never share state even when their
// configurations are identical.
type Factory struct {
	mu      sync.Mutex
	configs map[string]*nimbus.Config
	clients map[string]nimbus.Client
	metrics *pipeline.Metrics
	closed  bool
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithMetrics registers the factory's pipeline metrics with reg. All clients
// created by the factory report into the same collectors, labeled by client
// name.
func WithMetrics(reg prometheus.Registerer) FactoryOption {
	return func(f *Factory) {
		f.metrics = pipeline.NewMetrics(reg)
	}
}

// NewFactory creates a factory over the given named configurations. Configs
// may be added later with Register; clients are built lazily on first use.
func NewFactory(configs map[string]*nimbus.Config, opts ...FactoryOption) *Factory {
	factory := &Factory{
		configs: make(map[string]*nimbus.Config, len(configs)),
		clients: make(map[string]nimbus.Client),
	}

	for name, config := range configs {
		factory.configs[name] = config
	}

	for _, opt := range opts {
		opt(factory)
	}

	return factory
}

// Register adds or replaces the configuration for a logical client name. It
// does not affect an already built client for that name.
func (f *Factory) Register(name string, config *nimbus.Config) error {
	if config == nil {
		return nimbus.ErrConfigRequired
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nimbus.ErrFactoryClosed
	}

	f.configs[name] = config

	return nil
}

// Client returns the client for the given logical name, building it on first
// use. Construction validates the configuration eagerly; the returned error
// names the client and the offending field. A failed construction is not
// cached, so a later call after fixing the config succeeds.
func (f *Factory) Client(name string) (nimbus.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, nimbus.ErrFactoryClosed
	}

	if built, ok := f.clients[name]; ok {
		return built, nil
	}

	config, ok := f.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", nimbus.ErrClientNotConfigured, name)
	}

	normalizeEndpoint(config)

	built, err := client.New(name, config, f.metrics)
	if err != nil {
		var cfgErr *nimbus.ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Client = name
		}

		return nil, err
	}

	f.clients[name] = built

	return built, nil
}

// Names returns the logical client names the factory knows about.
func (f *Factory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.configs))
	for name := range f.configs {
		names = append(names, name)
	}

	return names
}

// Close shuts down every client the factory built. It is safe to call more
// than once; only the first call does the work. The factory must not be used
// after Close.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true

	var errs []error

	for name, built := range f.clients {
		if err := built.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing client %q: %w", name, err))
		}
	}

	f.clients = nil

	return errors.Join(errs...)
}
