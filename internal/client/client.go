// Package client implements the nimbus.Client interface on top of the
// internal HTTP layer and resilience pipeline.
package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nimbus-io/nimbus-client/internal/http"
	"github.com/nimbus-io/nimbus-client/internal/pipeline"
	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

// Client implements the nimbus.Client interface.
type Client struct {
	name       string
	httpClient *http.Client
	cache      nimbus.Cache
	logger     nimbus.Logger

	// Resource clients
	zones   nimbus.ZonesClient
	records nimbus.RecordsClient
}

// New creates a fully wired client for the given logical name. The
// configuration must already be validated.
func New(name string, config *nimbus.Config, metrics *pipeline.Metrics) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	pipe := pipeline.New(name, pipeline.ConfigFrom(config), config.Logger, metrics, nil)

	opts := []http.Option{
		http.WithToken(config.APIToken),
		http.WithUserAgent(config.UserAgent),
		http.WithLogger(config.Logger),
		http.WithDebug(config.Debug),
		http.WithInterceptors(config.Interceptors),
	}

	var cache nimbus.Cache

	if config.Cache != nil {
		var err error

		cache, err = nimbus.NewCacheFromConfig(config.Cache)
		if err != nil {
			return nil, fmt.Errorf("building response cache: %w", err)
		}

		opts = append(opts, http.WithCache(cache, config.Cache.TTL))
	}

	client := &Client{
		name:       name,
		httpClient: http.NewClient(config.APIEndpoint, pipe, opts...),
		cache:      cache,
		logger:     config.Logger,
	}

	client.zones = NewZonesClient(client.httpClient)
	client.records = NewRecordsClient(client.httpClient)

	return client, nil
}

// Zones returns the zones resource client.
func (c *Client) Zones() nimbus.ZonesClient {
	return c.zones
}

// Records returns the records resource client.
func (c *Client) Records() nimbus.RecordsClient {
	return c.records
}

// Do executes a raw request through the client's resilience pipeline.
func (c *Client) Do(ctx context.Context, req *nimbus.Request) (*nimbus.Response, error) {
	headers := make(map[string]string)
	for key, values := range req.Headers {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	resp, err := c.httpClient.Do(ctx, &http.Request{
		Method:  req.Method,
		Path:    req.Path,
		Query:   url.Values(req.Query),
		Headers: headers,
		Body:    req.Body,
	})
	if resp == nil {
		return nil, err
	}

	return &nimbus.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}, err
}

// Close releases the client's transport and cache resources.
func (c *Client) Close() error {
	c.httpClient.Close()

	if closer, ok := c.cache.(interface{ Close() error }); ok {
		return closer.Close()
	}

	return nil
}
