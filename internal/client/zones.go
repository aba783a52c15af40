package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/nimbus-io/nimbus-client/internal/http"
	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

// ZonesClient implements nimbus.ZonesClient
type ZonesClient struct {
	httpClient *http.Client
}

// NewZonesClient creates a new zones client
func NewZonesClient(httpClient *http.Client) *ZonesClient {
	return &ZonesClient{
		httpClient: httpClient,
	}
}

// Create implements nimbus.ZonesClient.Create
func (c *ZonesClient) Create(ctx context.Context, request *nimbus.ZoneCreateRequest) (*nimbus.Zone, error) {
	resp, err := c.httpClient.Post(ctx, "/v1/zones", request)
	if err != nil {
		return nil, fmt.Errorf("creating zone: %w", err)
	}

	var zone nimbus.Zone
	if err := json.Unmarshal(resp.Body, &zone); err != nil {
		return nil, fmt.Errorf("parsing zone response: %w", err)
	}

	return &zone, nil
}

// Get implements nimbus.ZonesClient.Get
func (c *ZonesClient) Get(ctx context.Context, id string) (*nimbus.Zone, error) {
	path := fmt.Sprintf("/v1/zones/%s", id)

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting zone: %w", err)
	}

	var zone nimbus.Zone
	if err := json.Unmarshal(resp.Body, &zone); err != nil {
		return nil, fmt.Errorf("parsing zone response: %w", err)
	}

	return &zone, nil
}

// List implements nimbus.ZonesClient.List
func (c *ZonesClient) List(ctx context.Context, params *nimbus.QueryParams) (*nimbus.ListResponse[nimbus.Zone], error) {
	return c.ListWithPath(ctx, "/v1/zones", params)
}

// ListWithPath fetches one page of zones from an arbitrary path, which lets
// pagination iterators enumerate zone collections.
func (c *ZonesClient) ListWithPath(ctx context.Context, path string, params *nimbus.QueryParams) (*nimbus.ListResponse[nimbus.Zone], error) {
	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("listing zones: %w", err)
	}

	var result nimbus.ListResponse[nimbus.Zone]
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("parsing zones list response: %w", err)
	}

	return &result, nil
}

// Update implements nimbus.ZonesClient.Update
func (c *ZonesClient) Update(ctx context.Context, id string, request *nimbus.ZoneUpdateRequest) (*nimbus.Zone, error) {
	path := fmt.Sprintf("/v1/zones/%s", id)

	resp, err := c.httpClient.Put(ctx, path, request)
	if err != nil {
		return nil, fmt.Errorf("updating zone: %w", err)
	}

	var zone nimbus.Zone
	if err := json.Unmarshal(resp.Body, &zone); err != nil {
		return nil, fmt.Errorf("parsing zone response: %w", err)
	}

	return &zone, nil
}

// Delete implements nimbus.ZonesClient.Delete
func (c *ZonesClient) Delete(ctx context.Context, id string) error {
	path := fmt.Sprintf("/v1/zones/%s", id)

	_, err := c.httpClient.Delete(ctx, path)
	if err != nil {
		return fmt.Errorf("deleting zone: %w", err)
	}

	return nil
}
