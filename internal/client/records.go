package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/nimbus-io/nimbus-client/internal/http"
	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

// RecordsClient implements nimbus.RecordsClient
type RecordsClient struct {
	httpClient *http.Client
}

// NewRecordsClient creates a new records client
func NewRecordsClient(httpClient *http.Client) *RecordsClient {
	return &RecordsClient{
		httpClient: httpClient,
	}
}

// Create implements nimbus.RecordsClient.Create
func (c *RecordsClient) Create(ctx context.Context, zoneID string, request *nimbus.RecordCreateRequest) (*nimbus.Record, error) {
	path := fmt.Sprintf("/v1/zones/%s/records", zoneID)

	resp, err := c.httpClient.Post(ctx, path, request)
	if err != nil {
		return nil, fmt.Errorf("creating record: %w", err)
	}

	var record nimbus.Record
	if err := json.Unmarshal(resp.Body, &record); err != nil {
		return nil, fmt.Errorf("parsing record response: %w", err)
	}

	return &record, nil
}

// Get implements nimbus.RecordsClient.Get
func (c *RecordsClient) Get(ctx context.Context, zoneID, id string) (*nimbus.Record, error) {
	path := fmt.Sprintf("/v1/zones/%s/records/%s", zoneID, id)

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}

	var record nimbus.Record
	if err := json.Unmarshal(resp.Body, &record); err != nil {
		return nil, fmt.Errorf("parsing record response: %w", err)
	}

	return &record, nil
}

// ListPage implements nimbus.RecordsClient.ListPage. An empty cursor fetches
// the first page.
func (c *RecordsClient) ListPage(ctx context.Context, zoneID, cursor string) (*nimbus.CursorPage[nimbus.Record], error) {
	path := fmt.Sprintf("/v1/zones/%s/records", zoneID)

	var query url.Values
	if cursor != "" {
		query = url.Values{"cursor": []string{cursor}}
	}

	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	var page nimbus.CursorPage[nimbus.Record]
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, fmt.Errorf("parsing records page response: %w", err)
	}

	return &page, nil
}

// ListAll implements nimbus.RecordsClient.ListAll. The returned iterator is
// lazy; no request is sent until the first Next call.
func (c *RecordsClient) ListAll(ctx context.Context, zoneID string) *nimbus.CursorIterator[nimbus.Record] {
	return nimbus.NewCursorIterator(ctx, func(ctx context.Context, cursor string) (*nimbus.CursorPage[nimbus.Record], error) {
		return c.ListPage(ctx, zoneID, cursor)
	})
}

// Delete implements nimbus.RecordsClient.Delete
func (c *RecordsClient) Delete(ctx context.Context, zoneID, id string) error {
	path := fmt.Sprintf("/v1/zones/%s/records/%s", zoneID, id)

	_, err := c.httpClient.Delete(ctx, path)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}

	return nil
}
