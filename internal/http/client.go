// Package http implements the HTTP layer used by resource clients: request
// building, JSON encoding, error parsing, optional GET-response caching, and
// execution through the resilience pipeline.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nimbus-io/nimbus-client/internal/constants"
	"github.com/nimbus-io/nimbus-client/internal/pipeline"
	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

const defaultUserAgent = "nimbus-go-client"

// Request represents an API request.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    interface{}
}

// Response represents an API response with the body fully read.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client executes API requests through a resilience pipeline.
type Client struct {
	baseURL      string
	pipe         *pipeline.Pipeline
	token        string
	userAgent    string
	logger       nimbus.Logger
	debug        bool
	cache        nimbus.Cache
	cacheTTL     time.Duration
	interceptors *nimbus.InterceptorChain
}

// NewClient creates an HTTP client bound to one pipeline.
func NewClient(baseURL string, pipe *pipeline.Pipeline, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		pipe:      pipe,
		userAgent: defaultUserAgent,
		cacheTTL:  constants.DefaultCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do executes a request and returns the response. Responses with status 400
// and above are returned together with a *nimbus.ResponseError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	intercepted, err := c.runRequestInterceptors(ctx, req)
	if err != nil {
		return nil, err
	}

	fullURL := c.buildURL(req)

	cacheKey := req.Method + " " + fullURL
	if cached := c.cachedResponse(ctx, req.Method, cacheKey); cached != nil {
		return cached, nil
	}

	var bodyBytes []byte

	if req.Body != nil {
		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}

	header := make(http.Header)
	header.Set("Accept", "application/json")
	header.Set("User-Agent", c.userAgent)

	if len(bodyBytes) > 0 {
		header.Set("Content-Type", "application/json")
	}

	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	for key, value := range req.Headers {
		header.Set(key, value)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    fullURL,
		})
	}

	httpResp, err := c.pipe.Do(ctx, req.Method, fullURL, header, bodyBytes)
	if err != nil {
		return nil, err
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method":      req.Method,
			"url":         fullURL,
			"status_code": resp.StatusCode,
		})
	}

	if err := c.runResponseInterceptors(ctx, intercepted, resp); err != nil {
		return resp, err
	}

	if resp.StatusCode >= 400 {
		return resp, nimbus.ParseResponseError(resp.StatusCode, respBody)
	}

	c.storeResponse(ctx, req.Method, cacheKey, resp)

	return resp, nil
}

// runRequestInterceptors exposes the request to the configured chain and
// folds any mutations back in. The returned view is replayed to the response
// interceptors.
func (c *Client) runRequestInterceptors(ctx context.Context, req *Request) (*nimbus.Request, error) {
	if c.interceptors == nil {
		return nil, nil
	}

	headers := make(http.Header, len(req.Headers))
	for key, value := range req.Headers {
		headers.Set(key, value)
	}

	view := &nimbus.Request{
		Method:  req.Method,
		Path:    req.Path,
		Query:   req.Query,
		Headers: headers,
		Body:    req.Body,
	}

	if err := c.interceptors.ExecuteRequestInterceptors(ctx, view); err != nil {
		return nil, err
	}

	req.Method = view.Method
	req.Path = view.Path
	req.Query = view.Query
	req.Body = view.Body

	req.Headers = make(map[string]string, len(view.Headers))
	for key := range view.Headers {
		req.Headers[key] = view.Headers.Get(key)
	}

	return view, nil
}

func (c *Client) runResponseInterceptors(ctx context.Context, req *nimbus.Request, resp *Response) error {
	if c.interceptors == nil || req == nil {
		return nil
	}

	return c.interceptors.ExecuteResponseInterceptors(ctx, req, &nimbus.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	})
}

func (c *Client) buildURL(req *Request) string {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	return fullURL
}

func (c *Client) cachedResponse(ctx context.Context, method, key string) *Response {
	if c.cache == nil || method != http.MethodGet {
		return nil
	}

	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("cache hit", map[string]interface{}{"key": key})
	}

	return &Response{
		StatusCode: http.StatusOK,
		Headers:    http.Header{},
		Body:       entry.Value,
	}
}

func (c *Client) storeResponse(ctx context.Context, method, key string, resp *Response) {
	if c.cache == nil || method != http.MethodGet || resp.StatusCode != http.StatusOK {
		return
	}

	entry := &nimbus.CacheEntry{
		Value:    resp.Body,
		ETag:     resp.Headers.Get("ETag"),
		StoredAt: time.Now(),
		TTL:      c.cacheTTL,
	}

	if err := c.cache.Set(ctx, key, entry); err != nil && c.logger != nil {
		c.logger.Warn("failed to store response in cache", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Close releases the underlying pipeline's transport resources.
func (c *Client) Close() {
	c.pipe.Close()
}
