package nimbus

import (
	"net/http"
	"time"
)

// Resource represents the base structure for all Nimbus API resources.
type Resource struct {
	ID        string    `json:"id"         yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Link represents a single pagination link.
type Link struct {
	Href   string `json:"href"             yaml:"href"`
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
}

// Pagination represents page-number pagination information.
type Pagination struct {
	TotalResults int   `json:"total_results"      yaml:"total_results"`
	TotalPages   int   `json:"total_pages"        yaml:"total_pages"`
	Page         int   `json:"page"               yaml:"page"`
	PerPage      int   `json:"per_page"           yaml:"per_page"`
	Next         *Link `json:"next,omitempty"     yaml:"next,omitempty"`
	Previous     *Link `json:"previous,omitempty" yaml:"previous,omitempty"`
}

// ListResponse represents a page-number paginated list response.
type ListResponse[T any] struct {
	Pagination Pagination `json:"pagination" yaml:"pagination"`
	Resources  []T        `json:"resources"  yaml:"resources"`
}

// CursorPage represents one page of a cursor-paginated collection. Cursor is
// an opaque continuation token; an empty Cursor with HasMore false terminates
// the enumeration.
type CursorPage[T any] struct {
	Items   []T    `json:"items"               yaml:"items"`
	Cursor  string `json:"cursor,omitempty"    yaml:"cursor,omitempty"`
	HasMore bool   `json:"has_more"            yaml:"has_more"`
}

// Request represents a raw HTTP request executed through the pipeline.
type Request struct {
	Method  string
	Path    string
	Query   map[string][]string
	Headers http.Header
	Body    interface{}
}

// Response represents an HTTP response returned by the pipeline.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Zone represents a DNS zone.
type Zone struct {
	Resource `yaml:",inline"`

	Name   string `json:"name"   yaml:"name"`
	Status string `json:"status" yaml:"status"`
	Paused bool   `json:"paused" yaml:"paused"`
}

// ZoneCreateRequest is the payload for creating a zone.
type ZoneCreateRequest struct {
	Name string `json:"name" yaml:"name"`
}

// ZoneUpdateRequest is the payload for updating a zone.
type ZoneUpdateRequest struct {
	Paused *bool `json:"paused,omitempty" yaml:"paused,omitempty"`
}

// Record represents a DNS record within a zone.
type Record struct {
	Resource `yaml:",inline"`

	ZoneID  string `json:"zone_id" yaml:"zone_id"`
	Type    string `json:"type"    yaml:"type"`
	Name    string `json:"name"    yaml:"name"`
	Content string `json:"content" yaml:"content"`
	TTL     int    `json:"ttl"     yaml:"ttl"`
}

// RecordCreateRequest is the payload for creating a record.
type RecordCreateRequest struct {
	Type    string `json:"type"    yaml:"type"`
	Name    string `json:"name"    yaml:"name"`
	Content string `json:"content" yaml:"content"`
	TTL     int    `json:"ttl"     yaml:"ttl"`
}

// ZoneList represents a paginated list of Zone resources.
type ZoneList = ListResponse[Zone]
