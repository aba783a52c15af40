package pipeline

import "net/http"

// MethodIsIdempotent classifies an HTTP method as safe to retry under
// at-least-once delivery. Reads, existence checks, full replaces, and deletes
// are retryable; POST (create/append) and PATCH (partial update) are not
// guaranteed idempotent by the Nimbus API and are never retried automatically,
// regardless of configuration. This is a hard safety boundary, not a tunable.
func MethodIsIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}
