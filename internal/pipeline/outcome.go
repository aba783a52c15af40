// Package pipeline implements the outbound-request resilience pipeline shared
// by every Nimbus resource client: concurrency limiting, proactive rate-limit
// throttling, total timeout, retry with exponential backoff, circuit breaking,
// and per-attempt timeout, composed in that fixed order around the transport.
package pipeline

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
)

// OutcomeKind tags the result of a single request attempt.
type OutcomeKind int

const (
	// OutcomeResponse is an HTTP response of any status.
	OutcomeResponse OutcomeKind = iota
	// OutcomeTransportError is a connectivity-level failure.
	OutcomeTransportError
	// OutcomeTimeout is a timeout, from the transport or an attempt deadline.
	OutcomeTimeout
	// OutcomeCanceled is a caller cancellation; never retried.
	OutcomeCanceled
)

// String returns the kind name for logs.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeResponse:
		return "response"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Outcome is the explicit result of one attempt, produced once per attempt and
// consumed by the retry predicate and the circuit breaker. It is never mutated.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Err        error
}

// MakeOutcome classifies a transport result into an Outcome.
func MakeOutcome(resp *http.Response, err error) Outcome {
	switch {
	case err == nil && resp != nil:
		return Outcome{Kind: OutcomeResponse, StatusCode: resp.StatusCode}
	case errors.Is(err, context.Canceled):
		return Outcome{Kind: OutcomeCanceled, Err: err}
	case isTimeout(err):
		return Outcome{Kind: OutcomeTimeout, Err: err}
	default:
		return Outcome{Kind: OutcomeTransportError, Err: err}
	}
}

// Success reports whether the attempt produced a non-error, non-5xx response.
func (o Outcome) Success() bool {
	return o.Kind == OutcomeResponse && o.StatusCode < 500
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
