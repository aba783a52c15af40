package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/nimbus-io/nimbus-client/internal/constants"
)

// CircuitState is the breaker's state machine position.
type CircuitState int64

const (
	// StateClosed lets requests flow while counting consecutive failures.
	StateClosed CircuitState = iota
	// StateOpen fails every request fast without reaching the transport.
	StateOpen
	// StateHalfOpen allows a single probe request after the cool-down.
	StateHalfOpen
)

// String returns the state name for logs and metrics.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return constants.StatusClosed
	case StateOpen:
		return constants.StatusOpen
	case StateHalfOpen:
		return constants.StatusHalfOpen
	default:
		return "unknown"
	}
}

// CircuitBreaker is a three-state guard shared by all requests on one logical
// client. It opens after a run of consecutive failures, short-circuits
// requests until the cool-down elapses, then admits exactly one probe.
// All state is manipulated with atomics; safe for concurrent use.
type CircuitBreaker struct {
	threshold int64
	cooldown  time.Duration

	state       int64
	failures    int64
	lastFailure int64 // unix nanos
	probe       int64 // half-open probe token, 0 = available

	// onStateChange observes every transition; used for logging and metrics.
	onStateChange func(from, to CircuitState)
}

// NewCircuitBreaker creates a breaker that opens after threshold consecutive
// failures and allows a probe after cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration, onStateChange func(from, to CircuitState)) *CircuitBreaker {
	if threshold <= 0 {
		threshold = constants.BreakerThreshold
	}

	if cooldown <= 0 {
		cooldown = constants.BreakerCooldown
	}

	return &CircuitBreaker{
		threshold:     int64(threshold),
		cooldown:      cooldown,
		state:         int64(StateClosed),
		onStateChange: onStateChange,
	}
}

// Allow reports whether a request may proceed to the transport.
func (cb *CircuitBreaker) Allow() bool {
	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		return true
	case StateOpen:
		lastFailure := atomic.LoadInt64(&cb.lastFailure)
		if time.Now().UnixNano()-lastFailure >= int64(cb.cooldown) {
			if atomic.CompareAndSwapInt64(&cb.state, int64(StateOpen), int64(StateHalfOpen)) {
				atomic.StoreInt64(&cb.probe, 0)
				cb.notify(StateOpen, StateHalfOpen)
			}
		} else {
			return false
		}

		fallthrough
	case StateHalfOpen:
		// Exactly one probe is admitted until it resolves.
		return atomic.CompareAndSwapInt64(&cb.probe, 0, 1)
	default:
		return false
	}
}

// RecordFailure counts a failed attempt, opening the breaker at the threshold
// or re-opening it when a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure() {
	atomic.StoreInt64(&cb.lastFailure, time.Now().UnixNano())

	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		if atomic.AddInt64(&cb.failures, 1) >= cb.threshold {
			if atomic.CompareAndSwapInt64(&cb.state, int64(StateClosed), int64(StateOpen)) {
				cb.notify(StateClosed, StateOpen)
			}
		}
	case StateHalfOpen:
		if atomic.CompareAndSwapInt64(&cb.state, int64(StateHalfOpen), int64(StateOpen)) {
			cb.notify(StateHalfOpen, StateOpen)
		}
	case StateOpen:
		// Already open; only lastFailure needed updating.
	}
}

// RecordSuccess resets the failure run and closes the breaker after a
// successful half-open probe.
func (cb *CircuitBreaker) RecordSuccess() {
	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		atomic.StoreInt64(&cb.failures, 0)
	case StateHalfOpen:
		if atomic.CompareAndSwapInt64(&cb.state, int64(StateHalfOpen), int64(StateClosed)) {
			atomic.StoreInt64(&cb.failures, 0)
			cb.notify(StateHalfOpen, StateClosed)
		}
	case StateOpen:
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt64(&cb.state))
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}
