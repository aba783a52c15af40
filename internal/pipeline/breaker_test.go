package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(3, time.Minute, nil)

	assert.Equal(t, StateClosed, cb.State())

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(3, time.Minute, nil)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	// The run restarts; two more failures stay under the threshold.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenSingleProbe(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(1, 10*time.Millisecond, nil)

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	time.Sleep(20 * time.Millisecond)

	// After the cool-down exactly one probe is admitted.
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_ProbeSuccessCloses(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(1, 10*time.Millisecond, nil)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	assert.True(t, cb.Allow())
	cb.RecordSuccess()

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(1, 10*time.Millisecond, nil)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	assert.True(t, cb.Allow())
	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_NotifiesTransitions(t *testing.T) {
	t.Parallel()

	type transition struct{ from, to CircuitState }

	var transitions []transition

	cb := NewCircuitBreaker(1, 10*time.Millisecond, func(from, to CircuitState) {
		transitions = append(transitions, transition{from, to})
	})

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()

	assert.Equal(t, []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, transitions)
}

func TestCircuitState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
