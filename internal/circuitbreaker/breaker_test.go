package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbxkit/pkg/core"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(fail, success int) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.UnixMilli(1508279351690)}
	b := New(Config{
		FailThreshold:    fail,
		SuccessThreshold: success,
		Timeout:          time.Second,
	}, WithClock(clock.now))
	return b, clock
}

func TestState_String(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"closed", StateClosed, "CLOSED"},
		{"open", StateOpen, "OPEN"},
		{"half_open", StateHalfOpen, "HALF_OPEN"},
		{"unknown", State(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(core.DefaultConfig())

	assert.Equal(t, 5, cfg.FailThreshold)
	assert.Equal(t, 2, cfg.SuccessThreshold)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestBreaker_Opens(t *testing.T) {
	b, _ := newTestBreaker(3, 2)

	require.NoError(t, b.Allow())
	b.Record(false)
	b.Record(false)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 2, b.Failures())

	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), core.ErrCircuitBreakerOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(3, 2)

	b.Record(false)
	b.Record(false)
	b.Record(true)
	assert.Equal(t, 0, b.Failures())

	b.Record(false)
	b.Record(false)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenThenClosed(t *testing.T) {
	b, clock := newTestBreaker(1, 2)

	b.Record(false)
	require.Equal(t, StateOpen, b.State())

	clock.advance(999 * time.Millisecond)
	assert.Error(t, b.Allow())

	clock.advance(time.Millisecond)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	b.Record(true)
	assert.Equal(t, StateHalfOpen, b.State())
	assert.Equal(t, 1, b.Successes())

	b.Record(true)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Successes())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(1, 2)

	b.Record(false)
	clock.advance(time.Second)
	require.NoError(t, b.Allow())

	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.Error(t, b.Allow(), "cool-down restarts from the trial failure")
}

func TestBreaker_LateResultsWhileOpen(t *testing.T) {
	b, _ := newTestBreaker(1, 1)

	b.Record(false)
	b.Record(true)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var transitions []string
	b := New(Config{FailThreshold: 1, SuccessThreshold: 1, Timeout: time.Second},
		WithClock(clock.now),
		WithStateChange(func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}))

	b.Record(false)
	clock.advance(time.Second)
	require.NoError(t, b.Allow())
	b.Record(true)

	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}, transitions)
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(1, 1)

	b.Record(false)
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_ThresholdsFloorAtOne(t *testing.T) {
	b := New(Config{Timeout: time.Second})

	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_Metrics(t *testing.T) {
	b, _ := newTestBreaker(1, 1)

	require.NoError(t, b.Allow())
	b.Record(true)
	require.NoError(t, b.Allow())
	b.Record(false)
	assert.Error(t, b.Allow())

	m := b.Metrics()
	assert.Equal(t, int64(3), m.Requests)
	assert.Equal(t, int64(1), m.Rejected)
	assert.Equal(t, int64(1), m.Successes)
	assert.Equal(t, int64(1), m.Failures)
	assert.Equal(t, int32(1), m.StateChanges)
	assert.Equal(t, "OPEN", m.CurrentState)
}
