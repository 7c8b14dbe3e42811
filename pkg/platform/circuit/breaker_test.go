package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step drives a breaker through one event: "fail", "ok" or "wait" (advance
// the clock by one second).
type step struct {
	event     string
	wantOpen  bool
	wantAllow bool
}

func TestBreakerTransitions(t *testing.T) {
	tests := map[string]struct {
		opts  []Option
		steps []step
	}{
		"stays closed below the failure threshold": {
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{"fail", false, true},
				{"fail", false, true},
				{"ok", false, true},
				{"fail", false, true},
				{"fail", false, true},
				{"fail", true, false},
			},
		},
		"needs consecutive successes to close": {
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{"fail", true, false},
				{"ok", true, false},
				{"fail", true, false},
				{"ok", true, false},
				{"ok", false, true},
			},
		},
		"admits a trial call once the cooldown has passed": {
			opts: []Option{WithFailureThreshold(1), WithCooldown(time.Second)},
			steps: []step{
				{"fail", true, false},
				{"wait", true, true},
				{"fail", true, false},
				{"wait", true, true},
			},
		},
		"without a cooldown an open breaker stays shut": {
			opts: []Option{WithFailureThreshold(1)},
			steps: []step{
				{"fail", true, false},
				{"wait", true, false},
				{"wait", true, false},
			},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
			b := New("ks-1", append(tt.opts, WithClock(func() time.Time { return now }))...)
			for i, s := range tt.steps {
				switch s.event {
				case "fail":
					b.RecordFailure()
				case "ok":
					b.RecordSuccess()
				case "wait":
					now = now.Add(time.Second)
				default:
					require.FailNow(t, "unknown event", s.event)
				}
				assert.Equal(t, s.wantOpen, b.IsOpen(), "step %d (%s): open", i, s.event)
				assert.Equal(t, s.wantAllow, b.Allow(), "step %d (%s): allow", i, s.event)
			}
		})
	}
}

func TestBreakerReportsStateChanges(t *testing.T) {
	b := New("ks-2", WithFailureThreshold(2), WithSuccessThreshold(1))
	assert.Equal(t, "ks-2", b.Name())
	assert.Equal(t, "closed", b.State().String())

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.Equal(t, StateChange{}, change)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	_, change = b.RecordFailure()
	assert.False(t, change.Opened, "already open")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
}

func TestBreakerReset(t *testing.T) {
	b := New("ks-3", WithFailureThreshold(1), WithSuccessThreshold(5))
	b.RecordFailure()
	b.RecordSuccess()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}
