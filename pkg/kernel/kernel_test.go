package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleOrdersByTimeThenSeq(t *testing.T) {
	k := New()
	var order []string

	k.Schedule(2*time.Second, func() { order = append(order, "b-late") })
	k.Schedule(0, func() { order = append(order, "a-first") })
	k.Schedule(0, func() { order = append(order, "a-second") })
	k.Schedule(1*time.Second, func() { order = append(order, "mid") })

	runtime := k.Run()

	assert.Equal(t, []string{"a-first", "a-second", "mid", "b-late"}, order)
	assert.Equal(t, 2*time.Second, runtime)
}

func TestCancelPreventsFiring(t *testing.T) {
	k := New()
	fired := false
	ev := k.Schedule(time.Second, func() { fired = true })
	ev.Cancel()
	k.Run()
	assert.False(t, fired)
}

func TestPostDefersToNextTick(t *testing.T) {
	k := New()
	var order []int
	k.Post(func() {
		order = append(order, 1)
		k.Post(func() { order = append(order, 3) })
		order = append(order, 2)
	})
	k.Run()
	// The nested Post must not run inline between 1 and 2.
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestSuspensionInterruptCancelsTimerAndFiresOnce(t *testing.T) {
	k := New()
	var gotCause Cause
	var timerFired bool

	timer := k.Schedule(5*time.Second, func() { timerFired = true })
	s := NewSuspension(k, timer, func(c Cause) { gotCause = c })

	s.Interrupt(CauseKilled)
	s.Interrupt(CauseDisconnect) // second call must be a no-op

	k.Run()

	assert.False(t, timerFired)
	assert.Equal(t, CauseKilled, gotCause)
}

func TestPendingReflectsCanceledEvents(t *testing.T) {
	k := New()
	ev := k.Schedule(time.Second, func() {})
	require.True(t, k.Pending())
	ev.Cancel()
	assert.False(t, k.Pending())
}
