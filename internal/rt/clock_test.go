package rt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winchlab/servoctl/internal/rt"
)

func TestCycleClockNextTimePeeks(t *testing.T) {
	clock := rt.NewCycleClock(10 * time.Millisecond)
	clock.Reset()

	first := clock.NextTime()
	second := clock.NextTime()
	assert.Equal(t, first, second, "NextTime must not advance the reference")

	advanced := clock.SetAndGetNextTime()
	assert.Equal(t, first, advanced, "SetAndGetNextTime must land on the peeked deadline")
	assert.Equal(t, advanced.Add(clock.Period()), clock.NextTime())
}

func TestCycleClockElapsedSign(t *testing.T) {
	clock := rt.NewCycleClock(50 * time.Millisecond)
	clock.Reset()

	// Reference just moved one period ahead, so the deadline lies in
	// the future.
	clock.Next()
	assert.Less(t, clock.Elapsed(), time.Duration(0))
}

func TestWaitUntilNextKeepsAbsoluteSchedule(t *testing.T) {
	const (
		period = 20 * time.Millisecond
		cycles = 10
	)

	clock := rt.NewCycleClock(period)
	clock.Reset()
	start := time.Now()

	for i := 0; i < cycles; i++ {
		require.True(t, clock.WaitUntilNext(), "cycle %d overran", i)
	}

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, cycles*period,
		"wake instants are absolute, total time cannot undercut the schedule")
	assert.Less(t, elapsed, cycles*period+200*time.Millisecond,
		"wake-up latency must not accumulate across cycles")
}

func TestWaitUntilNextDetectsOverrun(t *testing.T) {
	clock := rt.NewCycleClock(time.Millisecond)
	clock.Reset()

	time.Sleep(5 * time.Millisecond)
	assert.False(t, clock.WaitUntilNext(), "a deadline already in the past must not be slept on")
}
