package rt

import "time"

// CycleClock schedules a fixed-period cycle against absolute deadlines on
// the monotonic clock. The reference instant advances by exactly one
// period per Next call, never by "now plus period": a relative sleep
// accumulates drift equal to the sum of all prior cycles' execution
// jitter, while absolute scheduling caps the error at one cycle's wake-up
// latency.
type CycleClock struct {
	period time.Duration
	ref    time.Time
}

// NewCycleClock returns a clock for the given cycle period. The reference
// instant starts at now; call Reset at the start of each supervised run.
func NewCycleClock(period time.Duration) *CycleClock {
	return &CycleClock{
		period: period,
		ref:    time.Now(),
	}
}

// Period returns the configured cycle period.
func (c *CycleClock) Period() time.Duration {
	return c.period
}

// Reset moves the reference instant to now.
func (c *CycleClock) Reset() {
	c.ref = time.Now()
}

// Elapsed returns how far the current time is past the reference instant.
// Zero or negative means the deadline still lies ahead.
func (c *CycleClock) Elapsed() time.Duration {
	return time.Since(c.ref)
}

// Next advances the reference instant by exactly one period.
func (c *CycleClock) Next() {
	c.ref = c.ref.Add(c.period)
}

// WaitUntilNext advances the deadline by one period and sleeps until it.
// It returns false without sleeping when the new deadline already lies in
// the past, i.e. the previous cycle overran.
func (c *CycleClock) WaitUntilNext() bool {
	c.Next()
	if c.Elapsed() > 0 {
		return false
	}
	sleepUntil(c.ref)

	return true
}

// NextTime returns the upcoming deadline without advancing the clock.
// Used to bound waits that must give up within the current cycle.
func (c *CycleClock) NextTime() time.Time {
	return c.ref.Add(c.period)
}

// SetAndGetNextTime advances the deadline by one period and returns it.
func (c *CycleClock) SetAndGetNextTime() time.Time {
	c.Next()

	return c.ref
}

// sleepUntil blocks until the absolute instant t. The remaining duration
// is recomputed from t right before blocking and after every early wake,
// so the scheduling error is the one-shot wake-up latency only.
func sleepUntil(t time.Time) {
	for {
		d := time.Until(t)
		if d <= 0 {
			return
		}
		time.Sleep(d)
	}
}
