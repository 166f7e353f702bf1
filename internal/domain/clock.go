package domain

import "github.com/jonboulle/clockwork"

// clock is the package-level time source used when a component is built
// without an explicit clock. Tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the default time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Clock returns the default time source.
func Clock() clockwork.Clock {
	return clock
}

// ClockOrDefault returns c, or the package clock when c is nil.
func ClockOrDefault(c clockwork.Clock) clockwork.Clock {
	if c == nil {
		return clock
	}
	return c
}
