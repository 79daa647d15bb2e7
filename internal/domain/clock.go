package domain

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can freeze time via SetClock.
// The "status contains In Use" heuristic resolves last-used to clock.Now();
// production code uses the real clock, tests inject a fake for deterministic output.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for decoding. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
