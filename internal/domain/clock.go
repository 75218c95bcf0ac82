package domain

import "github.com/jonboulle/clockwork"

// clock is the package-level time source for report timestamps. Tests and
// fixture generators freeze it via SetClock for reproducible output.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for report stamping. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
