package engine

// UsageAccumulator rolls per-event token counters into per-turn and session
// totals. Missing usage on an event contributes zero; there are no failure
// modes.
type UsageAccumulator struct {
	latest Usage
	totals Usage
	seen   bool
}

// RecordTurn stores usage as the latest snapshot and adds it element-wise
// into the session totals.
func (a *UsageAccumulator) RecordTurn(usage Usage) {
	a.latest = usage
	a.totals = a.totals.Add(usage)
	a.seen = true
}

// Latest returns the most recently recorded usage and whether any usage has
// been recorded since the last reset.
func (a *UsageAccumulator) Latest() (Usage, bool) {
	return a.latest, a.seen
}

// Totals returns the running session totals.
func (a *UsageAccumulator) Totals() Usage {
	return a.totals
}

// Reset zeroes the totals and clears the latest snapshot. Called on full
// session reset, not on turn-level edits.
func (a *UsageAccumulator) Reset() {
	*a = UsageAccumulator{}
}
