package pacing

import "time"

// Intent is what a Signal asks the consumer to do.
type Intent int

// Signal intents. The zero value is deliberately not an advance request.
const (
	IntentNone Intent = iota
	IntentAdvance
)

func (i Intent) String() string {
	switch i {
	case IntentAdvance:
		return "advance"
	default:
		return "none"
	}
}

// Signal sources.
const (
	SourceManual = "manual"
	SourceTimer  = "timer"
)

// Signal is a single pacing request.
type Signal struct {
	Intent Intent
	// Source names the trigger that produced the signal.
	Source string
	At     time.Time
}

// Advance builds a complete advance request.
func Advance(source string, at time.Time) Signal {
	return Signal{Intent: IntentAdvance, Source: source, At: at}
}

// Complete reports whether the signal is a fully formed advance request.
func (s Signal) Complete() bool {
	return s.Intent == IntentAdvance
}
