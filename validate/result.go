package validate

import (
	"time"

	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

// Kind names the rule a rejected input broke.
type Kind string

const (
	KindEmpty       Kind = "empty"
	KindFormat      Kind = "format"
	KindRange       Kind = "range"
	KindPast        Kind = "past"
	KindMonth       Kind = "month"
	KindWeekday     Kind = "weekday"
	KindGranularity Kind = "granularity"
)

// Result is either accepted with a normalized value or rejected with a reason.
type Result struct {
	Value  any
	Kind   Kind
	Reason string
}

func Accepted(value any) Result {
	return Result{Value: value}
}

func Rejected(kind Kind, reason string) Result {
	return Result{Kind: kind, Reason: reason}
}

func (r Result) OK() bool {
	return r.Kind == ""
}

// Func validates trimmed user text. now anchors date rules.
type Func func(input string, now time.Time) Result

var byPhase = map[types.Phase]Func{
	types.PhaseName:      Name,
	types.PhaseEmail:     Email,
	types.PhasePhone:     Phone,
	types.PhaseDate:      Date,
	types.PhaseTime:      Time,
	types.PhasePartySize: PartySize,
}

// For returns the validator bound to a collecting phase.
func For(phase types.Phase) (Func, bool) {
	fn, ok := byPhase[phase]
	return fn, ok
}
