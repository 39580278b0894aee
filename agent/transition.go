package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/ant0n-grachev/telegram-reservation-bot/booking"
	"github.com/ant0n-grachev/telegram-reservation-bot/command"
	"github.com/ant0n-grachev/telegram-reservation-bot/patch"
	"github.com/ant0n-grachev/telegram-reservation-bot/types"
	"github.com/ant0n-grachev/telegram-reservation-bot/validate"
)

// Effect tells the flow what to do with the session after a transition.
type Effect int

const (
	// EffectSave persists the new state.
	EffectSave Effect = iota
	// EffectKeep leaves the stored session untouched.
	EffectKeep
	// EffectClear drops the session.
	EffectClear
	// EffectSubmit persists the new state and sends the reservation.
	EffectSubmit
)

func (e Effect) String() string {
	switch e {
	case EffectSave:
		return "save"
	case EffectKeep:
		return "keep"
	case EffectClear:
		return "clear"
	case EffectSubmit:
		return "submit"
	default:
		return fmt.Sprintf("effect(%d)", int(e))
	}
}

// Outcome is the result of one transition.
type Outcome struct {
	State  State
	Reply  types.TurnRequest
	Effect Effect
}

// Transition computes the next session state and the reply for input. It
// does no I/O; the caller applies Effect.
func Transition(state State, cmd command.Command, input string, now time.Time) (Outcome, error) {
	pair := types.MessagePair{Question: state.LatestQuestion, Answer: input}

	if state.Submitting {
		return Outcome{
			State:  state,
			Reply:  types.TurnRequest{Phase: state.Phase, Event: types.EventBusy, Form: state.Form, MessagePair: pair},
			Effect: EffectKeep,
		}, nil
	}

	if cmd == command.Cancel {
		return Outcome{
			State:  State{Phase: types.PhaseIdle},
			Reply:  types.TurnRequest{Phase: types.PhaseIdle, Event: types.EventCancelled, MessagePair: pair},
			Effect: EffectClear,
		}, nil
	}

	switch {
	case state.Phase == types.PhaseConfirming:
		return confirm(state, cmd, pair), nil
	case state.Phase.Collecting():
		return collect(state, input, now, pair)
	default:
		// First contact, or a phase this build does not know: start over.
		return Outcome{
			State:  State{Phase: types.PhaseName},
			Reply:  types.TurnRequest{Phase: types.PhaseName, Event: types.EventGreeting, MessagePair: pair},
			Effect: EffectSave,
		}, nil
	}
}

func confirm(state State, cmd command.Command, pair types.MessagePair) Outcome {
	if cmd != command.Confirm {
		return Outcome{
			State:  state,
			Reply:  types.TurnRequest{Phase: state.Phase, Event: types.EventConfirmMismatch, Form: state.Form, MessagePair: pair},
			Effect: EffectSave,
		}
	}
	next := state
	next.Submitting = true
	return Outcome{
		State:  next,
		Reply:  types.TurnRequest{Phase: state.Phase, Form: state.Form, MessagePair: pair},
		Effect: EffectSubmit,
	}
}

func collect(state State, input string, now time.Time, pair types.MessagePair) (Outcome, error) {
	validator, ok := validate.For(state.Phase)
	if !ok {
		return Outcome{}, fmt.Errorf("no validator for phase %q", state.Phase)
	}
	field, ok := FieldFor(state.Phase)
	if !ok {
		return Outcome{}, fmt.Errorf("no field for phase %q", state.Phase)
	}

	res := validator(strings.TrimSpace(input), now)
	if !res.OK() {
		issue := field
		issue.Description = res.Reason
		return Outcome{
			State:  state,
			Reply:  types.TurnRequest{Phase: state.Phase, Event: types.EventRejected, Form: state.Form, MessagePair: pair, Issue: &issue},
			Effect: EffectSave,
		}, nil
	}

	ops := []patch.Operation{patch.Set(field.JSONPointer, res.Value)}
	if err := patch.ValidatePatchOperations(ops, reservationPaths); err != nil {
		return Outcome{}, err
	}
	form, err := patch.ApplyRFC6902(state.Form, ops)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to store %s: %w", field.DisplayName, err)
	}

	next := State{Phase: state.Phase.Next(), Form: form}
	event := types.EventPrompt
	if next.Phase == types.PhaseConfirming {
		event = types.EventSummary
	}
	return Outcome{
		State:  next,
		Reply:  types.TurnRequest{Phase: next.Phase, Event: event, Form: form, MessagePair: pair},
		Effect: EffectSave,
	}, nil
}

// Resolve ends a submitting session with the reply for res.
func Resolve(state State, res booking.Result) Outcome {
	reply := types.TurnRequest{Phase: types.PhaseIdle, Form: state.Form}
	switch res.Status {
	case booking.StatusSuccess:
		reply.Event = types.EventSubmitted
	case booking.StatusRejected:
		reply.Event = types.EventSubmitRejected
	default:
		reply.Event = types.EventSubmitFailed
		if res.Err != nil {
			reply.Error = res.Err.Error()
		} else {
			reply.Error = "unknown error"
		}
	}
	return Outcome{State: State{Phase: types.PhaseIdle}, Reply: reply, Effect: EffectClear}
}
