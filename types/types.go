package types

type Phase string

const (
	PhaseIdle       Phase = ""
	PhaseName       Phase = "name"
	PhaseEmail      Phase = "email"
	PhasePhone      Phase = "phone"
	PhaseDate       Phase = "date"
	PhaseTime       Phase = "time"
	PhasePartySize  Phase = "party_size"
	PhaseConfirming Phase = "confirming"
)

// CollectingPhases lists the field phases in the order they are asked.
var CollectingPhases = []Phase{
	PhaseName,
	PhaseEmail,
	PhasePhone,
	PhaseDate,
	PhaseTime,
	PhasePartySize,
}

// Collecting reports whether p gathers a reservation field.
func (p Phase) Collecting() bool {
	for _, c := range CollectingPhases {
		if c == p {
			return true
		}
	}
	return false
}

// Known reports whether p is a phase the flow can resume from.
func (p Phase) Known() bool {
	return p == PhaseIdle || p == PhaseConfirming || p.Collecting()
}

// Next returns the phase that follows p. The last collecting phase leads to
// confirming, and confirming wraps back to idle.
func (p Phase) Next() Phase {
	for i, c := range CollectingPhases {
		if c != p {
			continue
		}
		if i+1 < len(CollectingPhases) {
			return CollectingPhases[i+1]
		}
		return PhaseConfirming
	}
	if p == PhaseIdle {
		return PhaseName
	}
	return PhaseIdle
}

type FieldInfo struct {
	JSONPointer string `json:"json_pointer"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Reservation holds the fields collected so far. A field is present only
// after its phase accepted it.
type Reservation struct {
	Name   string `json:"name,omitempty" jsonschema:"description=Guest name"`
	Email  string `json:"email,omitempty" jsonschema:"description=Guest email address"`
	Phone  string `json:"phone,omitempty" jsonschema:"description=Guest phone number prefixed with the +1 country code"`
	Date   string `json:"date,omitempty" jsonschema:"description=Reservation date formatted as YYYY-MM-DD"`
	Time   string `json:"time,omitempty" jsonschema:"description=Reservation time formatted as HH:MM"`
	People int    `json:"people,omitempty" jsonschema:"description=Party size from 1 to 10"`
}

func (r Reservation) Complete() bool {
	return r.Name != "" && r.Email != "" && r.Phone != "" && r.Date != "" && r.Time != "" && r.People > 0
}

type Event string

const (
	EventGreeting        Event = "greeting"
	EventPrompt          Event = "prompt"
	EventRejected        Event = "rejected"
	EventSummary         Event = "summary"
	EventConfirmMismatch Event = "confirm_mismatch"
	EventCancelled       Event = "cancelled"
	EventSubmitted       Event = "submitted"
	EventSubmitRejected  Event = "submit_rejected"
	EventSubmitFailed    Event = "submit_failed"
	EventBusy            Event = "busy"
)

type MessagePair struct {
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

// TurnRequest describes the outcome of one conversation turn so a dialogue
// generator can phrase the reply.
type TurnRequest struct {
	Phase       Phase       `json:"phase"`
	Event       Event       `json:"event"`
	Form        Reservation `json:"form"`
	MessagePair MessagePair `json:"message_pair"`
	// Issue carries the rejected field, with the rejection reason in Description.
	Issue *FieldInfo `json:"issue,omitempty"`
	// Error is the transport failure text of a failed submission.
	Error string `json:"error,omitempty"`
}
