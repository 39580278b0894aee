package agent

import (
	"context"

	"github.com/ant0n-grachev/telegram-reservation-bot/booking"
	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

// Submitter sends a completed reservation to the booking service.
type Submitter interface {
	Submit(ctx context.Context, form types.Reservation) booking.Result
}

type Request struct {
	UserInput string `json:"user_input"`
}

type Response struct {
	Message  string            `json:"message,omitempty"`
	State    *State            `json:"state,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
