package command

import (
	"context"

	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

type Command string

const (
	Cancel  Command = "cancel"
	Confirm Command = "confirm"
	None    Command = "none"
)

type Parser interface {
	ParseCommand(ctx context.Context, phase types.Phase, input string) (Command, error)
}
