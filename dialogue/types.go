package dialogue

import (
	"context"

	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

type Generator interface {
	GenerateDialogue(ctx context.Context, req *types.TurnRequest) (string, error)
}
