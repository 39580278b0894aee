package command

import (
	"context"
	"strings"

	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

// LocalCommandParser matches fixed tokens. Cancel tokens are case-sensitive
// and may carry a Telegram "@botname" suffix; confirm keywords are matched
// case-insensitively and only while confirming.
type LocalCommandParser struct {
	CancelCommands  []string
	ConfirmKeywords []string
}

func NewLocalCommandParser() *LocalCommandParser {
	return &LocalCommandParser{
		CancelCommands:  []string{"/cancel"},
		ConfirmKeywords: []string{"yes"},
	}
}

func (p *LocalCommandParser) ParseCommand(ctx context.Context, phase types.Phase, input string) (Command, error) {
	trimmed := strings.TrimSpace(input)
	for _, token := range p.CancelCommands {
		if trimmed == token || strings.HasPrefix(trimmed, token+"@") {
			return Cancel, nil
		}
	}
	if phase != types.PhaseConfirming {
		return None, nil
	}
	normalized := strings.ToLower(trimmed)
	for _, keyword := range p.ConfirmKeywords {
		if normalized == keyword {
			return Confirm, nil
		}
	}
	return None, nil
}
