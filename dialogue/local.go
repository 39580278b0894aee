package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

const cancelHint = "You can also type /cancel to stop."

var prompts = map[types.Phase]string{
	types.PhaseName:      "What is your name?",
	types.PhaseEmail:     "Your email? (e.g., name@example.com)",
	types.PhasePhone:     "Your phone number? Enter a 10-digit US number (e.g., 4151234567), no +1, spaces, or symbols.",
	types.PhaseDate:      "Reservation date? (MM-DD, e.g., 05-29)\nWeekdays only, from tomorrow through the end of next month.",
	types.PhaseTime:      "Reservation time? (HH:MM, between 11:30 and 14:00 in 15-minute steps)",
	types.PhasePartySize: "How many people? (1-10)",
}

// Prompt returns the question asked in a collecting phase.
func Prompt(phase types.Phase) string {
	if p, ok := prompts[phase]; ok {
		return p
	}
	return prompts[types.PhaseName]
}

// Summary lists every collected field ahead of the confirmation question.
func Summary(form types.Reservation) string {
	return fmt.Sprintf("✅ Reservation Details:\n"+
		"👤 Name: %s\n"+
		"📧 Email: %s\n"+
		"📱 Phone: %s\n"+
		"📅 Date: %s\n"+
		"⏰ Time: %s\n"+
		"👥 People: %d\n\n"+
		"Type YES to confirm or /cancel to start over.",
		form.Name, form.Email, form.Phone, form.Date, form.Time, form.People)
}

// LocalDialogueGenerator renders fixed English messages.
type LocalDialogueGenerator struct{}

func (g *LocalDialogueGenerator) GenerateDialogue(ctx context.Context, req *types.TurnRequest) (string, error) {
	switch req.Event {
	case types.EventGreeting:
		return "Hi! Let's start your reservation.\n" + Prompt(types.PhaseName), nil
	case types.EventPrompt:
		return Prompt(req.Phase), nil
	case types.EventRejected:
		var sb strings.Builder
		sb.WriteString("❌ ")
		if req.Issue != nil && req.Issue.Description != "" {
			sb.WriteString(req.Issue.Description)
		} else {
			sb.WriteString("That doesn't look right.")
		}
		sb.WriteString("\n")
		sb.WriteString(Prompt(req.Phase))
		sb.WriteString("\n")
		sb.WriteString(cancelHint)
		return sb.String(), nil
	case types.EventSummary:
		return Summary(req.Form), nil
	case types.EventConfirmMismatch:
		return "❓ Please type YES to confirm or /cancel to start over.", nil
	case types.EventCancelled:
		return "❌ Reservation cancelled.\nSend any message to start again.", nil
	case types.EventSubmitted:
		return "🎉 Reservation confirmed! See you soon.", nil
	case types.EventSubmitRejected:
		return "⚠️ Reservation failed.\nToo many requests with the same info?\nSend any message to start over with different details.", nil
	case types.EventSubmitFailed:
		return fmt.Sprintf("❌ Error sending reservation: %s", req.Error), nil
	case types.EventBusy:
		return "⏳ Your reservation is still being submitted. Please wait a moment.", nil
	default:
		return "", fmt.Errorf("unknown dialogue event: %q", req.Event)
	}
}

type FailbackDialogueGenerator struct {
	generators []Generator
}

func NewFailbackDialogueGenerator(generators ...Generator) *FailbackDialogueGenerator {
	return &FailbackDialogueGenerator{generators: generators}
}

func (g *FailbackDialogueGenerator) GenerateDialogue(ctx context.Context, req *types.TurnRequest) (string, error) {
	var lastErr error
	for _, generator := range g.generators {
		message, err := generator.GenerateDialogue(ctx, req)
		if err == nil && message != "" {
			return message, nil
		}
		if err == nil {
			err = fmt.Errorf("%T returned an empty message", generator)
		}
		lastErr = err
	}
	return "", fmt.Errorf("all dialogue generators failed: %w", lastErr)
}
