package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

// DefaultDialogueSystemPromptTemplate is the default system prompt template used by
// ToolBasedDialogueGenerator. The template may contain a single "%s" placeholder for the form schema.
const DefaultDialogueSystemPromptTemplate = `You are the friendly reservation assistant of a lunch bistro chatting with a guest.

You receive the current form state, what just happened in the conversation, and a draft reply.
Rewrite the draft reply so it reads naturally, following these rules:
- Keep every fact from the draft: field values, dates, times, limits, and format examples stay exactly as written.
- Keep the commands /cancel and YES verbatim whenever the draft mentions them.
- Never ask for more than the draft asks for and never claim a reservation succeeded unless the draft does.
- Keep it short. No lists unless the draft is a list.
- Reply in English by calling the send_reply tool with the rewritten message.

The form follows this JSON schema:
%s
`

const (
	sendReplyToolName        = "send_reply"
	sendReplyToolDescription = "Send the rewritten reply to the guest."
)

type sendReplyArgs struct {
	Message string `json:"message" jsonschema:"required,description=The rewritten reply shown to the guest"`
}

type dialogueGeneratorOptions struct {
	systemPrompt string
	draft        Generator
	now          func() time.Time
}

type GeneratorOption func(*dialogueGeneratorOptions)

// WithDialogueSystemPrompt overrides the system prompt used by ToolBasedDialogueGenerator.
func WithDialogueSystemPrompt(systemPrompt string) GeneratorOption {
	return func(o *dialogueGeneratorOptions) {
		o.systemPrompt = systemPrompt
	}
}

// WithDraftGenerator sets the generator whose output the model rewrites.
func WithDraftGenerator(draft Generator) GeneratorOption {
	return func(o *dialogueGeneratorOptions) {
		o.draft = draft
	}
}

func WithClock(now func() time.Time) GeneratorOption {
	return func(o *dialogueGeneratorOptions) {
		o.now = now
	}
}

// ToolBasedDialogueGenerator rephrases a draft reply through a chat model.
type ToolBasedDialogueGenerator struct {
	systemPrompt string
	draft        Generator
	now          func() time.Time
	chatModel    model.ToolCallingChatModel
	toolInfo     *schema.ToolInfo
}

func NewToolBasedDialogueGenerator(chatModel model.ToolCallingChatModel, opts ...GeneratorOption) (*ToolBasedDialogueGenerator, error) {
	options := dialogueGeneratorOptions{
		draft: &LocalDialogueGenerator{},
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.systemPrompt == "" {
		schemaJSON, err := types.ReservationSchema()
		if err != nil {
			return nil, err
		}
		options.systemPrompt = fmt.Sprintf(DefaultDialogueSystemPromptTemplate, schemaJSON)
	}
	toolInfo, err := utils.GoStruct2ToolInfo[sendReplyArgs](sendReplyToolName, sendReplyToolDescription)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &ToolBasedDialogueGenerator{
		toolInfo:     toolInfo,
		systemPrompt: options.systemPrompt,
		draft:        options.draft,
		now:          options.now,
		chatModel:    chatModel,
	}, nil
}

func (g *ToolBasedDialogueGenerator) GenerateDialogue(ctx context.Context, req *types.TurnRequest) (string, error) {
	messages, err := g.buildDialoguePrompt(ctx, req)
	if err != nil {
		return "", fmt.Errorf("build dialogue prompt: %w", err)
	}

	response, err := g.chatModel.Generate(ctx, messages,
		model.WithTools([]*schema.ToolInfo{g.toolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, g.toolInfo.Name),
	)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	// Some OpenAI-compatible servers ignore the forced tool choice.
	if len(response.ToolCalls) == 0 {
		slog.Debug("Dialogue model replied without tool call", "event", req.Event)
		return strings.TrimSpace(response.Content), nil
	}
	var args sendReplyArgs
	if err := sonic.UnmarshalString(response.ToolCalls[0].Function.Arguments, &args); err != nil {
		return "", fmt.Errorf("parse ToolCall arguments failed: %w", err)
	}
	return strings.TrimSpace(args.Message), nil
}

func (g *ToolBasedDialogueGenerator) buildDialoguePrompt(ctx context.Context, req *types.TurnRequest) ([]*schema.Message, error) {
	draft, err := g.draft.GenerateDialogue(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("draft reply: %w", err)
	}
	message, err := types.FormatTurnRequest(req, g.now())
	if err != nil {
		return nil, fmt.Errorf("convert to prompt message failed: %w", err)
	}
	message += fmt.Sprintf("\n\n# Draft reply:\n%s", draft)

	return []*schema.Message{
		schema.SystemMessage(g.systemPrompt),
		schema.UserMessage(message),
	}, nil
}
