package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ant0n-grachev/telegram-reservation-bot/agent"
)

const startCommand = "start"

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot feeds Telegram text messages into a FormFlow. The chat ID is the
// conversation key. Messages of one chat are handled in arrival order;
// different chats run concurrently.
type Bot struct {
	api  API
	flow *agent.FormFlow

	pollTimeout int
	wg          sync.WaitGroup

	mu     sync.Mutex
	queues map[int64][]tgbotapi.Update
}

type Option func(*Bot)

// WithPollTimeout sets the long polling timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(b *Bot) {
		if seconds > 0 {
			b.pollTimeout = seconds
		}
	}
}

func New(api API, flow *agent.FormFlow, opts ...Option) *Bot {
	b := &Bot{
		api:         api,
		flow:        flow,
		pollTimeout: 60,
		queues:      make(map[int64][]tgbotapi.Update),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dial connects to the Bot API with token.
func Dial(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	slog.Info("Authorized on Telegram", "account", api.Self.UserName)
	return api, nil
}

// Run polls for updates until ctx is done, then waits for in-flight handlers.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

// dispatch queues update behind earlier updates of the same chat. A chat
// has at most one worker, which exits once its queue is empty.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Chat == nil {
		return
	}
	chatID := update.Message.Chat.ID

	b.mu.Lock()
	if pending, running := b.queues[chatID]; running {
		b.queues[chatID] = append(pending, update)
		b.mu.Unlock()
		return
	}
	b.queues[chatID] = nil
	b.mu.Unlock()

	b.wg.Add(1)
	go b.drain(ctx, chatID, update)
}

func (b *Bot) drain(ctx context.Context, chatID int64, next tgbotapi.Update) {
	defer b.wg.Done()
	for {
		b.Handle(ctx, next)

		b.mu.Lock()
		pending := b.queues[chatID]
		if len(pending) == 0 {
			delete(b.queues, chatID)
			b.mu.Unlock()
			return
		}
		next = pending[0]
		b.queues[chatID] = pending[1:]
		b.mu.Unlock()
	}
}

// Handle processes a single update. Non-text updates are ignored.
func (b *Bot) Handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	chatID := msg.Chat.ID
	ctx = agent.WithStateKey(ctx, strconv.FormatInt(chatID, 10))

	var (
		resp *agent.Response
		err  error
	)
	if msg.IsCommand() && msg.Command() == startCommand {
		resp, err = b.flow.Restart(ctx)
	} else {
		resp, err = b.flow.Invoke(ctx, &agent.Request{UserInput: msg.Text})
	}
	if err != nil {
		slog.Error("Failed to handle message", "chat_id", chatID, "error", err)
		b.send(chatID, "Sorry, something went wrong. Please try again or type /cancel.")
		return
	}
	b.send(chatID, resp.Message)
}

func (b *Bot) send(chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Error("Failed to send telegram message", "chat_id", chatID, "error", err)
	}
}
