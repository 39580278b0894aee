package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/ant0n-grachev/telegram-reservation-bot/agent"
	"github.com/ant0n-grachev/telegram-reservation-bot/booking"
	"github.com/ant0n-grachev/telegram-reservation-bot/config"
	"github.com/ant0n-grachev/telegram-reservation-bot/dialogue"
	"github.com/ant0n-grachev/telegram-reservation-bot/server"
	"github.com/ant0n-grachev/telegram-reservation-bot/telegram"
)

const historyKeep = 50

func main() {
	confPath := flag.String("config", "config.json", "path to config file")
	mode := flag.String("mode", "telegram", "run mode: console, telegram or http")
	flag.Parse()

	conf, err := config.Load(*confPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startApp(ctx, conf, *mode); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("start app: %v", err)
	}
}

type app struct {
	flow    *agent.FormFlow
	history *agent.HistoryStore
}

func startApp(ctx context.Context, conf *config.Config, mode string) error {
	slog.SetLogLoggerLevel(conf.SlogLevel())

	a, cleanup, err := newApp(ctx, conf)
	if err != nil {
		return err
	}
	defer cleanup()

	switch mode {
	case "console":
		return runConsole(ctx, a, os.Stdin, os.Stdout)
	case "telegram":
		api, err := telegram.Dial(conf.Telegram.Token)
		if err != nil {
			return err
		}
		return telegram.New(api, a.flow).Run(ctx)
	case "http":
		return runHTTP(ctx, conf.HTTP.Addr, a.flow, conf.Booking.Timeout)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func newApp(ctx context.Context, conf *config.Config) (*app, func(), error) {
	loc, err := conf.Location()
	if err != nil {
		return nil, nil, err
	}

	var (
		sessions *agent.SessionStore
		history  *agent.HistoryStore
		cleanup  = func() {}
	)
	switch conf.Store.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     conf.Store.RedisAddr,
			Password: conf.Store.RedisPassword,
			DB:       conf.Store.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", conf.Store.RedisAddr, err)
		}
		sessions = agent.NewSessionStore(agent.NewRedisCache[*agent.State](client, conf.Store.TTL))
		history = agent.NewHistoryStore(agent.NewRedisCache[[]*schema.Message](client, conf.Store.TTL), historyKeep)
		cleanup = func() { _ = client.Close() }
	default:
		sessions = agent.NewMemorySessionStore()
		history = agent.NewMemoryHistoryStore(historyKeep)
	}

	submitter := booking.NewSubmitter(conf.Booking.Endpoint, conf.Booking.Venue(),
		booking.WithTimeout(conf.Booking.Timeout),
		booking.WithRatePerMinute(conf.Booking.RatePerMinute),
	)

	generator, err := newDialogueGenerator(ctx, conf.LLM, loc)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	flow := agent.NewFormFlow(sessions, submitter,
		agent.WithDialogueGenerator(generator),
		agent.WithLocation(loc),
		agent.WithSubmitTimeout(conf.Booking.Timeout),
	)
	return &app{flow: flow, history: history}, cleanup, nil
}

// newDialogueGenerator phrases replies with the chat model when one is
// configured and falls back to the fixed templates otherwise.
func newDialogueGenerator(ctx context.Context, conf config.LLM, loc *time.Location) (dialogue.Generator, error) {
	local := &dialogue.LocalDialogueGenerator{}
	if !conf.Enabled() {
		return local, nil
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  conf.APIKey,
		Model:   conf.Model,
		BaseURL: conf.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	llm, err := dialogue.NewToolBasedDialogueGenerator(cm,
		dialogue.WithDraftGenerator(local),
		dialogue.WithClock(func() time.Time { return time.Now().In(loc) }),
	)
	if err != nil {
		return nil, err
	}
	slog.Info("Dialogue phrasing enabled", "model", conf.Model)
	return dialogue.NewFailbackDialogueGenerator(llm, local), nil
}

func runHTTP(ctx context.Context, addr string, flow *agent.FormFlow, submitTimeout time.Duration) error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(flow),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace(submitTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// shutdownGrace lets in-flight submissions run up to their timeout.
func shutdownGrace(submitTimeout time.Duration) time.Duration {
	return submitTimeout + 5*time.Second
}
