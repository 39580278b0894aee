package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"

	"github.com/ant0n-grachev/telegram-reservation-bot/agent"
)

const consoleKey = "console"

func runConsole(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent: agent.NewAgent(
			"ReservationBot",
			"Collects a table reservation through conversation and submits it",
			a.flow,
		),
	})
	chatCtx := agent.WithStateKey(ctx, consoleKey)
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "Type anything to book a table, /start to restart, /cancel to stop.")
	for {
		fmt.Fprint(out, "You: ")
		input, rErr := reader.ReadString('\n')
		if rErr != nil {
			fmt.Fprintln(out, "\nBye.")
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/start" {
			resp, err := a.flow.Restart(chatCtx)
			if err != nil {
				return err
			}
			_ = a.history.Clear(chatCtx)
			fmt.Fprintf(out, "\nBot: %s\n======\n", resp.Message)
			continue
		}

		history, err := a.history.Append(chatCtx, schema.UserMessage(input))
		if err != nil {
			return err
		}
		iter := runner.Run(chatCtx, history)
		for {
			event, ok := iter.Next()
			if !ok {
				break
			}
			if event.Err != nil {
				return event.Err
			}
			msg, err := event.Output.MessageOutput.GetMessage()
			if err != nil {
				return err
			}
			if _, err := a.history.Append(chatCtx, msg); err != nil {
				return err
			}
			if _, open, err := a.flow.Snapshot(chatCtx); err == nil && !open {
				_ = a.history.Clear(chatCtx)
			}
			fmt.Fprintf(out, "\nBot: %s\n======\n", msg.Content)
		}
	}
}
