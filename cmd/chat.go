package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/tailortalk/internal/agent"
	"github.com/teemow/tailortalk/internal/conversation"
	"github.com/teemow/tailortalk/internal/instrumentation"
)

const (
	replReset = "/reset"
	replQuit  = "/quit"
)

func newChatCmd() *cobra.Command {
	var (
		sessionID string
		timezone  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the scheduling assistant in the terminal",
		Long: `Start an interactive conversation with the scheduling assistant.

Type a request such as "what's free on Friday afternoon?" and answer its
questions. Type /reset to start over and /quit (or Ctrl-D) to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			logger := newLogger(debugMode, false)
			a, err := buildApp(ctx, cfg, nil, instrumentation.AuditLoggingConfig{}, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return runREPL(ctx, a.agent, cmd.InOrStdin(), cmd.OutOrStdout(), sessionID, timezone)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Resume an existing session")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Display timezone (IANA name or abbreviation)")

	return cmd
}

// runREPL reads one message per line from in and writes the replies to out.
func runREPL(ctx context.Context, a *agent.Agent, in io.Reader, out io.Writer, sessionID, timezone string) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == replQuit:
			return nil
		case line == replReset:
			if sessionID != "" {
				if err := a.Reset(ctx, sessionID); err != nil && !errors.Is(err, conversation.ErrSessionNotFound) {
					return err
				}
			}
			sessionID = ""
			fmt.Fprintln(out, "Starting over.")
		default:
			resp, err := a.Handle(ctx, agent.ChatRequest{
				SessionID: sessionID,
				Message:   line,
				Timezone:  timezone,
			})
			if err != nil {
				return err
			}
			sessionID = resp.SessionID
			timezone = ""
			fmt.Fprintln(out, resp.Response)
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
