// ABOUTME: history subcommand: prints recent turns from the transcript ledger
// ABOUTME: Reads the SQLite ledger written by serve; it never feeds conversation state

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/slack-dify-bridge/internal/config"
	"github.com/2389/slack-dify-bridge/internal/conversation"
	"github.com/2389/slack-dify-bridge/internal/store"
)

const historyLimit = 20

func runHistory(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: slack-dify-bridge history CHANNEL USER")
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == "" {
		return errors.New("database.path is not set; the transcript ledger is disabled")
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening transcript ledger: %w", err)
	}
	defer s.Close()

	key := conversation.Key{ChannelID: args[0], UserID: args[1]}
	turns, err := s.ListTurns(ctx, key.String(), historyLimit)
	if err != nil {
		return fmt.Errorf("listing turns: %w", err)
	}

	printTurns(os.Stdout, key, turns)
	return nil
}

func printTurns(out io.Writer, key conversation.Key, turns []*store.Turn) {
	if len(turns) == 0 {
		fmt.Fprintf(out, "No turns recorded for %s\n", key)
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTATUS\tDURATION\tFILES\tQUERY\tANSWER")
	for _, t := range turns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			t.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			statusLabel(t.Status),
			t.Duration.Round(time.Millisecond),
			t.FileCount,
			truncate(t.Query, 40),
			truncate(answerOrError(t), 60),
		)
	}
	_ = tw.Flush()
}

func statusLabel(s store.TurnStatus) string {
	switch s {
	case store.TurnStatusOK:
		return color.GreenString(string(s))
	case store.TurnStatusTimeout:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}

func answerOrError(t *store.Turn) string {
	if t.Status == store.TurnStatusOK {
		return t.Answer
	}
	return t.Error
}

// truncate shortens s to n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
