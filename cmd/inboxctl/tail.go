package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/NextMind-AI/crm-go/inbox"
	"github.com/NextMind-AI/crm-go/messages"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tailInterval time.Duration

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().DurationVar(&tailInterval, "interval", inbox.DefaultPollInterval, "poll interval")
}

var tailCmd = &cobra.Command{
	Use:   "tail [user-id]",
	Short: "Print the newest page of a conversation and follow new messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := conversationKey(args[0])
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if err := engine.LoadInitial(ctx, opts.clinicID, key); err != nil {
			return err
		}
		engine.SetActive(key)

		err = follow(ctx, engine, cmd.OutOrStdout(), opts.clinicID, key, tailInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// follow prints the buffer and then every message appended by a poll until
// ctx is done.
func follow(ctx context.Context, engine *inbox.Engine, out io.Writer, clinicID, key string, interval time.Duration) error {
	vp := newTextViewport(80)
	printed := printFrom(vp, out, engine.Snapshot(key).Messages, 0)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			added, err := engine.PollNew(ctx, clinicID, key)
			if err != nil {
				return err
			}
			if added == 0 {
				continue
			}
			log.Debug().Int("added", added).Str("conversation_key", key).Msg("New messages")
			printed = printFrom(vp, out, engine.Snapshot(key).Messages, printed)
		}
	}
}

func printFrom(vp *textViewport, out io.Writer, msgs []messages.Message, from int) int {
	for _, m := range msgs[from:] {
		for _, line := range vp.format(m) {
			fmt.Fprintln(out, line)
		}
	}
	return len(msgs)
}
