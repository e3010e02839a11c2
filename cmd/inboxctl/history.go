package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/NextMind-AI/crm-go/inbox"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	historyPages int
	historyWidth int
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyPages, "pages", 0, "maximum older pages to load (0 loads everything)")
	historyCmd.Flags().IntVar(&historyWidth, "width", 80, "terminal width used for wrapping")
}

var historyCmd = &cobra.Command{
	Use:   "history [user-id]",
	Short: "Print a conversation, paging back to its first message",
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

		vp := newTextViewport(historyWidth)
		pages, err := walkHistory(ctx, engine, vp, opts.clinicID, key, historyPages)
		if err != nil {
			return err
		}

		vp.SetScrollTop(0)
		if _, err := vp.WriteTo(cmd.OutOrStdout()); err != nil {
			return err
		}

		snap := engine.Snapshot(key)
		fmt.Fprintf(cmd.ErrOrStderr(), "%s messages across %d pages (has more: %t)\n",
			humanize.Comma(int64(len(snap.Messages))), pages, snap.Pagination.HasMore)
		return nil
	},
}

// walkHistory loads the newest page and then keeps scrolling to the top
// until the oldest message is reached or maxPages older pages were added.
func walkHistory(ctx context.Context, engine *inbox.Engine, vp *textViewport, clinicID, key string, maxPages int) (int, error) {
	if err := engine.LoadInitial(ctx, clinicID, key); err != nil {
		return 0, err
	}
	vp.Render(engine.Snapshot(key).Messages)
	vp.SetScrollTop(vp.ScrollHeight())

	scroller := inbox.NewScrollController(engine)
	pages := 1
	for maxPages <= 0 || pages <= maxPages {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		vp.SetScrollTop(0)
		loaded, err := scroller.OnScroll(ctx, vp, clinicID, key)
		if err != nil {
			return pages, err
		}
		if !loaded {
			break
		}
		pages++

		log.Debug().
			Str("conversation_key", key).
			Int("page", pages).
			Float64("scroll_top", vp.ScrollTop()).
			Msg("Loaded older page")
	}
	return pages, nil
}
