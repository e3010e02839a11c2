package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/NextMind-AI/crm-go/config"
	"github.com/NextMind-AI/crm-go/gateway"
	"github.com/NextMind-AI/crm-go/inbox"
	"github.com/NextMind-AI/crm-go/messages"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// options holds the flags shared by every subcommand.
type options struct {
	url      string
	apiKey   string
	clinicID string
	limit    int
	verbose  bool
}

var opts options

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "inboxctl",
	Short: "Browse clinic chat conversations from the terminal",
	Long: `inboxctl reads conversations from the workflow message API using the
same paging and reconciliation rules as the CRM inbox.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(opts.verbose)
	},
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cfg := config.Load()

	// Disable completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&opts.url, "url", cfg.WorkflowAPIURL, "workflow message API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", cfg.WorkflowAPIKey, "bearer token for the message API")
	rootCmd.PersistentFlags().StringVar(&opts.clinicID, "clinic", cfg.ClinicID, "clinic ID")
	rootCmd.PersistentFlags().IntVar(&opts.limit, "limit", cfg.PageLimit, "messages per page")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
}

func setupLogging(verbose bool) {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// newEngine builds an engine reading from the message API.
func newEngine() (*inbox.Engine, error) {
	client, err := gateway.NewClient(opts.url, gateway.WithAPIKey(opts.apiKey))
	if err != nil {
		return nil, err
	}
	return inbox.NewEngine(client, inbox.WithPageLimit(opts.limit))
}

func conversationKey(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user ID is required")
	}
	if strings.TrimSpace(opts.clinicID) == "" {
		return "", errors.New("clinic ID is required")
	}
	return messages.ConversationKey(opts.clinicID, userID), nil
}
