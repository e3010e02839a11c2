package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NextMind-AI/crm-go/aws"
	"github.com/NextMind-AI/crm-go/config"
	"github.com/NextMind-AI/crm-go/gateway"
	"github.com/NextMind-AI/crm-go/inbox"
	"github.com/NextMind-AI/crm-go/metrics"
	"github.com/NextMind-AI/crm-go/openai"
	"github.com/NextMind-AI/crm-go/redis"
	"github.com/NextMind-AI/crm-go/server"
	"github.com/NextMind-AI/crm-go/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := newSource(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.MessageSource).Msg("Failed to initialize message source")
	}

	engine, err := inbox.NewEngine(source,
		inbox.WithPageLimit(cfg.PageLimit),
		inbox.WithMaxConversations(cfg.MaxConversations),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create inbox engine")
	}
	poller := inbox.NewPoller(engine, cfg.PollInterval)

	if err := metrics.RegisterInbox(
		func() int { return len(engine.Conversations()) },
		poller.ActiveCount,
	); err != nil {
		log.Fatal().Err(err).Msg("Failed to register inbox metrics")
	}

	opts := []server.Option{
		server.WithDefaultClinic(cfg.ClinicID),
		server.WithCORSOrigins(cfg.CORSOrigins),
	}

	if cfg.ExportEnabled() {
		exporter, err := aws.NewExporter(cfg.S3Region, cfg.S3Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create transcript exporter")
		}
		log.Info().
			Str("bucket", cfg.S3Bucket).
			Str("region", cfg.S3Region).
			Msg("Transcript export enabled")
		opts = append(opts, server.WithExporter(exporter))
	}

	if cfg.SummaryEnabled() {
		summarizer := openai.NewClient(cfg.OpenAIKey, http.Client{})
		opts = append(opts, server.WithSummarizer(&summarizer))
		log.Info().Msg("Conversation summaries enabled")
	}

	srv, err := server.New(engine, poller, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down CRM inbox server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	if err := srv.Start(cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}

// newSource builds the fetcher selected by MESSAGE_SOURCE.
func newSource(ctx context.Context, cfg *config.Config) (inbox.Fetcher, error) {
	switch cfg.MessageSource {
	case config.SourceRedis:
		client, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("Reading messages from Redis")
		return client, nil

	case config.SourcePostgres:
		st, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(); err != nil {
			return nil, err
		}
		log.Info().Msg("Reading messages from Postgres")
		return st, nil

	default:
		client, err := gateway.NewClient(cfg.WorkflowAPIURL,
			gateway.WithAPIKey(cfg.WorkflowAPIKey),
			gateway.WithTimeout(cfg.FetchTimeout),
			gateway.WithRateLimit(cfg.FetchRateLimit, cfg.FetchRateBurst),
		)
		if err != nil {
			return nil, err
		}
		log.Info().Str("url", cfg.WorkflowAPIURL).Msg("Reading messages from workflow API")
		return client, nil
	}
}
