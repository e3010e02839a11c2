package server

import (
	"context"
	"errors"

	"github.com/NextMind-AI/crm-go/inbox"
	"github.com/NextMind-AI/crm-go/messages"
	"github.com/NextMind-AI/crm-go/openai"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// Summarizer produces a structured digest of a conversation.
type Summarizer interface {
	Summarize(ctx context.Context, conversationKey string, msgs []messages.Message) (openai.Summary, error)
}

// Exporter stores a conversation transcript and returns where it went.
type Exporter interface {
	ExportTranscript(ctx context.Context, conversationKey string, msgs []messages.Message) (string, error)
}

type Server struct {
	app           *fiber.App
	engine        *inbox.Engine
	poller        *inbox.Poller
	summarizer    Summarizer
	exporter      Exporter
	defaultClinic string
	corsOrigins   []string
}

type Option func(*Server)

func WithSummarizer(summarizer Summarizer) Option {
	return func(s *Server) {
		s.summarizer = summarizer
	}
}

func WithExporter(exporter Exporter) Option {
	return func(s *Server) {
		s.exporter = exporter
	}
}

// WithDefaultClinic sets the clinic used when a request does not name one.
func WithDefaultClinic(clinicID string) Option {
	return func(s *Server) {
		s.defaultClinic = clinicID
	}
}

func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

func New(engine *inbox.Engine, poller *inbox.Poller, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("server: engine is required")
	}
	if poller == nil {
		poller = inbox.NewPoller(engine, 0)
	}

	server := &Server{
		app:         fiber.New(),
		engine:      engine,
		poller:      poller,
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server, nil
}

func (s *Server) Start(port string) error {
	log.Info().Str("port", port).Msg("Starting CRM inbox server")

	return s.app.Listen(":"+port, fiber.ListenConfig{
		DisableStartupMessage: true,
	})
}

// Shutdown stops polling and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.poller.Stop()
	return s.app.ShutdownWithContext(ctx)
}
