package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.app.Use(requestLogger())

	s.app.Use(cors.New(cors.Config{
		AllowOrigins: s.corsOrigins,
		AllowMethods: []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete, fiber.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}))

	// CRM endpoints always answer JSON, including errors raised by fiber itself
	s.app.Use("/crm/*", func(c fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Next()
	})
}

// requestLogger writes one structured access log line per request. Polling
// and metrics scrapes are logged at debug.
func requestLogger() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		level := zerolog.InfoLevel
		switch {
		case status >= fiber.StatusInternalServerError:
			level = zerolog.ErrorLevel
		case status >= fiber.StatusBadRequest:
			level = zerolog.WarnLevel
		case c.Path() == "/metrics" || c.Path() == "/health":
			level = zerolog.DebugLevel
		case c.Method() == fiber.MethodPost && strings.HasSuffix(c.Path(), "/poll"):
			level = zerolog.DebugLevel
		}

		event := log.WithLevel(level)
		if err != nil {
			event = event.Err(err)
		}
		logRequest(event, c, status, time.Since(start))
		return err
	}
}

func logRequest(event *zerolog.Event, c fiber.Ctx, status int, latency time.Duration) {
	event.
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status_code", status).
		Dur("latency", latency).
		Str("ip", c.IP()).
		Msg("HTTP request")
}
