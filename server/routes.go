package server

import (
	"github.com/NextMind-AI/crm-go/metrics"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

const conversationPath = "/crm/inbox/:clinicId/conversations/:userId"

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.healthHandler)
	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// Inbox-wide state
	s.app.Get("/crm/inbox/schema", s.schemaHandler)
	s.app.Get("/crm/inbox/status", s.statusHandler)
	s.app.Put("/crm/inbox/active", s.setActiveHandler)

	// Per-conversation pagination
	s.app.Get(conversationPath, s.snapshotHandler)
	s.app.Post(conversationPath+"/load", s.loadHandler)
	s.app.Post(conversationPath+"/older", s.olderHandler)
	s.app.Post(conversationPath+"/poll", s.pollHandler)
	s.app.Post(conversationPath+"/watch", s.watchHandler)
	s.app.Delete(conversationPath+"/watch", s.unwatchHandler)

	// Tools
	s.app.Post(conversationPath+"/summary", s.summaryHandler)
	s.app.Post(conversationPath+"/export", s.exportHandler)
}

func (s *Server) healthHandler(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
