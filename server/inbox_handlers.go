package server

import (
	"errors"
	"strings"

	"github.com/NextMind-AI/crm-go/inbox"
	"github.com/NextMind-AI/crm-go/messages"
	"github.com/NextMind-AI/crm-go/openai"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// conversationParams extracts the clinic and conversation key from the path.
func (s *Server) conversationParams(c fiber.Ctx) (clinicID, key string, err error) {
	clinicID = strings.TrimSpace(c.Params("clinicId"))
	userID := strings.TrimSpace(c.Params("userId"))

	if clinicID == "" || clinicID == "-" {
		clinicID = s.defaultClinic
	}
	if clinicID == "" {
		return "", "", errors.New("clinic ID is required")
	}
	if userID == "" {
		return "", "", errors.New("user ID is required")
	}

	return clinicID, messages.ConversationKey(clinicID, userID), nil
}

func badRequest(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    "INVALID_PARAMETER",
			Message: message,
		},
	})
}

// engineError maps an inbox error onto an HTTP response. The snapshot is
// attached so the caller can render the conversation with its error state.
func engineError(c fiber.Ctx, err error, snapshot inbox.Snapshot) error {
	switch {
	case inbox.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_PARAMETER",
				Message: err.Error(),
			},
		})
	case inbox.IsFetch(err):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error: ErrorDetail{
				Code:    "UPSTREAM_ERROR",
				Message: "Failed to fetch messages",
				Details: snapshot,
			},
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: err.Error(),
			},
		})
	}
}

func featureDisabled(c fiber.Ctx, feature string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    "FEATURE_DISABLED",
			Message: feature + " is not configured",
		},
	})
}

func (s *Server) schemaHandler(c fiber.Ctx) error {
	return c.JSON(openai.GenerateSchema[inbox.Snapshot]())
}

func (s *Server) statusHandler(c fiber.Ctx) error {
	return c.JSON(StatusResponse{
		Conversations: s.engine.Conversations(),
		Active:        s.engine.Active(),
		AnyLoading:    s.engine.AnyLoading(),
		Watched:       s.poller.Watched(),
	})
}

func (s *Server) setActiveHandler(c fiber.Ctx) error {
	var req SetActiveRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	key := ""
	if userID := strings.TrimSpace(req.UserID); userID != "" {
		clinicID := strings.TrimSpace(req.ClinicID)
		if clinicID == "" {
			clinicID = s.defaultClinic
		}
		if clinicID == "" {
			return badRequest(c, "clinic ID is required")
		}
		key = messages.ConversationKey(clinicID, userID)
	}

	s.engine.SetActive(key)
	log.Debug().Str("conversation_key", key).Msg("Active conversation changed")

	return c.JSON(ActiveResponse{Active: key})
}

func (s *Server) snapshotHandler(c fiber.Ctx) error {
	_, key, err := s.conversationParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(s.engine.Snapshot(key))
}

// loadHandler runs the initial load. With ?refresh=true the buffer is
// discarded first.
func (s *Server) loadHandler(c fiber.Ctx) error {
	clinicID, key, err := s.conversationParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if c.Query("refresh") == "true" {
		err = s.engine.Refresh(c.Context(), clinicID, key)
	} else {
		err = s.engine.LoadInitial(c.Context(), clinicID, key)
	}
	snapshot := s.engine.Snapshot(key)
	if err != nil {
		return engineError(c, err, snapshot)
	}
	return c.JSON(snapshot)
}

func (s *Server) olderHandler(c fiber.Ctx) error {
	clinicID, key, err := s.conversationParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	err = s.engine.LoadOlder(c.Context(), clinicID, key)
	snapshot := s.engine.Snapshot(key)
	if err != nil {
		return engineError(c, err, snapshot)
	}
	return c.JSON(snapshot)
}

func (s *Server) pollHandler(c fiber.Ctx) error {
	clinicID, key, err := s.conversationParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	added, err := s.poller.Tick(c.Context(), clinicID, key)
	snapshot := s.engine.Snapshot(key)
	if err != nil {
		return engineError(c, err, snapshot)
	}
	return c.JSON(PollResponse{Added: added, Snapshot: snapshot})
}

func (s *Server) watchHandler(c fiber.Ctx) error {
	clinicID, key, err := s.conversationParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := s.poller.Watch(clinicID, key); err != nil {
		return engineError(c, err, s.engine.Snapshot(key))
	}
	return c.Status(fiber.StatusAccepted).JSON(WatchResponse{ConversationKey: key, Watching: true})
}

func (s *Server) unwatchHandler(c fiber.Ctx) error {
	_, key, err := s.conversationParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	s.poller.Unwatch(key)
	return c.JSON(WatchResponse{ConversationKey: key, Watching: false})
}

func (s *Server) summaryHandler(c fiber.Ctx) error {
	if s.summarizer == nil {
		return featureDisabled(c, "Conversation summaries")
	}

	_, key, err := s.conversationParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	snapshot := s.engine.Snapshot(key)
	summary, err := s.summarizer.Summarize(c.Context(), key, snapshot.Messages)
	if errors.Is(err, openai.ErrEmptyConversation) {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error: ErrorDetail{
				Code:    "EMPTY_CONVERSATION",
				Message: "Load the conversation before summarizing it",
			},
		})
	}
	if err != nil {
		log.Error().Err(err).Str("conversation_key", key).Msg("Failed to summarize conversation")
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error: ErrorDetail{
				Code:    "UPSTREAM_ERROR",
				Message: "Failed to summarize conversation",
			},
		})
	}

	return c.JSON(SummaryResponse{
		ConversationKey: key,
		MessageCount:    len(snapshot.Messages),
		Summary:         summary,
	})
}

func (s *Server) exportHandler(c fiber.Ctx) error {
	if s.exporter == nil {
		return featureDisabled(c, "Transcript export")
	}

	_, key, err := s.conversationParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	snapshot := s.engine.Snapshot(key)
	if len(snapshot.Messages) == 0 {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error: ErrorDetail{
				Code:    "EMPTY_CONVERSATION",
				Message: "Load the conversation before exporting it",
			},
		})
	}

	url, err := s.exporter.ExportTranscript(c.Context(), key, snapshot.Messages)
	if err != nil {
		log.Error().Err(err).Str("conversation_key", key).Msg("Failed to export transcript")
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error: ErrorDetail{
				Code:    "UPSTREAM_ERROR",
				Message: "Failed to export transcript",
			},
		})
	}

	return c.Status(fiber.StatusCreated).JSON(ExportResponse{
		ConversationKey: key,
		MessageCount:    len(snapshot.Messages),
		URL:             url,
	})
}
