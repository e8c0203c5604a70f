package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/docuchat/docuchat/internal/auth"
	"github.com/docuchat/docuchat/internal/models"
	"github.com/docuchat/docuchat/internal/ragsvc"
	"github.com/docuchat/docuchat/internal/store"
)

var upgrader = websocket.FastHTTPUpgrader{
	CheckOrigin: func(ctx *fasthttp.RequestCtx) bool { return true },
}

type chatReply struct {
	Status  string        `json:"status"`
	Answer  string        `json:"answer,omitempty"`
	Message string        `json:"message,omitempty"`
	Sources []store.Match `json:"sources,omitempty"`
}

// handleChatWS authenticates the token query parameter and upgrades the
// connection; the loop then serves question/answer exchanges until the
// client disconnects.
func (s *Server) handleChatWS(c fiber.Ctx) error {
	principal, err := s.auth.Authenticate(c.Context(), c.Query("token"))
	if err != nil {
		if errors.Is(err, auth.ErrMisconfigured) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}

	return upgrader.Upgrade(c.RequestCtx(), func(conn *websocket.Conn) {
		s.chatLoop(conn, principal)
	})
}

func (s *Server) chatLoop(conn *websocket.Conn, principal string) {
	defer conn.Close()

	logger := s.log.With().
		Str("session", uuid.NewString()).
		Str("principal", principal).
		Logger()
	logger.Info().Msg("chat session opened")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			logger.Info().Msg("chat session closed")
			return
		}

		question := parseQuestion(payload)
		if strings.TrimSpace(question) == "" {
			s.send(conn, &logger, chatReply{Status: "error", Message: "Question payload is invalid."})
			continue
		}

		result, err := s.rag.Answer(context.Background(), question)
		if err != nil {
			logger.Error().Err(err).Msg("failed to answer question")
			s.send(conn, &logger, chatReply{Status: "error", Message: "Failed to answer the question. Please try again."})
			continue
		}

		s.send(conn, &logger, replyFor(result))
	}
}

func replyFor(result *ragsvc.Result) chatReply {
	switch result.Status {
	case ragsvc.StatusNotIndexed:
		return chatReply{Status: "error", Message: models.NotIndexedMessage}
	case ragsvc.StatusNoContext:
		return chatReply{Status: "error", Message: models.NoContextMessage}
	default:
		return chatReply{Status: "ok", Answer: result.Answer, Sources: result.Sources}
	}
}

func (s *Server) send(conn *websocket.Conn, logger *zerolog.Logger, reply chatReply) {
	if err := conn.WriteJSON(reply); err != nil {
		logger.Warn().Err(err).Msg("failed to write chat reply")
	}
}

// parseQuestion accepts either a JSON object with a question field or a
// raw text message.
func parseQuestion(payload []byte) string {
	var msg struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(payload, &msg); err == nil && msg.Question != "" {
		return msg.Question
	}
	return string(payload)
}
