// Package server exposes the HTTP boundary: document upload, websocket
// chat, and a health check.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/docuchat/docuchat/internal/auth"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/ragsvc"
	"github.com/docuchat/docuchat/internal/store"
)

type Server struct {
	cfg    *config.Config
	store  store.VectorStore
	ingest *ingest.Service
	rag    *ragsvc.Service
	auth   auth.Authenticator
	log    zerolog.Logger
}

func New(cfg *config.Config, st store.VectorStore, ing *ingest.Service, rag *ragsvc.Service, authn auth.Authenticator, log zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		store:  st,
		ingest: ing,
		rag:    rag,
		auth:   authn,
		log:    log,
	}
}

// App assembles the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: s.cfg.AppName,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(s.requireAuth)
	api.Post("/documents", s.handleUpload)

	// Websocket connections carry credentials in the token query
	// parameter; auth happens inside the handler before the upgrade.
	app.Get("/ws/chat", s.handleChatWS)

	return app
}

// requireAuth resolves the Authorization header to a principal, failing
// closed on provider misconfiguration.
func (s *Server) requireAuth(c fiber.Ctx) error {
	credential := auth.CredentialFromHeader(c.Get(fiber.HeaderAuthorization))
	principal, err := s.auth.Authenticate(c.Context(), credential)
	if err != nil {
		if errors.Is(err, auth.ErrMisconfigured) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}
	c.Locals("principal", principal)
	return c.Next()
}
