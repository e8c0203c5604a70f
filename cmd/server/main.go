package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/docuchat/docuchat/internal/auth"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/embedding"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/llmservice"
	"github.com/docuchat/docuchat/internal/ragsvc"
	"github.com/docuchat/docuchat/internal/server"
	"github.com/docuchat/docuchat/internal/store"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	flag.Parse()

	// Missing .env is fine; the config loader falls back to defaults.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	vectorStore, err := newVectorStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing vector store")
	}

	embedder, err := embedding.NewClient(&cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	completer, err := llmservice.NewClient(&cfg.Inference)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing completion client")
	}

	authenticator, err := auth.New(&cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing authenticator")
	}

	ingestService := ingest.NewService(vectorStore, embedder, cfg.RAG.MaxChunkSize, os.TempDir(), log.Logger)
	ragService := ragsvc.NewService(vectorStore, embedder, completer, cfg.RAG.TopK, log.Logger)

	app := server.New(cfg, vectorStore, ingestService, ragService, authenticator, log.Logger).App()

	log.Info().
		Str("addr", cfg.Addr).
		Str("store", cfg.Store.Type).
		Str("embedding_model", cfg.Embedding.Model).
		Str("inference_model", cfg.Inference.Model).
		Msg("Starting server")

	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func newVectorStore(cfg *config.Config) (store.VectorStore, error) {
	switch cfg.Store.Type {
	case "postgres":
		return store.NewPostgresStore(context.Background(), cfg.Store.DSN, cfg.Store.Dimension, cfg.Store.Debug)
	default:
		if err := os.MkdirAll(cfg.Store.PersistDir, 0o755); err != nil {
			return nil, err
		}
		return store.NewChromemStore(cfg.Store.PersistDir, cfg.Store.Collection)
	}
}
