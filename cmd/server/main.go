package main

import (
	"time"

	"coldreach/internal/campaign"
	"coldreach/internal/classifier"
	"coldreach/internal/config"
	"coldreach/internal/crypto"
	"coldreach/internal/database"
	"coldreach/internal/generator"
	"coldreach/internal/llm"
	"coldreach/internal/mailer"
	"coldreach/internal/replies"
	"coldreach/internal/scraper"
	"coldreach/internal/server"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := cfg.SetupLogger()

	// Field encryption is mandatory: lead contact data and mailbox
	// credentials never hit the database in plaintext
	codec, err := crypto.NewCodec(cfg.DBEncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Field encryption setup failed")
	}

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	if err := database.CreateTables(db); err != nil {
		logger.Fatal().Err(err).Msg("Schema setup failed")
	}
	logger.Info().Msg("Database connection established successfully")

	store := database.NewStore(db, codec)

	// Completion client shared by the generator and the reply classifier
	chatter, err := llm.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, time.Duration(cfg.LLMTimeout)*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("Completion client setup failed")
	}

	orchestrator := campaign.New(store, campaign.Adapters{
		Source:      scraper.New(logger, time.Duration(cfg.PageFetchTimeout)*time.Second),
		Generator:   generator.New(chatter, logger),
		Transport:   mailer.New(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		DialMailbox: replies.DialMailbox,
		Correlator:  replies.NewCorrelator(classifier.New(chatter, logger), store, logger),
	}, cfg.APIBaseURL, logger)

	// Create and initialize server
	srv := server.New(cfg, store, orchestrator, logger)
	srv.Initialize()

	// Start server
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed to start")
	}
}
