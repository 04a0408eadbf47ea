// Package main provides the HardbanRecords Lab API server.
//
// The server fronts the rights and chapter catalogs, accepts uploads and partner
// store webhooks, and enforces the CORS, security header and rate limit policies.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/hardbanrecords/hardban-lab/internal/api"
	"github.com/hardbanrecords/hardban-lab/internal/api/middleware"
	"github.com/hardbanrecords/hardban-lab/internal/auth"
	"github.com/hardbanrecords/hardban-lab/internal/config"
	"github.com/hardbanrecords/hardban-lab/internal/events"
	"github.com/hardbanrecords/hardban-lab/internal/ratelimit"
	"github.com/hardbanrecords/hardban-lab/internal/storage"
)

const name = "hardban-lab"

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s %s\n", name, api.Version)
		os.Exit(0)
	}

	if err := config.RequireEnv(config.RequiredSecrets...); err != nil {
		log.Printf("%s: %v", name, err)
		os.Exit(1)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	if err := serverConfig.Validate(); err != nil {
		logger.Error("Invalid server configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := run(serverConfig, logger); err != nil {
		logger.Error("Server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("HardbanRecords Lab stopped")
}

// run wires the dependencies and blocks until the server shuts down. Kept apart
// from main so deferred cleanup runs before the process exits.
func run(serverConfig *api.ServerConfig, logger *slog.Logger) error {
	environment := config.LoadEnvironment()

	logger.Info("Starting HardbanRecords Lab",
		slog.String("service", name),
		slog.String("version", api.Version),
		slog.String("environment", environment.String()),
		slog.String("address", serverConfig.Address()),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.Duration("shutdown_timeout", serverConfig.ShutdownTimeout),
		slog.String("upload_dir", serverConfig.UploadDir),
	)

	if !environment.IsSpecified() {
		logger.Warn("APP_ENV and NODE_ENV are unset or unrecognised; development exemptions are off",
			slog.String("environment", environment.String()),
		)
	}

	storageConfig := storage.LoadConfig()
	if err := storageConfig.Validate(); err != nil {
		return err
	}

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		return err
	}

	defer func() {
		_ = dbConn.Close()
	}()

	logger.Info("Database connected",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
		slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
	)

	rightsStore, err := storage.NewRightsStore(dbConn, logger)
	if err != nil {
		return err
	}

	chapterStore, err := storage.NewChapterStore(dbConn, logger)
	if err != nil {
		return err
	}

	keyStore, err := storage.NewPersistentKeyStore(dbConn, logger)
	if err != nil {
		return err
	}

	authConfig, err := auth.LoadConfig()
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(authConfig)
	if err != nil {
		return err
	}

	limitConfig, err := ratelimit.LoadConfig()
	if err != nil {
		return err
	}

	// Falls back to in-memory counters when Redis is unset or unreachable.
	limits := ratelimit.NewRegistry(context.Background(), limitConfig, logger)

	logger.Info("Rate limiter initialized",
		slog.Bool("redis", limitConfig.UsesRedis()),
		slog.String("policy_file", limitConfig.PolicyFile),
	)

	eventsConfig := events.LoadConfig()

	publisher, err := events.NewPublisher(eventsConfig, logger)
	if err != nil {
		_ = limits.Close()

		return err
	}

	logger.Info("Webhook publisher initialized",
		slog.Bool("kafka", eventsConfig.Enabled()),
		slog.String("topic", eventsConfig.Topic),
	)

	server := api.NewServer(serverConfig, api.Dependencies{
		Rights:      rightsStore,
		Chapters:    chapterStore,
		ServiceKeys: keyStore,
		Tokens:      tokens,
		Limits:      limits,
		Publisher:   publisher,
		CORS:        middleware.LoadCORSConfig(),
		Health:      dbConn,
		Logger:      logger,
	})

	return server.Start()
}
