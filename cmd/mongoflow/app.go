package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"mongoflow/internal/config"
	"mongoflow/internal/db"
	"mongoflow/internal/handlers"
	"mongoflow/internal/logging"

	"github.com/gin-gonic/gin"
)

const secretTimeout = 5 * time.Second

// App holds all constructed dependencies. It is built once per process and
// handed to the serve or lambda runner.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *db.Store
	Engine *gin.Engine
}

type parameterClientFunc func(ctx context.Context) (config.ParameterGetter, error)

func defaultParameterClient(ctx context.Context) (config.ParameterGetter, error) {
	client, err := config.NewSSMClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// buildApp constructs all application dependencies:
//  1. Loads configuration (optionally from a dotenv file)
//  2. Creates the logger
//  3. Resolves the connection string from SSM when requested
//  4. Creates the MongoDB store (not dialed yet)
//  5. Creates the HTTP router
func buildApp(ctx context.Context, opts *options, params parameterClientFunc) (*App, error) {
	var envFiles []string
	if opts.envFile != "" {
		envFiles = append(envFiles, opts.envFile)
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// --log-level takes precedence over LOG_LEVEL.
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(logger)

	resolveSecrets(ctx, cfg, logger, params)

	if err := cfg.RequireMongoURI(); err != nil {
		logger.Warn("database routes disabled", "reason", err.Error())
	}
	logger.Info("configuration loaded",
		"database", cfg.DBName,
		"collection", cfg.CollectionName,
		"mongodb_configured", cfg.MongoDBURI != "",
		"cors_origins", cfg.CORS.AllowOrigins,
	)

	gin.SetMode(gin.ReleaseMode)
	store := db.NewStore(cfg, logger)

	return &App{
		Config: cfg,
		Logger: logger,
		Store:  store,
		Engine: handlers.NewRouter(cfg.CORS, store, logger),
	}, nil
}

// resolveSecrets is best-effort: a failure leaves the URI unset so the service
// still starts and database routes report the missing configuration.
func resolveSecrets(ctx context.Context, cfg *config.Config, logger *slog.Logger, params parameterClientFunc) {
	if !cfg.NeedsSecretResolution() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, secretTimeout)
	defer cancel()

	client, err := params(ctx)
	if err != nil {
		logger.Warn("ssm client init failed", "err", err)
		return
	}
	if err := cfg.ResolveMongoURI(ctx, client); err != nil {
		logger.Warn("resolving MONGODB_URI from ssm failed", "parameter", cfg.MongoDBURIParameter, "err", err)
		return
	}
	logger.Info("resolved MONGODB_URI from ssm", "parameter", cfg.MongoDBURIParameter)
}

// Close releases the database client.
func (a *App) Close(ctx context.Context) {
	if err := a.Store.Close(ctx); err != nil {
		a.Logger.Warn("mongodb disconnect failed", "err", err)
	}
}
