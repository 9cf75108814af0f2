package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/api"
	"github.com/Shivendra2129/-PharmaGuard/internal/audit"
	"github.com/Shivendra2129/-PharmaGuard/internal/cache"
	"github.com/Shivendra2129/-PharmaGuard/internal/config"
	"github.com/Shivendra2129/-PharmaGuard/internal/database"
	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
	"github.com/Shivendra2129/-PharmaGuard/internal/explain"
	"github.com/Shivendra2129/-PharmaGuard/internal/knowledge"
	"github.com/Shivendra2129/-PharmaGuard/internal/service"
	"github.com/Shivendra2129/-PharmaGuard/internal/vcf"
)

func main() {
	// Local .env files are optional.
	_ = godotenv.Load()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)

	kb, err := knowledge.Load(cfg.Knowledge, logger)
	if err != nil {
		logger.WithError(err).Fatal("Knowledge base load failed, refusing to serve")
	}
	logger.WithFields(logrus.Fields{
		"drugs":             len(kb.SupportedDrugs()),
		"genes":             len(kb.SupportedGenes()),
		"guideline_version": kb.GuidelineVersion(),
	}).Info("Knowledge base loaded")

	assessor, err := service.NewAssessor(kb, cfg.Cache.MemoSize, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create assessor")
	}

	parser := vcf.NewParser(kb.SupportedGenes(), logger)

	var explanationCache explain.Cache
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewExplanationCache(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Warn("Explanation cache unavailable, continuing without it")
		} else {
			defer redisCache.Close()
			explanationCache = redisCache
		}
	}
	explainer := explain.NewService(explain.NewChatClient(cfg.Explainer, logger), explanationCache, logger)

	store := newAuditStore(cfg.Audit, logger)
	defer store.Close()

	server := api.NewServer(cfg.Server, assessor, parser, explainer, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

// newLogger builds the process logger from config.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}
	return logger
}

// newAuditStore selects the audit backend. A backend failure downgrades to
// the no-op store so assessments keep flowing.
func newAuditStore(cfg domain.AuditConfig, logger *logrus.Logger) audit.Store {
	switch cfg.Backend {
	case "sqlite":
		store, err := audit.NewSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			logger.WithError(err).Warn("SQLite audit store unavailable, auditing disabled")
			return audit.NopStore{}
		}
		return store
	case "postgres":
		ctx := context.Background()
		db, err := database.NewConnection(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.WithError(err).Warn("Postgres unavailable, auditing disabled")
			return audit.NopStore{}
		}
		runner, err := database.NewMigrationRunner(cfg.DatabaseURL, cfg.MigrationsPath, logger)
		if err != nil {
			logger.WithError(err).Warn("Migration setup failed, auditing disabled")
			db.Close()
			return audit.NopStore{}
		}
		if err := runner.Up(); err != nil {
			logger.WithError(err).Warn("Migrations failed, auditing disabled")
			runner.Close()
			db.Close()
			return audit.NopStore{}
		}
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Could not close migration runner")
		}
		return audit.NewPostgresStore(db.Conn, logger)
	default:
		return audit.NopStore{}
	}
}
