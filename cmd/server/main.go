package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/api"
	"github.com/biomarker-insight-server/internal/cache"
	"github.com/biomarker-insight-server/internal/config"
	"github.com/biomarker-insight-server/internal/database"
	"github.com/biomarker-insight-server/internal/domain"
	"github.com/biomarker-insight-server/internal/reference"
	"github.com/biomarker-insight-server/internal/repository"
	"github.com/biomarker-insight-server/internal/service"
	"github.com/biomarker-insight-server/pkg/dictionary"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reference tables
	ref, err := reference.NewStore(logger, cfg.Reference.OverridePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load reference tables")
	}

	// Analytics pipeline
	classifier := service.NewClassifier(service.ClassifierPolicy{
		BorderlineBand:       cfg.Analytics.BorderlineBand,
		SevereDeviationRatio: cfg.Analytics.SevereDeviationRatio,
		CriticalPercent:      cfg.Analytics.CriticalPercent,
	})
	normalizer := service.NewNormalizer(logger, classifier)
	patterns := service.NewPatternDetector(logger)
	risk := service.NewRiskScorer(logger)
	corr := service.NewCorrelationEngine(logger)
	trend := service.NewTrendEngine(logger, cfg.Analytics.TrendSlopeThreshold)
	composer := service.NewInsightComposer(logger, cfg.Analytics.CorrelationSignificance)

	opts := make([]service.EvaluatorOption, 0, 3)

	// History store
	history := newHistoryStore(logger, cfg.Database)
	if history != nil {
		defer history.Close()
		opts = append(opts, service.WithHistory(history))
	}

	// Evaluation cache
	switch cfg.Cache.Backend {
	case "memory":
		opts = append(opts, service.WithCache(cache.NewMemoryCache(logger, cfg.Cache.Size, cfg.Cache.TTL), cfg.Cache.TTL))
	case "redis":
		redisCache, err := cache.NewRedisCache(ctx, logger, cfg.Cache.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisCache.Close()
		opts = append(opts, service.WithCache(redisCache, cfg.Cache.TTL))
	}

	// Remote dictionary fallback resolver
	if cfg.Dictionary.Enabled {
		resolver, err := dictionary.NewClient(cfg.Dictionary, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create dictionary client")
		}
		opts = append(opts, service.WithResolver(resolver))
	}

	evaluator := service.NewEvaluator(logger, ref, normalizer, patterns, risk, corr, trend, composer, opts...)

	// Health-check pool for Postgres deployments
	var db *database.DB
	if cfg.Database.Driver == "postgres" {
		db, err = database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create database pool")
		}
		defer db.Close()
	}

	server := api.NewServer(configManager, logger, evaluator, ref, history, db)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting biomarker insight server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
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

	return logger
}

func newHistoryStore(logger *logrus.Logger, cfg config.DatabaseConfig) domain.HistoryRepository {
	switch cfg.Driver {
	case "sqlite":
		store, err := repository.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open SQLite history store")
		}
		logger.WithField("path", cfg.SQLitePath).Info("SQLite history store opened")
		return store
	case "postgres":
		store, err := repository.NewPostgresStoreFromURL(cfg.PostgresURL, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open Postgres history store")
		}
		logger.Info("Postgres history store opened")
		return store
	default:
		logger.Warn("No history store configured, longitudinal analysis disabled")
		return nil
	}
}
