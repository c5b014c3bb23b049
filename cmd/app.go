package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strata-ai/strata/db"
	"github.com/strata-ai/strata/internal/config"
	"github.com/strata-ai/strata/internal/embed"
	"github.com/strata-ai/strata/internal/log"
	"github.com/strata-ai/strata/internal/memory"
	"github.com/strata-ai/strata/internal/relation"
	"github.com/strata-ai/strata/internal/store"
)

var (
	logLevel string
	logJSON  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log in JSON format")
}

// app bundles the wired components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger log.Logger

	pool  *pgxpool.Pool
	store *store.Store

	relDB     *sql.DB
	relations *relation.Tracker

	scorer       *memory.Scorer
	classifier   *memory.Classifier
	calc         *memory.Calculator
	deduper      *memory.Deduper
	consolidator *memory.Consolidator
}

// newApp loads configuration, migrates both databases, and wires the core.
// Callers must defer a.Close().
func newApp(ctx context.Context) (*app, error) {
	logger := log.New(log.Config{Level: parseLevel(logLevel), JSON: logJSON})
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("migrating document store: %w", err)
	}

	pool, err := store.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}

	docStore, err := store.New(pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	relDB, err := relation.Open(cfg.RelationDBPath)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("opening relation database: %w", err)
	}
	if err := relation.Migrate(relDB); err != nil {
		_ = relDB.Close()
		pool.Close()
		return nil, fmt.Errorf("migrating relation database: %w", err)
	}
	tracker, err := relation.New(relDB, logger)
	if err != nil {
		_ = relDB.Close()
		pool.Close()
		return nil, err
	}

	matcher, err := memory.NewMatcher(cfg)
	if err != nil {
		_ = relDB.Close()
		pool.Close()
		return nil, fmt.Errorf("compiling domain patterns: %w", err)
	}

	return &app{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		store:        docStore,
		relDB:        relDB,
		relations:    tracker,
		scorer:       memory.NewScorer(cfg.Scoring, matcher),
		classifier:   memory.NewClassifier(cfg.Thresholds),
		calc:         memory.NewCalculator(cfg.TTL, cfg.Aging),
		deduper:      memory.NewDeduper(cfg.Dedup),
		consolidator: memory.NewConsolidator(cfg.Consolidation),
	}, nil
}

func (a *app) Close() {
	if a.relDB != nil {
		_ = a.relDB.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// newEmbedder builds the embedding provider. Only commands that score new
// content need it; maintenance runs without one.
func (a *app) newEmbedder(ctx context.Context) (*embed.Service, error) {
	return embed.NewGoogleAI(ctx, a.cfg.EmbedderModel, a.cfg.EmbedTimeout, a.logger)
}

// newIngestor wires the foreground ingestion path.
func (a *app) newIngestor(embedder memory.Embedder) *memory.Ingestor {
	return memory.NewIngestor(a.store, embedder, a.relations,
		a.scorer, a.classifier, a.calc, a.logger)
}

// newMaintainer wires the background lifecycle maintainer.
func (a *app) newMaintainer() *memory.Maintainer {
	return memory.NewMaintainer(a.store, a.relations, a.scorer, a.classifier,
		a.calc, a.deduper, a.consolidator, memory.NewLogSink(a.logger),
		a.cfg.Maintenance, a.cfg.Collections, a.logger)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
