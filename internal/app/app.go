// Package app wires the stores, model backend and tools shared by every
// kinfolk process.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/kinfolk/internal/ai"
	"github.com/suPer8Hu/kinfolk/internal/chat"
	"github.com/suPer8Hu/kinfolk/internal/config"
	"github.com/suPer8Hu/kinfolk/internal/db"
	"github.com/suPer8Hu/kinfolk/internal/genealogy"
	"github.com/suPer8Hu/kinfolk/internal/store/redisstore"
	"github.com/suPer8Hu/kinfolk/internal/tools"
	"gorm.io/gorm"
)

type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Graph      *genealogy.Service
	ChatRepo   *chat.Repo
	Tools      *tools.Registry
	Dispatcher *tools.Dispatcher
	Backend    *ai.Backend
	Redis      *redisstore.Store // nil when REDIS_ADDR is empty

	log zerolog.Logger
}

// New connects the database (and Redis when configured), migrates the schema
// and builds the services.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: gdb, log: log}

	if cfg.RedisAddr != "" {
		rs := redisstore.New(
			redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB),
			log.With().Str("component", "redis").Logger(),
			redisstore.WithReportTTL(cfg.ReportCacheTTL),
			redisstore.WithTurnTTL(cfg.TurnLockTTL),
		)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			_ = db.Close(gdb)
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		a.Redis = rs
	}

	graphRepo := genealogy.NewRepo(gdb)
	a.ChatRepo = chat.NewRepo(gdb)
	if err := graphRepo.Migrate(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("migrate genealogy: %w", err)
	}
	if err := a.ChatRepo.Migrate(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("migrate chat: %w", err)
	}

	graphOpts := []genealogy.Option{genealogy.WithMaxAncestorWalk(cfg.MaxAncestorWalk)}
	if a.Redis != nil {
		graphOpts = append(graphOpts, genealogy.WithReportCache(a.Redis))
	}
	a.Graph = genealogy.NewService(graphRepo, log, graphOpts...)

	a.Tools = tools.NewRegistry()
	a.Dispatcher = tools.NewDispatcher(a.Graph, a.Graph.Refresh, log)
	a.Backend = ai.NewBackend(ai.DefaultRegistry(log), a.Tools.Tools(), log,
		ai.WithRetries(cfg.AIMaxRetries, 0))
	return a, nil
}

// Orchestrator builds a chat orchestrator over store; nil means the database.
func (a *App) Orchestrator(store chat.Store) *chat.Orchestrator {
	if store == nil {
		store = a.ChatRepo
	}
	opts := []chat.Option{
		chat.WithContextWindow(a.Config.ChatContextWindowSize),
		chat.WithDefaultProfile(config.DefaultProfile),
	}
	if a.Redis != nil {
		opts = append(opts, chat.WithLocker(a.Redis))
	}
	return chat.NewOrchestrator(store, a.Backend, a.Dispatcher, a.Config.Profiles, a.log, opts...)
}

func (a *App) Close() error {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close redis")
		}
	}
	return db.Close(a.DB)
}
