package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gorm.io/gorm"

	"github.com/OpenNSW/duty/internal/config"
	"github.com/OpenNSW/duty/internal/database"
	"github.com/OpenNSW/duty/internal/duty"
	"github.com/OpenNSW/duty/internal/hts"
	"github.com/OpenNSW/duty/internal/hts/store"
	"github.com/OpenNSW/duty/internal/schedule"
)

// App holds the wired duty engine shared by the server and the CLI
type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      *store.GormStore
	Cache      *store.CachedLookup // nil when caching is disabled
	Resolver   *hts.Resolver
	Calculator *duty.Calculator
}

// New connects to the database, migrates the tariff table and builds the resolver
// and calculator from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a, err := build(ctx, cfg, db)
	if err != nil {
		if closeErr := database.Close(db); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, db *gorm.DB) (*App, error) {
	if err := database.HealthCheck(ctx, db); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	var storeOpts []store.Option
	if cfg.Database.Table != "" {
		storeOpts = append(storeOpts, store.WithTable(cfg.Database.Table))
	}
	if cfg.Database.CodeColumn != "" {
		storeOpts = append(storeOpts, store.WithCodeColumn(cfg.Database.CodeColumn))
	}
	tariffStore, err := store.NewGormStore(db, storeOpts...)
	if err != nil {
		return nil, err
	}
	if err := tariffStore.AutoMigrate(ctx); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: db, Store: tariffStore}

	var lookup hts.RecordLookup = tariffStore
	if cfg.Cache.Enabled {
		a.Cache = store.NewCachedLookup(tariffStore, cfg.Cache.TTL, cfg.Cache.CleanupInterval, cfg.Cache.MaxEntries)
		lookup = a.Cache
	}
	a.Resolver = hts.NewResolver(lookup, hts.WithLookupTimeout(cfg.Duty.LookupTimeout))

	ftaTable, err := duty.LoadFTATable(cfg.Duty.FTATablePath)
	if err != nil {
		return nil, err
	}
	a.Calculator = duty.NewCalculator(a.Resolver,
		duty.WithFTATable(ftaTable),
		duty.WithDefaultDestination(cfg.Duty.DefaultDestination),
		duty.WithConcurrency(cfg.Duty.BatchConcurrency),
	)

	slog.Info("duty engine ready",
		"table", cfg.Database.Table,
		"cache", cfg.Cache.Enabled,
		"lookupTimeout", cfg.Duty.LookupTimeout)
	return a, nil
}

// Source opens the configured schedule storage
func (a *App) Source(ctx context.Context) (schedule.Source, error) {
	return schedule.NewSourceFromConfig(ctx, a.Config.Storage)
}

// ImportSchedule imports key from the configured schedule storage, or the configured
// schedule key when key is empty. Cached lookups are dropped afterwards.
func (a *App) ImportSchedule(ctx context.Context, key string) (schedule.Report, error) {
	if key == "" {
		key = a.Config.Storage.ScheduleKey
	}
	src, err := a.Source(ctx)
	if err != nil {
		return schedule.Report{}, err
	}
	report, err := schedule.NewImporter(a.Store).ImportFromSource(ctx, src, key)
	a.FlushCache()
	return report, err
}

// PublishSchedule stores body under key in the configured schedule storage and
// imports it from there.
func (a *App) PublishSchedule(ctx context.Context, key string, body io.Reader) (schedule.Report, error) {
	if key == "" {
		key = a.Config.Storage.ScheduleKey
	}
	src, err := a.Source(ctx)
	if err != nil {
		return schedule.Report{}, err
	}
	if err := src.Save(ctx, key, body); err != nil {
		return schedule.Report{}, fmt.Errorf("failed to publish schedule %s: %w", key, err)
	}
	slog.InfoContext(ctx, "tariff schedule published", "key", key, "storage", a.Config.Storage.Type)
	return a.ImportSchedule(ctx, key)
}

// FlushCache drops cached lookups after the tariff table changed
func (a *App) FlushCache() {
	if a.Cache != nil {
		a.Cache.Flush()
	}
}

// HealthCheck pings the database
func (a *App) HealthCheck(ctx context.Context) error {
	return database.HealthCheck(ctx, a.DB)
}

func (a *App) Close() error {
	return database.Close(a.DB)
}
