// Package app wires configuration, storage, the catalog and the planner
// into one unit shared by the CLI and the daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/arazimproject/dibit/internal/catalog"
	"github.com/arazimproject/dibit/internal/cloudsync"
	"github.com/arazimproject/dibit/internal/config"
	"github.com/arazimproject/dibit/internal/planner"
	"github.com/arazimproject/dibit/internal/selection"
	"github.com/arazimproject/dibit/internal/storage/local"
	"github.com/arazimproject/dibit/internal/storage/postgres"
	"github.com/arazimproject/dibit/internal/storage/sqlite"
)

// File names under the dibit directory
const (
	SelectionDB = "dibit.db"
	CatalogDB   = "catalog.db"
)

// ErrNoSelection is returned by RawSelection before anything was saved.
var ErrNoSelection = errors.New("no selection stored")

// App holds all application dependencies
type App struct {
	Config   *config.LocalConfig
	Dir      string
	Planner  *planner.Planner
	Provider *catalog.Provider

	// Revisions is set when the selection lives in SQLite
	Revisions *sqlite.SelectionStore
	// Local is set when the selection lives in the JSON store
	Local *local.SelectionRepository
	// CatalogStore is nil when the catalog cache could not be opened
	CatalogStore *sqlite.CatalogStore

	raw     func(ctx context.Context) ([]byte, error)
	closers []func() error
}

// AppConfig holds configuration for application initialization
type AppConfig struct {
	Config *config.LocalConfig
	Dir    string // Defaults to ~/.dibit
	Logger *slog.Logger
	// Source replaces the network catalog; used by tests and offline tools
	Source planner.CatalogSource
}

// NewApp creates a new application instance with all dependencies wired
func NewApp(ctx context.Context, cfg AppConfig) (*App, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := cfg.Dir
	if dir == "" {
		d, err := config.EnsureDibitDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	a := &App{Config: cfg.Config, Dir: dir}

	repo, err := a.openSelection()
	if err != nil {
		a.Close()
		return nil, err
	}

	source := cfg.Source
	if source == nil {
		a.Provider = a.openCatalog(logger)
		source = a.Provider
	}

	container, err := selection.Open(ctx, repo)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open selection: %w", err)
	}

	opts := []planner.Option{planner.WithLogger(logger)}
	if tz := cfg.Config.Calendar.Timezone; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load timezone %q: %w", tz, err)
		}
		opts = append(opts, planner.WithTimezone(loc))
	}
	if dsn := cfg.Config.Sync.PostgresURL; dsn != "" {
		store, err := postgres.Connect(ctx, dsn, cfg.Config.Sync.Table)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect cloud store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		opts = append(opts, planner.WithCloudSync(cloudsync.NewService(store)))
	}

	a.Planner, err = planner.New(container, source, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openSelection opens the configured selection backend.
func (a *App) openSelection() (selection.Repository, error) {
	switch a.Config.Storage.Backend {
	case config.StorageSQLite:
		db, err := sqlite.OpenMigrated(filepath.Join(a.Dir, SelectionDB))
		if err != nil {
			return nil, fmt.Errorf("open selection database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.Revisions = sqlite.NewSelectionStore(db)
		a.raw = a.Revisions.Raw
		return a.Revisions, nil
	default:
		store, err := local.NewStore(filepath.Join(a.Dir, "data"))
		if err != nil {
			return nil, fmt.Errorf("open selection store: %w", err)
		}
		repo := local.NewSelectionRepository(store)
		a.Local = repo
		a.raw = func(context.Context) ([]byte, error) { return repo.Raw() }
		return repo, nil
	}
}

// openCatalog builds the fetch chain. A broken cache database only costs
// persistence, so it is logged and skipped.
func (a *App) openCatalog(logger *slog.Logger) *catalog.Provider {
	resCfg := catalog.DefaultResilientConfig()
	if n := a.Config.Catalog.MaxAttempts; n > 0 {
		resCfg.MaxAttempts = n
	}
	resCfg.Logger = logger
	fetcher := catalog.NewResilientFetcher(catalog.NewHTTPFetcher(a.Config.Catalog.Timeout()), resCfg)
	a.closers = append(a.closers, fetcher.Close)

	cacheOpts := []catalog.CacheOption{catalog.WithLogger(logger)}
	db, err := sqlite.OpenMigrated(filepath.Join(a.Dir, "cache", CatalogDB))
	if err != nil {
		logger.Warn("catalog cache unavailable", "error", err)
	} else {
		a.closers = append(a.closers, db.Close)
		a.CatalogStore = sqlite.NewCatalogStore(db)
		cacheOpts = append(cacheOpts, catalog.WithStore(a.CatalogStore, a.Config.Catalog.CacheTTL()))
	}

	return catalog.NewProvider(a.Config.Catalog.BaseURL, catalog.NewCache(fetcher, cacheOpts...))
}

// RawSelection returns the stored selection document as written.
func (a *App) RawSelection(ctx context.Context) ([]byte, error) {
	raw, err := a.raw(ctx)
	if errors.Is(err, local.ErrNotFound) || errors.Is(err, sqlite.ErrRevisionNotFound) {
		return nil, ErrNoSelection
	}
	return raw, err
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
