// Package app wires configuration, logging, secrets and the task store
// into the runtime shared by the fossilsync commands.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nhle/fossilsync/internal/credential"
	"github.com/nhle/fossilsync/internal/logging"
	"github.com/nhle/fossilsync/internal/model"
	"github.com/nhle/fossilsync/internal/source"
	"github.com/nhle/fossilsync/internal/store"
)

// Options are the global command-line settings.
type Options struct {
	ConfigPath     string
	DBPath         string
	LogLevel       string
	LogJSON        bool
	NonInteractive bool
}

// App holds the loaded configuration and the lazily opened store.
type App struct {
	Config      *model.AppConfig
	Logger      *zap.Logger
	Secrets     credential.Resolver
	Interactive bool

	dbPath string
	store  *store.SQLiteStore
}

// New loads the configuration at opts.ConfigPath and builds the logger and
// secret resolver. The store is opened on first use.
func New(opts Options) (*App, error) {
	path := opts.ConfigPath
	if path == "" {
		path = model.DefaultConfigPath()
	}

	cfg, err := model.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	level := cfg.General.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{Level: level, JSON: opts.LogJSON})
	if err != nil {
		return nil, err
	}

	dbPath := cfg.General.DBPath
	if opts.DBPath != "" {
		dbPath = opts.DBPath
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Secrets:     credential.NewOracleResolver(),
		Interactive: cfg.General.Interactive && !opts.NonInteractive,
		dbPath:      dbPath,
	}, nil
}

// Deps returns the dependencies handed to every service.
func (a *App) Deps() source.Deps {
	return source.Deps{
		Logger:      a.Logger,
		Secrets:     a.Secrets,
		Interactive: a.Interactive,
	}
}

// Targets returns the configured targets named in names, in that order, or
// every configured target when names is empty.
func (a *App) Targets(names ...string) ([]model.TargetConfig, error) {
	if len(names) == 0 {
		return a.Config.Targets, nil
	}

	targets := make([]model.TargetConfig, 0, len(names))
	for _, name := range names {
		t, ok := a.Config.Target(name)
		if !ok {
			return nil, fmt.Errorf("unknown target %q", name)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Store opens the task database, creating its directory when needed.
func (a *App) Store() (*store.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}

	if dir := filepath.Dir(a.dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	s, err := store.NewSQLiteStore(a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening task store %s: %w", a.dbPath, err)
	}
	a.store = s
	return s, nil
}

// Close releases the store and flushes the logger.
func (a *App) Close() error {
	_ = a.Logger.Sync()
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
