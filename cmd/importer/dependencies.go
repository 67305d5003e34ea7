package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/echo-importer/internal/domain/categorization"
	"github.com/FACorreiaa/echo-importer/internal/domain/import/parser"
	"github.com/FACorreiaa/echo-importer/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/echo-importer/internal/domain/import/service"
	"github.com/FACorreiaa/echo-importer/pkg/config"
	"github.com/FACorreiaa/echo-importer/pkg/db"
	"github.com/FACorreiaa/echo-importer/pkg/metrics"
	"github.com/FACorreiaa/echo-importer/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	TransactionStore   repository.TransactionStore
	CategorizationRepo *categorization.Repository

	// Services
	Parser                *parser.Parser
	CategorizationService *categorization.Service
	ImportService         *importservice.ImportService
	Archive               storage.Archive
	Metrics               *metrics.ImportMetrics
}

type dependencyOptions struct {
	// DryRun wraps the transaction store so nothing is written and skips
	// archiving.
	DryRun bool
	// SkipMigrations leaves the schema alone.
	SkipMigrations bool
	// DatabaseOnly stops after connecting.
	DatabaseOnly bool
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts dependencyOptions) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, !opts.SkipMigrations); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if opts.DatabaseOnly {
		return deps, nil
	}

	deps.initRepositories(opts.DryRun)

	if err := deps.initServices(opts.DryRun); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Debug("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase connects and, unless told otherwise, applies migrations.
func (d *Dependencies) initDatabase(ctx context.Context, migrate bool) error {
	database, err := db.New(ctx, db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        d.Config.Database.MaxConns,
		MinConns:        d.Config.Database.MinConns,
		MaxConnLifetime: 5 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if migrate {
		if err := d.DB.RunMigrations(ctx); err != nil {
			d.DB.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}

func (d *Dependencies) initRepositories(dryRun bool) {
	var store repository.TransactionStore = repository.NewPostgresStore(d.DB.Pool)
	if dryRun {
		store = repository.NewDryRunStore(store)
	}
	d.TransactionStore = store
	d.CategorizationRepo = categorization.NewRepository(d.DB.Pool)
}

func (d *Dependencies) initServices(dryRun bool) error {
	registry, err := newLayoutRegistry(d.Config.Import.LayoutsFile, d.Logger)
	if err != nil {
		return err
	}
	d.Parser = parser.New(registry, d.Logger)

	d.CategorizationService = categorization.NewService(d.CategorizationRepo, d.CategorizationRepo, d.Logger)
	d.Metrics = metrics.New()

	d.ImportService = importservice.NewImportService(d.Parser, d.TransactionStore, d.Logger).
		WithCategorizer(d.CategorizationService).
		WithMetrics(d.Metrics).
		WithMaxContentBytes(d.Config.Import.MaxContentBytes)

	if !dryRun && d.Config.Storage.ArchivePath != "" {
		archive, err := storage.NewLocalStorage(d.Config.Storage.ArchivePath)
		if err != nil {
			return fmt.Errorf("failed to init archive: %w", err)
		}
		d.Archive = archive
		d.ImportService.WithArchive(archive)
	}
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
}
