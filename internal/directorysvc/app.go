// Package directorysvc wires the Directory repository, its Postgres pool,
// and a periodic maintenance loop into a runnable App.
package directorysvc

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/config"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/directory"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/logging"
)

// App owns the Directory's database pool and its background purge loop.
type App struct {
	config *config.DirectoryConfig
	logger logging.Logger
	db     *sql.DB
	repo   directory.Repository
}

// NewApp opens the Postgres pool, runs migrations, and constructs the
// Directory repository over it.
func NewApp(ctx context.Context, cfg *config.DirectoryConfig) (*App, error) {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := directory.OpenPool(cfg.DatabaseDSN, cfg.PoolMinSize, cfg.PoolMaxSize)
	if err != nil {
		return nil, fmt.Errorf("directorysvc: db init error: %w", err)
	}

	if err := directory.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("directorysvc: migration error: %w", err)
	}

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		repo:   directory.NewPostgresRepository(db),
	}, nil
}

// Repository exposes the constructed Directory repository, e.g. for a
// wire/gRPC layer added later.
func (app *App) Repository() directory.Repository {
	return app.repo
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runMaintenance periodically purges stale unclaimed rows and hard-deletes
// long-claimed rows, per spec.md §4.3's housekeeping requirements.
func (app *App) runMaintenance(ctx context.Context) {
	ticker := time.NewTicker(app.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := app.repo.PurgeStale(ctx, int(app.config.PurgeStaleAfter.Hours()/24))
			if err != nil {
				app.logger.Error(ctx, "purge stale failed", "error", err)
			} else if purged > 0 {
				app.logger.Info(ctx, "purged stale directory rows", "count", purged)
			}

			deleted, err := app.repo.HardDeleteClaimed(ctx, int(app.config.HardDeleteClaimedAfter.Hours()))
			if err != nil {
				app.logger.Error(ctx, "hard delete claimed failed", "error", err)
			} else if deleted > 0 {
				app.logger.Info(ctx, "hard-deleted claimed directory rows", "count", deleted)
			}
		}
	}
}

// Run blocks until an OS signal or ctx cancellation stops the maintenance
// loop, then closes the pool.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting directory service")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runMaintenance(ctx)
	}()
	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing db", "error", err)
	}
}
