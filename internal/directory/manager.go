package directory

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/directory/migrations"
)

// gooseUpContext is a seam for testing RunMigrations without a real goose run.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations to db, matching the
// startup sequence of a repositories/repomanager PostgresRepositoryManager:
// point goose at the embedded FS, pin the pgx dialect, and run.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// OpenPool opens a *sql.DB against dsn using the pgx stdlib driver and
// applies the pool size bounds from config.DirectoryConfig.
func OpenPool(dsn string, minConns, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)
	return db, nil
}
