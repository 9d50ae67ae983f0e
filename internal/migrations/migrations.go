// Package migrations carries the SQL schema and applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var files embed.FS

// Migrator wraps a golang-migrate instance bound to the embedded schema.
type Migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// New opens a migrator for a postgres:// DSN.
func New(dsn string, logger *zap.Logger) (*Migrator, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, DatabaseURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to init migrator: %w", err)
	}
	return &Migrator{m: m, logger: logger}, nil
}

// DatabaseURL rewrites a postgres:// DSN to the pgx5:// scheme of the driver.
func DatabaseURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

func (g *Migrator) Up() error {
	err := g.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		g.logger.Info("Schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	g.logger.Info("Schema migrated up")
	return nil
}

// Down rolls back steps migrations.
func (g *Migrator) Down(steps int) error {
	err := g.m.Steps(-steps)
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	g.logger.Info("Schema migrated down", zap.Int("steps", steps))
	return nil
}

func (g *Migrator) Version() (uint, bool, error) {
	return g.m.Version()
}

func (g *Migrator) Close() {
	srcErr, dbErr := g.m.Close()
	if srcErr != nil || dbErr != nil {
		g.logger.Warn("Failed to close migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
	}
}
