package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const migrationsDir = "migrations"

// RunMigrations applies every .sql file under migrations/ in lexical order.
// The files run on every boot, so their statements must be idempotent
// (CREATE TABLE IF NOT EXISTS and friends).
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("postgres pool not configured, skipping migrations")
		return nil
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", migrationsDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, name := range files {
		ddl, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		logger.Info("applying migration", zap.String("file", name))
		if _, err := pool.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
	}

	logger.Info("schema up to date", zap.Int("migrations", len(files)))
	return nil
}
