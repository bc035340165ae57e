package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dnldd/emachart/market"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteConfig is the configuration for the sqlite database.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// SQLite represents a local sqlite database.
type SQLite struct {
	cfg *SQLiteConfig
	db  *sql.DB
}

// Ensure the sqlite database implements the SeriesStorer interface.
var _ SeriesStorer = (*SQLite)(nil)

// NewSQLite opens (or creates) the sqlite database and bootstraps its schema.
func NewSQLite(ctx context.Context, cfg *SQLiteConfig) (*SQLite, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	_, err = db.ExecContext(ctx, "PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("setting wal mode: %w", err)
	}

	s := &SQLite{cfg: cfg, db: db}
	err = s.execute(ctx, bootstrapStatements())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return s, nil
}

// execute runs the provided statements in a single transaction.
func (s *SQLite) execute(ctx context.Context, stmts []statement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	for idx := range stmts {
		_, err := tx.ExecContext(ctx, stmts[idx].SQL, stmts[idx].Params...)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("executing statement %d: %w", idx, err)
		}
	}

	return tx.Commit()
}

// PersistSeries stores the provided series under the provided run id.
func (s *SQLite) PersistSeries(ctx context.Context, runID string, series *market.Series) error {
	err := s.execute(ctx, persistSeriesStatements(runID, series, time.Now()))
	if err != nil {
		return fmt.Errorf("persisting series for run %s: %w", runID, err)
	}

	if s.cfg.Logger != nil {
		s.cfg.Logger.Info().Msgf("persisted %d bars for run %s to %s", series.Len(), runID, s.cfg.Path)
	}

	return nil
}

// DB returns the underlying database handle.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
