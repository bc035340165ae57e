package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dnldd/emachart/market"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

const (
	// SQL statements.
	createRunTableSQL = "CREATE TABLE IF NOT EXISTS run (id TEXT PRIMARY KEY, timeframe TEXT, emalength INTEGER, bars INTEGER, createdon INTEGER)"
	createBarTableSQL = "CREATE TABLE IF NOT EXISTS bar (runid TEXT, ts INTEGER, open REAL, high REAL, low REAL, close REAL, volume REAL, ema REAL, PRIMARY KEY (runid, ts))"
	persistRunSQL     = "INSERT INTO run(id, timeframe, emalength, bars, createdon) VALUES(?,?,?,?,?)"
	persistBarSQL     = "INSERT INTO bar(runid, ts, open, high, low, close, volume, ema) VALUES(?,?,?,?,?,?,?,?)"
)

// SeriesStorer defines the requirements for storing resampled series.
type SeriesStorer interface {
	// PersistSeries stores the provided series under the provided run id.
	PersistSeries(ctx context.Context, runID string, series *market.Series) error
	// Close releases the database resources.
	Close() error
}

// statement is a parameterized sql statement.
type statement struct {
	SQL    string
	Params []any
}

// bootstrapStatements returns the statements creating the schema.
func bootstrapStatements() []statement {
	return []statement{
		{SQL: createRunTableSQL},
		{SQL: createBarTableSQL},
	}
}

// persistSeriesStatements returns the statements storing the provided series.
func persistSeriesStatements(runID string, series *market.Series, now time.Time) []statement {
	stmts := make([]statement, 0, series.Len()+1)
	stmts = append(stmts, statement{
		SQL:    persistRunSQL,
		Params: []any{runID, series.Timeframe.String(), series.Window, series.Len(), now.Unix()},
	})

	for idx := range series.Candles {
		candle := &series.Candles[idx]
		stmts = append(stmts, statement{
			SQL: persistBarSQL,
			Params: []any{runID, candle.Date.Unix(), candle.Open, candle.High, candle.Low,
				candle.Close, candle.Volume, series.EMA[idx].Value},
		})
	}

	return stmts
}

// DatabaseConfig is the configuration for the rqlite database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Database represents the rqlite database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the SeriesStorer interface.
var _ SeriesStorer = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.execute(ctx, bootstrapStatements())
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// toSQLStatements converts the provided statements to rqlite statements.
func toSQLStatements(stmts []statement) rqlitehttp.SQLStatements {
	sqlStmts := make(rqlitehttp.SQLStatements, 0, len(stmts))
	for idx := range stmts {
		sqlStmts = append(sqlStmts, rqlitehttp.SQLStatements{
			{SQL: stmts[idx].SQL, PositionalParams: stmts[idx].Params},
		}...)
	}

	return sqlStmts
}

// execute runs the provided statements in a single transaction.
func (db *Database) execute(ctx context.Context, stmts []statement) error {
	resp, err := db.client.Execute(ctx, toSQLStatements(stmts), &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("executing statement %d: %s", idx, errStr)
	}

	return nil
}

// PersistSeries stores the provided series under the provided run id.
func (db *Database) PersistSeries(ctx context.Context, runID string, series *market.Series) error {
	err := db.execute(ctx, persistSeriesStatements(runID, series, time.Now()))
	if err != nil {
		return fmt.Errorf("persisting series for run %s: %w", runID, err)
	}

	if db.cfg.Logger != nil {
		db.cfg.Logger.Info().Msgf("persisted %d bars for run %s to %s", series.Len(), runID, db.cfg.Endpoint)
	}

	return nil
}

// Close releases the database resources.
func (db *Database) Close() error {
	return nil
}
