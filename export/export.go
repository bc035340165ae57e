package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/dnldd/emachart/database"
	"github.com/dnldd/emachart/market"
	"github.com/dnldd/emachart/shared"
	"github.com/rs/zerolog"
)

// Mode represents an export mode.
type Mode string

const (
	// None skips exporting.
	None Mode = "none"
	// Print writes the ema values as a flat list.
	Print Mode = "print"
	// CSVOHLC writes the full candlestick and ema table as csv.
	CSVOHLC Mode = "csv_ohlc"
	// CSVEMA writes only the ema column as csv.
	CSVEMA Mode = "csv_ema"
	// Arrow writes the full table as an arrow ipc stream.
	Arrow Mode = "arrow"
	// SQLite persists the series to a local sqlite database.
	SQLite Mode = "sqlite"
	// Rqlite persists the series to a remote rqlite database.
	Rqlite Mode = "rqlite"
)

// Modes lists the supported export modes.
var Modes = []Mode{None, Print, CSVOHLC, CSVEMA, Arrow, SQLite, Rqlite}

// ParseMode parses the provided export mode, an empty mode is treated as none.
func ParseMode(mode string) (Mode, error) {
	if mode == "" {
		return None, nil
	}

	for idx := range Modes {
		if string(Modes[idx]) == mode {
			return Modes[idx], nil
		}
	}

	names := make([]string, len(Modes))
	for idx := range Modes {
		names[idx] = string(Modes[idx])
	}

	return "", fmt.Errorf("%w: unknown export mode '%s', choose from: %s",
		shared.ErrInvalidParameter, mode, strings.Join(names, ", "))
}

// RequiresPath returns whether the export mode needs a destination path.
func (m Mode) RequiresPath() bool {
	switch m {
	case None, Print:
		return false
	default:
		return true
	}
}

// ExporterConfig represents the exporter configuration.
type ExporterConfig struct {
	// Mode is the export mode.
	Mode Mode
	// Path is the export destination. It is the database endpoint for rqlite exports.
	Path string
	// Output is the destination of printed exports.
	Output io.Writer
	// RunID identifies the run in persisted exports.
	RunID string
	// DBUser is the rqlite database user.
	DBUser string
	// DBPass is the rqlite database user pass.
	DBPass string
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ExporterConfig) Validate() error {
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return err
	}
	if cfg.Mode.RequiresPath() && strings.TrimSpace(cfg.Path) == "" {
		return fmt.Errorf("%w: export mode '%s' requires an export path", shared.ErrMissingPath, cfg.Mode)
	}

	return nil
}

// Exporter writes resampled series to the configured destination.
type Exporter struct {
	cfg *ExporterConfig
}

// NewExporter initializes a new exporter.
func NewExporter(cfg *ExporterConfig) (*Exporter, error) {
	if cfg.Mode == "" {
		cfg.Mode = None
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	return &Exporter{cfg: cfg}, nil
}

// Export writes the provided series according to the configured mode.
func (e *Exporter) Export(ctx context.Context, series *market.Series) error {
	switch e.cfg.Mode {
	case None:
		return nil
	case Print:
		return WriteEMAList(e.cfg.Output, series)
	case CSVOHLC:
		return writeFile(e.cfg.Path, series, WriteOHLCCSV)
	case CSVEMA:
		return writeFile(e.cfg.Path, series, WriteEMACSV)
	case Arrow:
		return writeFile(e.cfg.Path, series, WriteArrow)
	case SQLite:
		db, err := database.NewSQLite(ctx, &database.SQLiteConfig{
			Path:   e.cfg.Path,
			Logger: e.cfg.Logger,
		})
		if err != nil {
			return fmt.Errorf("opening sqlite database: %w", err)
		}
		return persist(ctx, db, e.cfg.RunID, series)
	case Rqlite:
		db, err := database.NewDatabase(ctx, &database.DatabaseConfig{
			Endpoint: e.cfg.Path,
			User:     e.cfg.DBUser,
			Pass:     e.cfg.DBPass,
			Logger:   e.cfg.Logger,
		})
		if err != nil {
			return fmt.Errorf("connecting to rqlite database: %w", err)
		}
		return persist(ctx, db, e.cfg.RunID, series)
	default:
		return fmt.Errorf("%w: unknown export mode '%s'", shared.ErrInvalidParameter, e.cfg.Mode)
	}
}

// persist stores the series and closes the provided storer.
func persist(ctx context.Context, db database.SeriesStorer, runID string, series *market.Series) error {
	err := db.PersistSeries(ctx, runID, series)
	closeErr := db.Close()
	if err != nil {
		return fmt.Errorf("persisting series: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("closing database: %w", closeErr)
	}

	return nil
}

// writeFile creates the file at the provided path and writes the series to it.
func writeFile(path string, series *market.Series, write func(io.Writer, *market.Series) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file '%s': %w", path, err)
	}

	err = write(f, series)
	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("writing export file '%s': %w", path, err)
	}
	if closeErr != nil {
		return fmt.Errorf("closing export file '%s': %w", path, closeErr)
	}

	return nil
}

// FormatFloat formats the provided value in its shortest form, integral values keep a
// trailing ".0".
func FormatFloat(value float64) string {
	str := strconv.FormatFloat(value, 'f', -1, 64)
	if !math.IsInf(value, 0) && !math.IsNaN(value) && !strings.Contains(str, ".") {
		str += ".0"
	}

	return str
}

// WriteEMAList writes the ema values as a flat list, one value per line.
func WriteEMAList(w io.Writer, series *market.Series) error {
	bw := bufio.NewWriter(w)
	for _, value := range series.EMAValues() {
		_, err := bw.WriteString(FormatFloat(value) + "\n")
		if err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteOHLCCSV writes the candlesticks and their ema as csv.
func WriteOHLCCSV(w io.Writer, series *market.Series) error {
	cw := csv.NewWriter(w)
	err := cw.Write([]string{shared.TimestampColumn, "open", "high", "low", "close", "EMA"})
	if err != nil {
		return err
	}

	for idx := range series.Candles {
		candle := &series.Candles[idx]
		err := cw.Write([]string{
			candle.Date.UTC().Format(shared.DateLayout),
			FormatFloat(candle.Open),
			FormatFloat(candle.High),
			FormatFloat(candle.Low),
			FormatFloat(candle.Close),
			FormatFloat(series.EMA[idx].Value),
		})
		if err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteEMACSV writes only the ema column as csv.
func WriteEMACSV(w io.Writer, series *market.Series) error {
	cw := csv.NewWriter(w)
	err := cw.Write([]string{"EMA"})
	if err != nil {
		return err
	}

	for _, value := range series.EMAValues() {
		err := cw.Write([]string{FormatFloat(value)})
		if err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
