package shared

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// TimestampColumn is the required timestamp column of the historic data.
	TimestampColumn = "TS"

	// unixMilliThreshold is the magnitude above which integer timestamps are read as milliseconds.
	unixMilliThreshold = 100_000_000_000
)

// timestampLayouts are the accepted timestamp formats, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// missingValues are the cell values read as a missing price.
var missingValues = map[string]struct{}{
	"":     {},
	"NaN":  {},
	"nan":  {},
	"-NaN": {},
	"-nan": {},
	"NA":   {},
	"<NA>": {},
	"N/A":  {},
	"n/a":  {},
	"#N/A": {},
	"NULL": {},
	"null": {},
	"None": {},
}

// isMissing returns whether the provided cell value denotes a missing price.
func isMissing(value string) bool {
	_, ok := missingValues[strings.TrimSpace(value)]
	return ok
}

// priceColumns describes where the prices of a row are read from.
type priceColumns struct {
	open, high, low, close, volume string
}

// HistoricDataConfig represents the historic data source configuration.
type HistoricDataConfig struct {
	// FilePath is the filepath to the historic market data.
	FilePath string
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// HistoricData represents a loaded price series.
type HistoricData struct {
	cfg          *HistoricDataConfig
	observations []Observation
	startTime    time.Time
	endTime      time.Time
}

// NewHistoricData initializes a new historic data source by loading the configured file.
func NewHistoricData(cfg *HistoricDataConfig) (*HistoricData, error) {
	observations, err := LoadObservations(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("loading historic data: %w", err)
	}

	historicData := HistoricData{
		cfg:          cfg,
		observations: observations,
	}

	for idx := range observations {
		date := observations[idx].Date
		if idx == 0 || date.Before(historicData.startTime) {
			historicData.startTime = date
		}
		if idx == 0 || date.After(historicData.endTime) {
			historicData.endTime = date
		}
	}

	if cfg.Logger != nil && len(observations) > 0 {
		cfg.Logger.Info().Msgf("loaded %d observations covering %.2f hours, from %s, to %s",
			len(observations), historicData.endTime.Sub(historicData.startTime).Hours(),
			historicData.startTime.Format(time.RFC1123), historicData.endTime.Format(time.RFC1123))
	}

	return &historicData, nil
}

// FetchObservations returns the loaded observations in file order.
func (h *HistoricData) FetchObservations() []Observation {
	return h.observations
}

// FetchStartTime returns the earliest timestamp of the loaded data.
func (h *HistoricData) FetchStartTime() time.Time {
	return h.startTime
}

// FetchEndTime returns the latest timestamp of the loaded data.
func (h *HistoricData) FetchEndTime() time.Time {
	return h.endTime
}

// LoadObservations loads the price observations from the provided file path. Files with a
// .json extension are read as an array of objects, everything else as delimited text with a
// header row.
func LoadObservations(path string) ([]Observation, error) {
	_, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file '%s' not found", ErrDataSource, path)
		}
		return nil, fmt.Errorf("%w: accessing file '%s': %v", ErrDataSource, path, err)
	}

	readb, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading historic data from file with path '%s': %v", ErrDataSource, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseJSONObservations(readb)
	default:
		return parseCSVObservations(readb)
	}
}

// ParseTimestamp parses a timestamp in any of the accepted layouts. Integer values are read
// as unix seconds, or unix milliseconds when large enough. Zone-less timestamps are UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		if n >= unixMilliThreshold || n <= -unixMilliThreshold {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}

	for idx := range timestampLayouts {
		ts, err := time.Parse(timestampLayouts[idx], value)
		if err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp format '%s'", value)
}

// resolvePriceColumns determines which columns carry prices. Full open/high/low/close
// columns take precedence, then a price column, then a close column, then the only
// remaining column.
func resolvePriceColumns(columns []string) (priceColumns, error) {
	lookup := make(map[string]string, len(columns))
	var others []string
	for idx := range columns {
		name := columns[idx]
		if name == TimestampColumn {
			continue
		}
		lookup[strings.ToLower(strings.TrimSpace(name))] = name
		others = append(others, name)
	}

	var cols priceColumns
	cols.volume = lookup["volume"]

	_, hasOpen := lookup["open"]
	_, hasHigh := lookup["high"]
	_, hasLow := lookup["low"]
	_, hasClose := lookup["close"]

	switch {
	case hasOpen && hasHigh && hasLow && hasClose:
		cols.open, cols.high, cols.low, cols.close = lookup["open"], lookup["high"], lookup["low"], lookup["close"]
	case lookup["price"] != "":
		price := lookup["price"]
		cols.open, cols.high, cols.low, cols.close = price, price, price, price
	case hasClose:
		price := lookup["close"]
		cols.open, cols.high, cols.low, cols.close = price, price, price, price
	case len(others) == 1:
		price := others[0]
		cols.open, cols.high, cols.low, cols.close = price, price, price, price
		cols.volume = ""
	default:
		return priceColumns{}, fmt.Errorf("%w: unable to determine the price column from %v",
			ErrDataSource, others)
	}

	return cols, nil
}

// decodeText strips byte order marks and decodes utf-16 encoded data to utf-8.
func decodeText(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), decoder))
		if err != nil {
			return nil, fmt.Errorf("decoding utf-16 data: %v", err)
		}
		return decoded, nil
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return data[3:], nil
	default:
		return data, nil
	}
}

// parseCSVObservations parses observations from delimited text with a header row.
func parseCSVObservations(data []byte) ([]Observation, error) {
	decoded, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataSource, err)
	}

	r := csv.NewReader(bytes.NewReader(decoded))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: expected '%s' column not found, file is empty", ErrDataSource, TimestampColumn)
		}
		return nil, fmt.Errorf("%w: reading header: %v", ErrDataSource, err)
	}

	index := make(map[string]int, len(header))
	for idx := range header {
		index[strings.TrimSpace(header[idx])] = idx
	}

	tsIdx, ok := index[TimestampColumn]
	if !ok {
		return nil, fmt.Errorf("%w: expected '%s' column not found", ErrDataSource, TimestampColumn)
	}

	columns := make([]string, 0, len(index))
	for name := range index {
		columns = append(columns, name)
	}

	cols, err := resolvePriceColumns(columns)
	if err != nil {
		return nil, err
	}

	field := func(record []string, name string) string {
		idx, ok := index[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var observations []Observation
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading line %d: %v", ErrDataSource, line, err)
		}

		if tsIdx >= len(record) {
			return nil, fmt.Errorf("%w: line %d has no '%s' value", ErrDataSource, line, TimestampColumn)
		}

		obs, skip, err := buildObservation(record[tsIdx], func(name string) string {
			return field(record, name)
		}, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrDataSource, line, err)
		}
		if skip {
			continue
		}

		observations = append(observations, obs)
	}

	return observations, nil
}

// parseJSONObservations parses observations from a json array of objects.
func parseJSONObservations(data []byte) ([]Observation, error) {
	decoded, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataSource, err)
	}

	if !gjson.ValidBytes(decoded) {
		return nil, fmt.Errorf("%w: invalid json data", ErrDataSource)
	}

	result := gjson.ParseBytes(decoded)
	if !result.IsArray() {
		return nil, fmt.Errorf("%w: expected a json array of rows", ErrDataSource)
	}

	rows := result.Array()
	if len(rows) == 0 {
		return []Observation{}, nil
	}

	var columns []string
	rows[0].ForEach(func(key, _ gjson.Result) bool {
		columns = append(columns, key.String())
		return true
	})

	if !rows[0].Get(TimestampColumn).Exists() {
		return nil, fmt.Errorf("%w: expected '%s' column not found", ErrDataSource, TimestampColumn)
	}

	cols, err := resolvePriceColumns(columns)
	if err != nil {
		return nil, err
	}

	observations := make([]Observation, 0, len(rows))
	for idx := range rows {
		row := rows[idx]
		ts := row.Get(TimestampColumn)
		if !ts.Exists() {
			return nil, fmt.Errorf("%w: row %d has no '%s' value", ErrDataSource, idx, TimestampColumn)
		}

		obs, skip, err := buildObservation(ts.String(), func(name string) string {
			value := row.Get(gjson.Escape(name))
			if !value.Exists() || value.Type == gjson.Null {
				return ""
			}
			return value.String()
		}, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrDataSource, idx, err)
		}
		if skip {
			continue
		}

		observations = append(observations, obs)
	}

	return observations, nil
}

// buildObservation creates an observation from a timestamp and a column accessor. Rows with
// a missing price are skipped, non-finite prices are rejected.
func buildObservation(rawTS string, value func(name string) string, cols priceColumns) (Observation, bool, error) {
	for _, name := range []string{cols.open, cols.high, cols.low, cols.close} {
		if isMissing(value(name)) {
			return Observation{}, true, nil
		}
	}

	ts, err := ParseTimestamp(rawTS)
	if err != nil {
		return Observation{}, false, fmt.Errorf("parsing timestamp: %v", err)
	}

	parse := func(name string) (float64, error) {
		raw := value(name)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing '%s' value '%s': %v", name, raw, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("'%s' value '%s' is not a finite number", name, raw)
		}
		return v, nil
	}

	obs := Observation{Date: ts}
	if obs.Open, err = parse(cols.open); err != nil {
		return Observation{}, false, err
	}
	if obs.High, err = parse(cols.high); err != nil {
		return Observation{}, false, err
	}
	if obs.Low, err = parse(cols.low); err != nil {
		return Observation{}, false, err
	}
	if obs.Close, err = parse(cols.close); err != nil {
		return Observation{}, false, err
	}
	if cols.volume != "" && !isMissing(value(cols.volume)) {
		if obs.Volume, err = parse(cols.volume); err != nil {
			return Observation{}, false, err
		}
	}

	return obs, false, nil
}
