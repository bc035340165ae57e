package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dnldd/emachart/chart"
	"github.com/dnldd/emachart/export"
	"github.com/dnldd/emachart/shared"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// profileEnv is the environment variable pointing at an optional yaml profile.
	profileEnv = "config"
)

// Config is the configuration struct for the service.
type Config struct {
	// File is the path to the price data file.
	File string
	// EMALength is the ema window length.
	EMALength int
	// Timeframe is the resampling timeframe, for example 1h, 15m or 1mo.
	Timeframe string
	// ExportMode is the export mode.
	ExportMode string
	// ExportPath is the export destination.
	ExportPath string
	// DBUser is the rqlite database user.
	DBUser string
	// DBPass is the rqlite database user pass.
	DBPass string
	// ChartShow displays the rendered chart.
	ChartShow bool
	// ChartWidth is the chart width in pixels.
	ChartWidth int
	// ChartHeight is the chart height in pixels.
	ChartHeight int
	// ChartOutput is the chart output path.
	ChartOutput string
	// Watch is the interval between pipeline runs, zero runs once.
	Watch time.Duration
	// LogLevel is the logging level.
	LogLevel string

	registeredFlags map[string]bool
	profile         map[string]string
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.File == "" {
		errs = errors.Join(errs, fmt.Errorf("%w: input file cannot be an empty string", shared.ErrDataSource))
	}
	if cfg.Timeframe == "" {
		errs = errors.Join(errs, fmt.Errorf("%w: timeframe cannot be an empty string", shared.ErrInvalidTimeframe))
	} else if _, err := shared.ParseTimeframe(cfg.Timeframe); err != nil {
		errs = errors.Join(errs, err)
	}
	if cfg.EMALength <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: ema length should be a positive integer",
			shared.ErrInvalidParameter))
	}

	mode, err := export.ParseMode(cfg.ExportMode)
	switch {
	case err != nil:
		errs = errors.Join(errs, err)
	case mode.RequiresPath() && cfg.ExportPath == "":
		errs = errors.Join(errs, fmt.Errorf("%w: export mode %s requires an export path",
			shared.ErrMissingPath, mode))
	}

	if cfg.ChartWidth <= 0 || cfg.ChartHeight <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: chart dimensions must be positive",
			shared.ErrInvalidParameter))
	}
	if cfg.Watch < 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: watch interval cannot be negative",
			shared.ErrInvalidParameter))
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		errs = errors.Join(errs, fmt.Errorf("%w: parsing log level: %v", shared.ErrInvalidParameter, err))
	}

	return errs
}

// loadProfile loads the flat yaml profile at the provided path.
func (cfg *Config) loadProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config profile: %w", err)
	}

	var raw map[string]any
	err = yaml.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("parsing config profile: %w", err)
	}

	cfg.profile = make(map[string]string, len(raw))
	for k, v := range raw {
		cfg.profile[strings.ToLower(k)] = fmt.Sprint(v)
	}

	return nil
}

// defaultValue returns the default of a flag, environment variables take precedence over the
// yaml profile which takes precedence over the provided fallback.
func (cfg *Config) defaultValue(name string, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	if v := cfg.profile[name]; v != "" {
		return v
	}

	return fallback
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, fallback string, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := cfg.defaultValue(name, fallback)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	if val.Elem().Type() == reflect.TypeOf(time.Duration(0)) {
		var def time.Duration
		if defValue != "" {
			d, err := time.ParseDuration(defValue)
			if err != nil {
				return fmt.Errorf("%s: parsing default duration: %w", name, err)
			}
			def = d
		}
		flag.DurationVar(value.(*time.Duration), name, def, usage)
		return nil
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// An optional yaml profile supplies defaults beneath the environment.
	if profile := os.Getenv(profileEnv); profile != "" {
		err := cfg.loadProfile(profile)
		if err != nil {
			return err
		}
	}

	type registration struct {
		name     string
		value    interface{}
		fallback string
		usage    string
	}

	registrations := []registration{
		{"file", &cfg.File, "", "the path to the csv or json price data file"},
		{"emalength", &cfg.EMALength, "", "the ema window length"},
		{"timeframe", &cfg.Timeframe, "", "the resampling timeframe: <digits><unit> with units mo, w, d, h, m, s (lower case), for example 1h, 15m, 1mo"},
		{"exportmode", &cfg.ExportMode, string(export.None), "the export mode: none, print, csv_ohlc, csv_ema, arrow, sqlite or rqlite"},
		{"exportpath", &cfg.ExportPath, "", "the export destination, the endpoint url for rqlite exports"},
		{"dbuser", &cfg.DBUser, "", "the rqlite database user"},
		{"dbpass", &cfg.DBPass, "", "the rqlite database user pass"},
		{"chartshow", &cfg.ChartShow, "true", "the chart visibility flag"},
		{"chartwidth", &cfg.ChartWidth, strconv.Itoa(chart.DefaultWidth), "the chart width in pixels"},
		{"chartheight", &cfg.ChartHeight, strconv.Itoa(chart.DefaultHeight), "the chart height in pixels"},
		{"chartoutput", &cfg.ChartOutput, "", "the chart output path (.html)"},
		{"watch", &cfg.Watch, "", "the interval between pipeline reruns, unset runs once"},
		{"loglevel", &cfg.LogLevel, zerolog.InfoLevel.String(), "the logging level"},
	}

	// Register command line arguments using loaded environment variables as defaults.
	for idx := range registrations {
		reg := registrations[idx]
		err := cfg.registerFlag(reg.name, reg.value, reg.fallback, reg.usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	return cfg.Validate()
}
