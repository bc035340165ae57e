package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dnldd/emachart/shared"
	"github.com/peterldowns/testy/assert"
)

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			File:        "prices.csv",
			EMALength:   20,
			Timeframe:   "1h",
			ExportMode:  "none",
			ChartWidth:  1920,
			ChartHeight: 1080,
			LogLevel:    "info",
		}
	}

	tests := []struct {
		name    string
		modify  func(cfg *Config)
		wantErr []string
	}{
		{
			name:    "valid config",
			modify:  func(cfg *Config) {},
			wantErr: nil,
		},
		{
			name:    "missing file",
			modify:  func(cfg *Config) { cfg.File = "" },
			wantErr: []string{"input file cannot be an empty string"},
		},
		{
			name:    "non-positive ema length",
			modify:  func(cfg *Config) { cfg.EMALength = 0 },
			wantErr: []string{"ema length should be a positive integer"},
		},
		{
			name:    "export mode without path",
			modify:  func(cfg *Config) { cfg.ExportMode = "csv_ema" },
			wantErr: []string{"export mode csv_ema requires an export path"},
		},
		{
			name: "export mode with path",
			modify: func(cfg *Config) {
				cfg.ExportMode = "csv_ema"
				cfg.ExportPath = "/tmp/ema.csv"
			},
			wantErr: nil,
		},
		{
			name:    "unknown export mode",
			modify:  func(cfg *Config) { cfg.ExportMode = "xlsx" },
			wantErr: []string{"unknown export mode"},
		},
		{
			name: "missing timeframe and invalid chart size",
			modify: func(cfg *Config) {
				cfg.Timeframe = ""
				cfg.ChartWidth = 0
			},
			wantErr: []string{
				"timeframe cannot be an empty string",
				"chart dimensions must be positive",
			},
		},
		{
			name:    "invalid log level",
			modify:  func(cfg *Config) { cfg.LogLevel = "loud" },
			wantErr: []string{"parsing log level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("expected error(s) %v, got none", tt.wantErr)
					return
				}
				for _, want := range tt.wantErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("expected error to contain %q, got %v", want, err)
					}
				}
			}
		})
	}
}

func TestConfigValidateErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *Config)
		want   error
	}{
		{"missing file", func(cfg *Config) { cfg.File = "" }, shared.ErrDataSource},
		{"missing timeframe", func(cfg *Config) { cfg.Timeframe = "" }, shared.ErrInvalidTimeframe},
		{"malformed timeframe", func(cfg *Config) { cfg.Timeframe = "1x" }, shared.ErrInvalidTimeframe},
		{"zero ema length", func(cfg *Config) { cfg.EMALength = 0 }, shared.ErrInvalidParameter},
		{"unknown export mode", func(cfg *Config) { cfg.ExportMode = "xlsx" }, shared.ErrInvalidParameter},
		{"export without path", func(cfg *Config) { cfg.ExportMode = "csv_ohlc" }, shared.ErrMissingPath},
		{"zero chart height", func(cfg *Config) { cfg.ChartHeight = 0 }, shared.ErrInvalidParameter},
		{"negative watch", func(cfg *Config) { cfg.Watch = -time.Second }, shared.ErrInvalidParameter},
		{"invalid log level", func(cfg *Config) { cfg.LogLevel = "loud" }, shared.ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				File:        "prices.csv",
				EMALength:   20,
				Timeframe:   "1h",
				ExportMode:  "none",
				ChartWidth:  1920,
				ChartHeight: 1080,
				LogLevel:    "info",
			}
			tt.modify(&cfg)

			// Ensure configuration errors carry the same kinds as the pipeline's.
			err := cfg.Validate()
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
		})
	}

	// Ensure a missing export path is also an invalid parameter.
	cfg := Config{File: "prices.csv", EMALength: 20, Timeframe: "1h", ExportMode: "csv_ema",
		ChartWidth: 1920, ChartHeight: 1080, LogLevel: "info"}
	assert.True(t, errors.Is(cfg.Validate(), shared.ErrInvalidParameter))
}

func TestLoadConfig(t *testing.T) {
	// Save and restore original os.Args.
	origArgs := os.Args
	defer func() {
		os.Args = origArgs
	}()

	profile := filepath.Join(t.TempDir(), "profile.yaml")
	err := os.WriteFile(profile, []byte("timeframe: 4h\nemalength: 50\nchartshow: false\n"), 0o644)
	if err != nil {
		t.Fatalf("writing profile: %v", err)
	}

	tests := []struct {
		name        string
		env         map[string]string
		args        []string
		expectErr   bool
		expectInErr []string
		expectCfg   Config
	}{
		{
			name: "all from env",
			env: map[string]string{
				"file":      "prices.csv",
				"emalength": "20",
				"timeframe": "1h",
			},
			args:      []string{"cmd"},
			expectErr: false,
			expectCfg: Config{
				File:        "prices.csv",
				EMALength:   20,
				Timeframe:   "1h",
				ExportMode:  "none",
				ChartShow:   true,
				ChartWidth:  1920,
				ChartHeight: 1080,
			},
		},
		{
			name:      "all from flags",
			env:       map[string]string{},
			args:      []string{"cmd", "-file=prices.csv", "-emalength=9", "-timeframe=15m", "-chartshow=false", "-chartwidth=800", "-chartheight=600", "-watch=1m"},
			expectErr: false,
			expectCfg: Config{
				File:        "prices.csv",
				EMALength:   9,
				Timeframe:   "15m",
				ExportMode:  "none",
				ChartShow:   false,
				ChartWidth:  800,
				ChartHeight: 600,
				Watch:       time.Minute,
			},
		},
		{
			name: "flags override env",
			env: map[string]string{
				"file":       "prices.csv",
				"emalength":  "20",
				"timeframe":  "1h",
				"exportmode": "print",
			},
			args:      []string{"cmd", "-timeframe=1d", "-exportmode=csv_ohlc", "-exportpath=/tmp/out.csv"},
			expectErr: false,
			expectCfg: Config{
				File:        "prices.csv",
				EMALength:   20,
				Timeframe:   "1d",
				ExportMode:  "csv_ohlc",
				ExportPath:  "/tmp/out.csv",
				ChartShow:   true,
				ChartWidth:  1920,
				ChartHeight: 1080,
			},
		},
		{
			name: "yaml profile beneath env",
			env: map[string]string{
				"config":    profile,
				"file":      "prices.csv",
				"emalength": "7",
			},
			args:      []string{"cmd"},
			expectErr: false,
			expectCfg: Config{
				File:        "prices.csv",
				EMALength:   7,
				Timeframe:   "4h",
				ExportMode:  "none",
				ChartShow:   false,
				ChartWidth:  1920,
				ChartHeight: 1080,
			},
		},
		{
			name:        "missing required values",
			env:         map[string]string{},
			args:        []string{"cmd"},
			expectErr:   true,
			expectInErr: []string{"input file cannot be an empty string", "ema length should be a positive integer"},
		},
		{
			name: "export mode requires path",
			env: map[string]string{
				"file":       "prices.csv",
				"emalength":  "20",
				"timeframe":  "1h",
				"exportmode": "csv_ema",
			},
			args:        []string{"cmd"},
			expectErr:   true,
			expectInErr: []string{"export mode csv_ema requires an export path"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset flags for each test
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			// Set environment variables
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			// Set command-line arguments
			os.Args = tt.args

			var cfg Config
			err := loadConfig(&cfg, filepath.Join(t.TempDir(), ".env")) // don't load a .env file

			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				for _, want := range tt.expectInErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("expected error to contain %q, got %v", want, err)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cfg.File != tt.expectCfg.File {
				t.Errorf("File: got %v, want %v", cfg.File, tt.expectCfg.File)
			}
			if cfg.EMALength != tt.expectCfg.EMALength {
				t.Errorf("EMALength: got %v, want %v", cfg.EMALength, tt.expectCfg.EMALength)
			}
			if cfg.Timeframe != tt.expectCfg.Timeframe {
				t.Errorf("Timeframe: got %v, want %v", cfg.Timeframe, tt.expectCfg.Timeframe)
			}
			if cfg.ExportMode != tt.expectCfg.ExportMode {
				t.Errorf("ExportMode: got %v, want %v", cfg.ExportMode, tt.expectCfg.ExportMode)
			}
			if cfg.ExportPath != tt.expectCfg.ExportPath {
				t.Errorf("ExportPath: got %v, want %v", cfg.ExportPath, tt.expectCfg.ExportPath)
			}
			if cfg.ChartShow != tt.expectCfg.ChartShow {
				t.Errorf("ChartShow: got %v, want %v", cfg.ChartShow, tt.expectCfg.ChartShow)
			}
			if cfg.ChartWidth != tt.expectCfg.ChartWidth || cfg.ChartHeight != tt.expectCfg.ChartHeight {
				t.Errorf("Chart size: got %dx%d, want %dx%d", cfg.ChartWidth, cfg.ChartHeight,
					tt.expectCfg.ChartWidth, tt.expectCfg.ChartHeight)
			}
			if cfg.Watch != tt.expectCfg.Watch {
				t.Errorf("Watch: got %v, want %v", cfg.Watch, tt.expectCfg.Watch)
			}
		})
	}
}
