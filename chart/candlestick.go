package chart

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dnldd/emachart/market"
	"github.com/dnldd/emachart/shared"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
)

const (
	// Title is the chart title.
	Title = "Candlestick Chart with EMA Overlay"
	// DefaultWidth is the default chart width in pixels.
	DefaultWidth = 1920
	// DefaultHeight is the default chart height in pixels.
	DefaultHeight = 1080

	// Candle colours.
	bullishColour = "#26a69a"
	bearishColour = "#ef5350"
	emaColour     = "blue"
)

// RendererConfig represents the chart renderer configuration.
type RendererConfig struct {
	// Width is the chart width in pixels.
	Width int
	// Height is the chart height in pixels.
	Height int
	// Show opens the rendered chart in the browser.
	Show bool
	// OutputPath is the destination of the rendered chart, it must be an .html file.
	OutputPath string
	// Open displays the chart file at the provided path, it defaults to opening a browser.
	Open func(path string) error
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *RendererConfig) Validate() error {
	var errs error

	if cfg.Width <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: chart width must be positive, got %d",
			shared.ErrInvalidParameter, cfg.Width))
	}
	if cfg.Height <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: chart height must be positive, got %d",
			shared.ErrInvalidParameter, cfg.Height))
	}
	if cfg.OutputPath != "" && !strings.EqualFold(filepath.Ext(cfg.OutputPath), ".html") {
		errs = errors.Join(errs, fmt.Errorf("%w: unsupported chart output '%s', expected an .html file",
			shared.ErrInvalidParameter, cfg.OutputPath))
	}

	return errs
}

// Enabled returns whether the chart should be rendered at all.
func (cfg *RendererConfig) Enabled() bool {
	return cfg.Show || cfg.OutputPath != ""
}

// Renderer draws resampled series as candlestick charts with an ema overlay.
type Renderer struct {
	cfg *RendererConfig
}

// NewRenderer initializes a new chart renderer.
func NewRenderer(cfg *RendererConfig) (*Renderer, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.Open == nil {
		cfg.Open = browser.OpenFile
	}

	return &Renderer{cfg: cfg}, nil
}

// subtitle summarizes the candlestick sentiments of the series.
func subtitle(series *market.Series) string {
	var bullish, bearish int
	for idx := range series.Candles {
		switch series.Candles[idx].FetchSentiment() {
		case shared.Bullish:
			bullish++
		case shared.Bearish:
			bearish++
		}
	}

	return fmt.Sprintf("%s bars, EMA(%d): %d bars, %d bullish, %d bearish",
		series.Timeframe.String(), series.Window, series.Len(), bullish, bearish)
}

// WriteHTML writes the series as an interactive html chart of the provided size.
func WriteHTML(w io.Writer, series *market.Series, width int, height int) error {
	dates := make([]string, series.Len())
	candles := make([]opts.KlineData, series.Len())
	emas := make([]opts.LineData, series.Len())

	for idx := range series.Candles {
		candle := &series.Candles[idx]
		dates[idx] = candle.Date.UTC().Format(shared.DateLayout)
		// Candlestick values are ordered open, close, low, high.
		candles[idx] = opts.KlineData{Value: [4]float64{candle.Open, candle.Close, candle.Low, candle.High}}
		emas[idx] = opts.LineData{Value: series.EMA[idx].Value}
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: Title,
			Width:     fmt.Sprintf("%dpx", width),
			Height:    fmt.Sprintf("%dpx", height),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    Title,
			Subtitle: subtitle(series),
		}),
	)

	kline.SetXAxis(dates).AddSeries("Candles", candles,
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        bullishColour,
			Color0:       bearishColour,
			BorderColor:  bullishColour,
			BorderColor0: bearishColour,
		}),
	)

	line := charts.NewLine()
	line.SetXAxis(dates).AddSeries("EMA", emas,
		charts.WithLineStyleOpts(opts.LineStyle{
			Color: emaColour,
			Width: 1,
		}),
	)

	kline.Overlap(line)

	return kline.Render(w)
}

// Render draws the provided series, writing it to the configured output path and opening
// it when the chart is visible. Charts that are shown without an output path are written
// to a temporary file.
func (r *Renderer) Render(series *market.Series) error {
	if !r.cfg.Enabled() {
		return nil
	}

	path := r.cfg.OutputPath
	var f *os.File
	var err error
	switch path {
	case "":
		f, err = os.CreateTemp("", "emachart-*.html")
		if err != nil {
			return fmt.Errorf("creating temporary chart file: %w", err)
		}
		path = f.Name()
	default:
		f, err = os.Create(path)
		if err != nil {
			return fmt.Errorf("creating chart file '%s': %w", path, err)
		}
	}

	err = WriteHTML(f, series, r.cfg.Width, r.cfg.Height)
	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("closing chart file '%s': %w", path, closeErr)
	}

	if r.cfg.Logger != nil {
		r.cfg.Logger.Info().Msgf("chart with %d bars written to %s", series.Len(), path)
	}

	if r.cfg.Show {
		err := r.cfg.Open(path)
		if err != nil {
			// Headless environments cannot display charts, the file is still available.
			if r.cfg.Logger != nil {
				r.cfg.Logger.Warn().Msgf("unable to display chart %s: %v", path, err)
			}
		}
	}

	return nil
}
