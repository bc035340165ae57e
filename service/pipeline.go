package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/emachart/chart"
	"github.com/dnldd/emachart/export"
	"github.com/dnldd/emachart/market"
	"github.com/dnldd/emachart/shared"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// PipelineConfig represents the configuration struct for the pipeline service.
type PipelineConfig struct {
	// FilePath is the filepath to the price data.
	FilePath string
	// Timeframe is the resampling timeframe token.
	Timeframe string
	// EMALength is the ema window length.
	EMALength int
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
	// Output is the destination of printed exports.
	Output io.Writer
	// OpenChart displays a rendered chart, it defaults to opening a browser.
	OpenChart func(path string) error
}

// Validate asserts the config sane inputs.
func (cfg *PipelineConfig) Validate() error {
	var errs error

	if cfg.FilePath == "" {
		errs = errors.Join(errs, fmt.Errorf("%w: input filepath cannot be an empty string", shared.ErrDataSource))
	}
	if _, err := shared.ParseTimeframe(cfg.Timeframe); err != nil {
		errs = errors.Join(errs, err)
	}
	if cfg.EMALength <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: ema length should be a positive integer, got %d",
			shared.ErrInvalidParameter, cfg.EMALength))
	}
	if cfg.Watch < 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: watch interval cannot be negative", shared.ErrInvalidParameter))
	}

	return errs
}

// Pipeline represents the resampling and ema pipeline service.
type Pipeline struct {
	cfg       *PipelineConfig
	timeframe shared.TimeframeSpec
	exportCfg *export.ExporterConfig
	exporter  *export.Exporter
	renderer  *chart.Renderer
	logger    *zerolog.Logger
	runs      int
	runsMtx   sync.Mutex
}

// NewPipeline initializes a new pipeline service. All parameters are validated before any
// data is loaded.
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "emachart").Logger()

	var errs error
	errs = errors.Join(errs, cfg.Validate())

	mode, err := export.ParseMode(cfg.ExportMode)
	if err != nil {
		errs = errors.Join(errs, err)
	}

	exporterLogger := logger.With().Str("component", "exporter").Logger()
	exportCfg := &export.ExporterConfig{
		Mode:   mode,
		Path:   cfg.ExportPath,
		Output: cfg.Output,
		DBUser: cfg.DBUser,
		DBPass: cfg.DBPass,
		Logger: &exporterLogger,
	}
	exporter, err := export.NewExporter(exportCfg)
	if err != nil && mode != "" {
		errs = errors.Join(errs, err)
	}

	rendererLogger := logger.With().Str("component", "renderer").Logger()
	renderer, err := chart.NewRenderer(&chart.RendererConfig{
		Width:      cfg.ChartWidth,
		Height:     cfg.ChartHeight,
		Show:       cfg.ChartShow,
		OutputPath: cfg.ChartOutput,
		Open:       cfg.OpenChart,
		Logger:     &rendererLogger,
	})
	if err != nil {
		errs = errors.Join(errs, err)
	}

	if errs != nil {
		return nil, errs
	}

	timeframe, _ := shared.ParseTimeframe(cfg.Timeframe)

	return &Pipeline{
		cfg:       cfg,
		timeframe: timeframe,
		exportCfg: exportCfg,
		exporter:  exporter,
		renderer:  renderer,
		logger:    &logger,
	}, nil
}

// RunOnce loads the configured data, resamples it, computes the ema and hands the result
// to the exporter and renderer.
func (p *Pipeline) RunOnce(ctx context.Context) (*market.Series, error) {
	runID := uuid.New().String()
	logger := p.logger.With().Str("run", runID).Logger()

	historicDataLogger := logger.With().Str("component", "historicdata").Logger()
	historicData, err := shared.NewHistoricData(&shared.HistoricDataConfig{
		FilePath: p.cfg.FilePath,
		Logger:   &historicDataLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating historic data: %w", err)
	}

	series, err := market.NewSeries(historicData.FetchObservations(), p.timeframe, p.cfg.EMALength)
	if err != nil {
		return nil, fmt.Errorf("creating series: %w", err)
	}

	logger.Info().Msgf("resampled %d observations into %d %s bars, ema length %d",
		len(historicData.FetchObservations()), series.Len(), p.timeframe.String(), p.cfg.EMALength)
	if event := logger.Debug(); event.Enabled() {
		event.Msgf("series: %s", spew.Sdump(series.Candles))
	}

	p.exportCfg.RunID = runID
	err = p.exporter.Export(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("exporting series: %w", err)
	}

	err = p.renderer.Render(series)
	if err != nil {
		return nil, fmt.Errorf("rendering chart: %w", err)
	}

	p.runsMtx.Lock()
	p.runs++
	p.runsMtx.Unlock()

	return series, nil
}

// Runs returns the number of completed pipeline runs.
func (p *Pipeline) Runs() int {
	p.runsMtx.Lock()
	defer p.runsMtx.Unlock()

	return p.runs
}

// Run handles the lifecycle processes of the pipeline service. Without a watch interval
// the pipeline runs once, otherwise it reruns on every interval until the context is
// cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.cfg.Watch == 0 {
		_, err := p.RunOnce(ctx)
		return err
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	_, err := scheduler.Every(p.cfg.Watch).Do(func() {
		_, err := p.RunOnce(ctx)
		if err != nil {
			p.logger.Error().Msgf("running pipeline: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling pipeline runs: %w", err)
	}

	p.logger.Info().Msgf("watching %s every %s", p.cfg.FilePath, p.cfg.Watch)
	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()

	return nil
}
