package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/dnldd/emachart/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Error().Msgf("loading config: %v", err)
		os.Exit(1)
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, err := service.NewPipeline(&service.PipelineConfig{
		FilePath:    cfg.File,
		Timeframe:   cfg.Timeframe,
		EMALength:   cfg.EMALength,
		ExportMode:  cfg.ExportMode,
		ExportPath:  cfg.ExportPath,
		DBUser:      cfg.DBUser,
		DBPass:      cfg.DBPass,
		ChartShow:   cfg.ChartShow,
		ChartWidth:  cfg.ChartWidth,
		ChartHeight: cfg.ChartHeight,
		ChartOutput: cfg.ChartOutput,
		Watch:       cfg.Watch,
		Output:      os.Stdout,
	})
	if err != nil {
		log.Error().Msgf("creating pipeline: %v", err)
		os.Exit(1)
	}

	go handleTermination(ctx, cancel)

	err = pipeline.Run(ctx)
	if err != nil {
		log.Error().Msgf("running pipeline: %v", err)
		cancel()
		os.Exit(1)
	}
}
