// Command nftsales exports NFT marketplace sales for one contract and block
// range from the Alchemy NFT API into a CSV file. It loads configuration,
// applies command-line overrides, validates, and runs the requested mode
// ("export" by default, or "check" to probe the configured backends).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/nftsales/internal/app"
	"github.com/alanyoungcy/nftsales/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to TOML configuration file (optional)")
	startBlock := flag.Uint64("start-block", 0, "first block of the range (inclusive)")
	endBlock := flag.Uint64("end-block", 0, "last block of the range (inclusive)")
	contract := flag.String("contract", "", "NFT contract address")
	apiKey := flag.String("api-key", "", "Alchemy API key")
	output := flag.String("output", "", "CSV output path")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Command-line flags override everything else when given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start-block":
			cfg.Job.StartBlock = *startBlock
		case "end-block":
			cfg.Job.EndBlock = *endBlock
		case "contract":
			cfg.Job.ContractAddress = *contract
		case "api-key":
			cfg.Alchemy.APIKey = *apiKey
		case "output":
			cfg.Output.Path = *output
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	mode := flag.Arg(0)
	logger.Debug("effective configuration", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger)

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = application.Run(ctx, mode)
	application.Close()
	stop()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("interrupted before completion")
		} else {
			logger.Error("nftsales exited with error", slog.String("error", err.Error()))
		}
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
