package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/your-org/idscan/internal/config"
	"github.com/your-org/idscan/internal/gallery"
	"github.com/your-org/idscan/internal/history"
	"github.com/your-org/idscan/internal/observability"
	"github.com/your-org/idscan/internal/storage"
	"github.com/your-org/idscan/internal/vision"
)

var (
	configPath string
	logLevel   string
	// cfg is loaded once by the root command for every subcommand.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "idscanctl",
	Short:         "Manage the face gallery and run scans from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		observability.SetupLogger(logLevel, "text")
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// openGateway connects the configured gallery backend.
func openGateway(ctx context.Context) (*storage.Gateway, func(), error) {
	opened, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s backend: %w", cfg.Gallery.Backend, err)
	}
	gw := storage.NewGateway(opened.Backend, cfg.Gallery.MaxRetries, cfg.Gallery.RetryInterval)
	return gw, opened.Close, nil
}

// loadStore opens the backend and loads the gallery into memory.
func loadStore(ctx context.Context) (*gallery.Store, func(), error) {
	gw, closeFn, err := openGateway(ctx)
	if err != nil {
		return nil, nil, err
	}
	store := gallery.NewStore(gw)
	out := store.Load(ctx)
	fmt.Fprintln(os.Stderr, out.Message)
	if !out.Success {
		closeFn()
		return nil, nil, errors.New("gallery could not be loaded")
	}
	return store, closeFn, nil
}

// openDetector initialises ONNX Runtime and loads both models.
func openDetector() (*vision.Pipeline, func(), error) {
	if err := vision.InitRuntime(cfg.Vision.OnnxLibrary); err != nil {
		return nil, nil, fmt.Errorf("init onnx runtime: %w", err)
	}
	pipeline, err := vision.NewPipeline(cfg.Vision, cfg.Matching.DescriptorDim)
	if err != nil {
		vision.DestroyRuntime()
		return nil, nil, err
	}
	return pipeline, func() {
		pipeline.Close()
		vision.DestroyRuntime()
	}, nil
}

// openHistory opens the API history, or the scanner daemon's when scanner is set.
func openHistory(scanner bool) (*history.Log, func(), error) {
	dir, owner := cfg.History.Dir, "API server"
	if scanner {
		dir, owner = cfg.History.ScannerDir(), "scanner"
	}
	kv, err := history.OpenBadger(dir, cfg.History.InMemory)
	if err != nil {
		return nil, nil, fmt.Errorf("open scan history %s (is the %s running?): %w", dir, owner, err)
	}
	return history.NewLog(kv), func() { _ = kv.Close() }, nil
}
