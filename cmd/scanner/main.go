package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/idscan/internal/capture"
	"github.com/your-org/idscan/internal/config"
	"github.com/your-org/idscan/internal/gallery"
	"github.com/your-org/idscan/internal/history"
	"github.com/your-org/idscan/internal/matcher"
	"github.com/your-org/idscan/internal/models"
	"github.com/your-org/idscan/internal/observability"
	"github.com/your-org/idscan/internal/queue"
	"github.com/your-org/idscan/internal/scan"
	"github.com/your-org/idscan/internal/storage"
	"github.com/your-org/idscan/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	sources := cfg.Capture.ScanSources()
	slog.Info("starting idscan scanner",
		"sources", len(sources),
		"interval", cfg.Capture.Interval,
		"gallery_backend", cfg.Gallery.Backend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize ONNX Runtime
	if err := vision.InitRuntime(cfg.Vision.OnnxLibrary); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer vision.DestroyRuntime()

	pipeline, err := vision.NewPipeline(cfg.Vision, cfg.Matching.DescriptorDim)
	if err != nil {
		slog.Error("init vision pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	// Gallery
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		slog.Error("open gallery backend", "backend", cfg.Gallery.Backend, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	store := gallery.NewStore(storage.NewGateway(backend.Backend, cfg.Gallery.MaxRetries, cfg.Gallery.RetryInterval))
	if out := store.Load(ctx); out.Success {
		slog.Info(out.Message)
	} else {
		slog.Warn(out.Message)
	}

	// The API process holds the main history database; the scanner keeps its own.
	kv, err := history.OpenBadger(cfg.History.ScannerDir(), cfg.History.InMemory)
	if err != nil {
		slog.Error("open scan history", "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	var notifier scan.Notifier
	if cfg.NATS.URL != "" {
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}
		notifier = scan.NotifierFunc(producer.PublishScan)

		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("create consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		// Pick up galleries flushed by the API.
		if _, err := consumer.SubscribeGallerySaved(func(msg queue.GallerySaved) {
			out := store.Load(ctx)
			slog.Info("gallery reloaded after save", "backend", msg.Backend, "success", out.Success, "message", out.Message)
		}); err != nil {
			slog.Warn("subscribe gallery saved", "error", err)
		}
	}

	svc := scan.NewService(pipeline, store, history.NewLog(kv), notifier, scan.Options{
		ScanThreshold:  cfg.Matching.ScanThreshold,
		AdminThreshold: cfg.Matching.AdminThreshold,
	})

	scheduler := capture.NewScheduler(&capture.Grabber{Width: cfg.Capture.Width}, cfg.Capture.Interval)
	for _, source := range sources {
		err := scheduler.Start(ctx, source, func(ctx context.Context, source string, frame []byte) error {
			entry, err := svc.ScanImage(ctx, source, frame)
			if errors.Is(err, matcher.ErrEmptyGallery) {
				slog.Debug("skipping frame, gallery is empty", "source", source)
				return nil
			}
			if err != nil {
				return err
			}
			logMatches(source, entry)
			return nil
		})
		if err != nil {
			slog.Error("start capture", "source", source, "error", err)
		}
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if scheduler.ActiveCount() == 0 {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"no capture loops running"}`))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		addr := fmt.Sprintf(":%d", cfg.Capture.MetricsPort)
		slog.Info("scanner metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down scanner...")
	cancel()
	scheduler.StopAll()
	slog.Info("scanner stopped")
}

func logMatches(source string, entry models.ScanHistoryEntry) {
	for _, r := range entry.Results {
		if r.Label == matcher.Unknown {
			continue
		}
		slog.Info("face recognized",
			"source", source,
			"label", r.Label,
			"group", r.Group,
			"distance", r.Distance,
			"at", time.UnixMilli(entry.Timestamp).UTC(),
		)
	}
}
