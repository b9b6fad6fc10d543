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

	"github.com/your-org/idscan/internal/api"
	"github.com/your-org/idscan/internal/api/handlers"
	"github.com/your-org/idscan/internal/api/ws"
	"github.com/your-org/idscan/internal/auth"
	"github.com/your-org/idscan/internal/capture"
	"github.com/your-org/idscan/internal/config"
	"github.com/your-org/idscan/internal/gallery"
	"github.com/your-org/idscan/internal/history"
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

	slog.Info("starting idscan API service", "port", cfg.Server.Port, "gallery_backend", cfg.Gallery.Backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Gallery backend
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		slog.Error("open gallery backend", "backend", cfg.Gallery.Backend, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	gw := storage.NewGateway(backend.Backend, cfg.Gallery.MaxRetries, cfg.Gallery.RetryInterval)
	store := gallery.NewStore(gw)
	if out := store.Load(ctx); out.Success {
		slog.Info(out.Message)
	} else {
		slog.Warn(out.Message)
	}

	// Scan history
	kv, err := history.OpenBadger(cfg.History.Dir, cfg.History.InMemory)
	if err != nil {
		slog.Error("open scan history", "dir", cfg.History.Dir, "error", err)
		os.Exit(1)
	}
	defer kv.Close()
	scanLog := history.NewLog(kv)

	// Vision pipeline (models are loaded once; scans by image need it)
	var detector vision.Detector
	if err := vision.InitRuntime(cfg.Vision.OnnxLibrary); err != nil {
		slog.Warn("onnx runtime init failed, image scans will be unavailable", "error", err)
	} else {
		defer vision.DestroyRuntime()
		pipeline, err := vision.NewPipeline(cfg.Vision, cfg.Matching.DescriptorDim)
		if err != nil {
			slog.Warn("vision pipeline init failed, image scans will be unavailable", "error", err)
		} else {
			defer pipeline.Close()
			detector = pipeline
		}
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	notifier := scan.NotifierFunc(func(ctx context.Context, evt models.ScanEvent) error {
		hub.BroadcastScan(evt)
		return nil
	})
	onSaved := func(backendName string, records int, savedAt time.Time) {
		hub.BroadcastGallerySaved(backendName, records, savedAt)
	}
	checks := map[string]handlers.ReadyCheck{}
	if backend.Ping != nil {
		checks[cfg.Gallery.Backend] = backend.Ping
	}

	// Event bus: scans go through JetStream and come back to the hub.
	if cfg.NATS.URL != "" {
		producer, consumer, err := connectNATS(ctx, cfg.NATS.URL, hub)
		if err != nil {
			slog.Warn("nats unavailable, broadcasting scans directly", "error", err)
		} else {
			defer producer.Close()
			defer consumer.Close()

			notifier = scan.NotifierFunc(func(ctx context.Context, evt models.ScanEvent) error {
				if err := producer.PublishScan(ctx, evt); err != nil {
					hub.BroadcastScan(evt)
					return err
				}
				return nil
			})
			onSaved = func(backendName string, records int, savedAt time.Time) {
				err := producer.PublishGallerySaved(queue.GallerySaved{
					Backend: backendName,
					Records: records,
					SavedAt: savedAt,
				})
				if err != nil {
					slog.Warn("publish gallery saved", "error", err)
					hub.BroadcastGallerySaved(backendName, records, savedAt)
				}
			}
			checks["nats"] = func(context.Context) error { return producer.Ping() }
		}
	}

	svc := scan.NewService(detector, store, scanLog, notifier, scan.Options{
		ScanThreshold:  cfg.Matching.ScanThreshold,
		AdminThreshold: cfg.Matching.AdminThreshold,
	})

	sessions, err := auth.NewSessions(cfg.Server.AdminUsername, cfg.Server.AdminPassword, cfg.Server.SessionSecret, cfg.Server.SecureCookies)
	if err != nil {
		slog.Error("create session manager", "error", err)
		os.Exit(1)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:        cfg.Server.APIKey,
		Sessions:      sessions,
		Store:         store,
		Scans:         svc,
		History:       scanLog,
		Hub:           hub,
		Backend:       gw.Backend(),
		OnSaved:       onSaved,
		Frames:        &capture.Grabber{Width: cfg.Capture.Width},
		CaptureSource: cfg.Capture.Source,
		Checks:        checks,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// connectNATS sets up the scan stream and forwards bus events to the hub.
func connectNATS(ctx context.Context, url string, hub *ws.Hub) (*queue.Producer, *queue.Consumer, error) {
	producer, err := queue.NewProducer(url)
	if err != nil {
		return nil, nil, err
	}
	if err := producer.EnsureStreams(ctx); err != nil {
		producer.Close()
		return nil, nil, err
	}

	consumer, err := queue.NewConsumer(url)
	if err != nil {
		producer.Close()
		return nil, nil, err
	}

	err = consumer.ConsumeScans(ctx, "api-scans", func(ctx context.Context, evt models.ScanEvent) error {
		hub.BroadcastScan(evt)
		return nil
	})
	if err != nil {
		consumer.Close()
		producer.Close()
		return nil, nil, err
	}

	if _, err := consumer.SubscribeGallerySaved(func(msg queue.GallerySaved) {
		hub.BroadcastGallerySaved(msg.Backend, msg.Records, msg.SavedAt)
	}); err != nil {
		consumer.Close()
		producer.Close()
		return nil, nil, err
	}
	return producer, consumer, nil
}
