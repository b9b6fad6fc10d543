package storage

import (
	"context"
	"fmt"

	"github.com/your-org/idscan/internal/config"
)

// Opened is a ready gallery backend with its lifecycle hooks.
type Opened struct {
	Backend Backend
	// Ping is nil when the backend has no health check.
	Ping  func(ctx context.Context) error
	Close func()
}

// Open connects the backend selected by cfg.Gallery.Backend and prepares it
// (bucket creation, schema migrations).
func Open(ctx context.Context, cfg *config.Config) (*Opened, error) {
	switch cfg.Gallery.Backend {
	case config.BackendRemote:
		return &Opened{
			Backend: NewBlobBackend(NewRemoteStore(cfg.Remote.BaseURL, cfg.Remote.Timeout)),
			Close:   func() {},
		}, nil

	case config.BackendFile:
		return &Opened{
			Backend: NewBlobBackend(NewFileStore(cfg.File.Path)),
			Close:   func() {},
		}, nil

	case config.BackendMinIO:
		store, err := NewMinIOStore(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return &Opened{
			Backend: NewBlobBackend(store),
			Ping:    store.Ping,
			Close:   func() {},
		}, nil

	case config.BackendPostgres:
		store, err := NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return &Opened{
			Backend: store,
			Ping:    store.Ping,
			Close:   store.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown gallery backend %q", cfg.Gallery.Backend)
}
