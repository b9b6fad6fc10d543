package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/idscan/internal/models"
	"github.com/your-org/idscan/internal/observability"
)

// Outcome is the user-facing result of a gateway operation.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Gateway wraps a Backend with the gallery load/save contract:
// loads are retried, saves are attempted once.
type Gateway struct {
	backend    Backend
	maxRetries int
	interval   time.Duration
}

// NewGateway creates a gateway. maxRetries is the number of retries after
// the first failed load, so up to maxRetries+1 reads are made.
func NewGateway(backend Backend, maxRetries int, interval time.Duration) *Gateway {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Gateway{
		backend:    backend,
		maxRetries: maxRetries,
		interval:   interval,
	}
}

// Backend returns the backend name.
func (g *Gateway) Backend() string {
	return g.backend.Name()
}

// Save replaces the durable gallery with records.
func (g *Gateway) Save(ctx context.Context, records []models.FaceRecord) Outcome {
	start := time.Now()
	err := g.backend.Write(ctx, records)
	observability.PersistenceDuration.WithLabelValues(g.backend.Name(), "write").Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("save gallery", "backend", g.backend.Name(), "error", err)
		return Outcome{
			Success: false,
			Message: fmt.Sprintf("Failed to save face data to %s. Error: %v", g.backend.Name(), err),
		}
	}

	slog.Info("gallery saved", "backend", g.backend.Name(), "records", len(records))
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Face data saved to %s successfully! %d records stored.", g.backend.Name(), len(records)),
	}
}

// Load reads the durable gallery. ErrNotFound yields an empty gallery and success.
// Other failures are retried at a fixed interval until the retries run out
// or ctx is done. On failure the returned records are nil.
func (g *Gateway) Load(ctx context.Context) ([]models.FaceRecord, Outcome) {
	name := g.backend.Name()
	attempts := g.maxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		records, err := g.backend.Read(ctx)
		observability.PersistenceDuration.WithLabelValues(name, "read").Observe(time.Since(start).Seconds())

		switch {
		case err == nil:
			observability.GalleryLoadAttempts.WithLabelValues(name, "ok").Inc()
			if records == nil {
				records = []models.FaceRecord{}
			}
			return records, Outcome{
				Success: true,
				Message: fmt.Sprintf("Successfully loaded %d known faces from %s.", len(records), name),
			}
		case errors.Is(err, ErrNotFound):
			observability.GalleryLoadAttempts.WithLabelValues(name, "not_found").Inc()
			return []models.FaceRecord{}, Outcome{
				Success: true,
				Message: fmt.Sprintf("No face data found on %s.", name),
			}
		}

		observability.GalleryLoadAttempts.WithLabelValues(name, "error").Inc()
		lastErr = err
		slog.Warn("load gallery (retrying...)", "backend", name, "attempt", attempt, "error", err)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = fmt.Errorf("%v (cancelled: %w)", lastErr, ctx.Err())
			return nil, g.loadFailure(attempt, lastErr)
		case <-time.After(g.interval):
		}
	}

	return nil, g.loadFailure(attempts, lastErr)
}

func (g *Gateway) loadFailure(attempts int, err error) Outcome {
	slog.Error("load gallery failed", "backend", g.backend.Name(), "attempts", attempts, "error", err)
	return Outcome{
		Success: false,
		Message: fmt.Sprintf("Failed to load face data from %s after %d attempts. Last error: %v",
			g.backend.Name(), attempts, err),
	}
}
