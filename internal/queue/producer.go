package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/idscan/internal/models"
)

const (
	ScansStreamName  = "SCANS"
	ScansSubjectBase = "scans"
	// GallerySavedSubject is a core NATS subject; saves are not replayed.
	GallerySavedSubject = "gallery.saved"
)

// GallerySaved announces that a process flushed the gallery.
type GallerySaved struct {
	Backend string    `json:"backend"`
	Records int       `json:"records"`
	SavedAt time.Time `json:"saved_at"`
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

func connect(natsURL string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("idscan"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// EnsureStreams creates the SCANS stream if it doesn't exist.
// Retries up to 30 times (1s apart) to ride out NATS startup.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        ScansStreamName,
		Subjects:    []string{ScansSubjectBase + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxMsgs:     100000,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Duplicates:  time.Minute,
		Description: "Completed scans with their match results",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishScan publishes a completed scan on scans.<source>.
// The event ID doubles as the JetStream dedup key.
func (p *Producer) PublishScan(ctx context.Context, evt models.ScanEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal scan event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", ScansSubjectBase, subjectToken(evt.Source))
	if _, err := p.js.Publish(ctx, subject, payload, jetstream.WithMsgID(evt.ID)); err != nil {
		return fmt.Errorf("publish scan: %w", err)
	}
	return nil
}

// PublishGallerySaved announces a successful flush via core NATS.
func (p *Producer) PublishGallerySaved(msg GallerySaved) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal gallery saved: %w", err)
	}
	return p.nc.Publish(GallerySavedSubject, payload)
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}

// subjectToken makes s safe to use as one NATS subject token.
func subjectToken(s string) string {
	if s == "" {
		return "unknown"
	}
	out := []byte(s)
	for i, b := range out {
		switch b {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			out[i] = '_'
		}
	}
	return string(out)
}
