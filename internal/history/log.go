package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/your-org/idscan/internal/models"
)

// Key is the storage key holding the whole log.
const Key = "scanHistory"

// Log is the scan history, stored as one JSON array under Key.
type Log struct {
	mu sync.Mutex
	kv KV
}

func NewLog(kv KV) *Log {
	return &Log{kv: kv}
}

// Append inserts entry at the head of the log.
func (l *Log) Append(ctx context.Context, entry models.ScanHistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read(ctx)
	if err != nil {
		return err
	}
	if entry.Results == nil {
		entry.Results = []models.MatchResult{}
	}
	entries = append([]models.ScanHistoryEntry{entry}, entries...)

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := l.kv.Set(ctx, Key, data); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// List returns the log, most recent first. Invalid entries are skipped and an
// unreadable log is discarded.
func (l *Log) List(ctx context.Context) ([]models.ScanHistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx)
}

// Latest returns the most recent entry, if any.
func (l *Log) Latest(ctx context.Context) (models.ScanHistoryEntry, bool, error) {
	entries, err := l.List(ctx)
	if err != nil || len(entries) == 0 {
		return models.ScanHistoryEntry{}, false, err
	}
	return entries[0], true, nil
}

// Clear removes the whole log.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (l *Log) read(ctx context.Context) ([]models.ScanHistoryEntry, error) {
	data, err := l.kv.Get(ctx, Key)
	if errors.Is(err, ErrNotFound) {
		return []models.ScanHistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	entries, ok := decode(data)
	if !ok {
		slog.Warn("discarding unreadable scan history", "bytes", len(data))
		if err := l.kv.Delete(ctx, Key); err != nil {
			slog.Error("delete unreadable scan history", "error", err)
		}
		return []models.ScanHistoryEntry{}, nil
	}
	return entries, nil
}

// decode parses the stored array, keeping only entries with a numeric
// timestamp and an array of results. It reports false when data is not an array.
func decode(data []byte) ([]models.ScanHistoryEntry, bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, false
	}

	entries := make([]models.ScanHistoryEntry, 0, len(raw))
	for _, item := range raw {
		var fields struct {
			Timestamp json.RawMessage `json:"timestamp"`
			Results   json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}

		var ts float64
		if string(fields.Timestamp) == "null" {
			continue
		}
		if err := json.Unmarshal(fields.Timestamp, &ts); err != nil {
			continue
		}
		var results []models.MatchResult
		if err := json.Unmarshal(fields.Results, &results); err != nil || results == nil {
			continue
		}
		entries = append(entries, models.ScanHistoryEntry{
			Timestamp: int64(ts),
			Results:   results,
		})
	}
	return entries, true
}
