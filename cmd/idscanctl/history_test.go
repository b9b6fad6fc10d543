package main

import (
	"context"
	"testing"

	"github.com/your-org/idscan/internal/config"
	"github.com/your-org/idscan/internal/history"
	"github.com/your-org/idscan/internal/models"
)

func TestOpenHistoryScannerDir(t *testing.T) {
	cfg = &config.Config{History: config.HistoryConfig{Dir: t.TempDir()}}
	ctx := context.Background()

	kv, err := history.OpenBadger(cfg.History.ScannerDir(), false)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	entry := models.ScanHistoryEntry{
		Timestamp: 1700000000000,
		Results:   []models.MatchResult{{Label: "A1", Distance: 0.2}},
	}
	if err := history.NewLog(kv).Append(ctx, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	scannerLog, closeScanner, err := openHistory(true)
	if err != nil {
		t.Fatalf("openHistory(scanner): %v", err)
	}
	entries, err := scannerLog.List(ctx)
	closeScanner()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Results[0].Label != "A1" {
		t.Fatalf("scanner entries = %+v", entries)
	}

	apiLog, closeAPI, err := openHistory(false)
	if err != nil {
		t.Fatalf("openHistory(api): %v", err)
	}
	defer closeAPI()
	entries, err = apiLog.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("API history = %+v, want empty", entries)
	}
}

func TestFormatDistance(t *testing.T) {
	if got := formatDistance(models.MatchResult{Distance: 0.456}); got != "0.46" {
		t.Errorf("formatDistance = %q, want 0.46", got)
	}
	if got := formatDistance(models.MatchResult{Label: "unknown", Distance: models.NoDistance}); got != "-" {
		t.Errorf("formatDistance(no distance) = %q, want -", got)
	}
}
