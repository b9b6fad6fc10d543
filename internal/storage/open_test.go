package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/your-org/idscan/internal/config"
)

func TestOpenFileBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Gallery.Backend = config.BackendFile
	cfg.File.Path = filepath.Join(t.TempDir(), "gallery.json")

	opened, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer opened.Close()

	if opened.Backend.Name() != "local file" {
		t.Fatalf("name = %q", opened.Backend.Name())
	}
	if opened.Ping != nil {
		t.Fatal("file backend should have no ping")
	}
	if _, err := opened.Backend.Read(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read on missing file = %v, want ErrNotFound", err)
	}
}

func TestOpenRemoteBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Gallery.Backend = config.BackendRemote
	cfg.Remote.BaseURL = "http://127.0.0.1:1"

	opened, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened.Backend.Name() != "remote server" {
		t.Fatalf("name = %q", opened.Backend.Name())
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Gallery.Backend = "floppy"
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Fatal("expected error")
	}
}
