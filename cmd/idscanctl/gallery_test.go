package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/your-org/idscan/internal/storage"
)

func TestImportGalleryMergesDuplicates(t *testing.T) {
	files := storage.NewFileStore(filepath.Join(t.TempDir(), "gallery.json"))
	gw := storage.NewGateway(storage.NewBlobBackend(files), 0, time.Millisecond)

	data := []byte(`[
		{"label":"1","fullName":"Old Name","group":"g","descriptors":[[0.1,0.2]]},
		{"label":"2","fullName":"Bob","group":"g","descriptors":[[0.5,0.5]]},
		{"label":"1","fullName":"New Name","group":"g","descriptors":[[0.3,0.4]]}
	]`)

	out, err := importGallery(context.Background(), gw, data)
	if err != nil {
		t.Fatalf("importGallery: %v", err)
	}
	if !out.Success {
		t.Fatalf("import outcome = %+v", out)
	}

	records, loaded := gw.Load(context.Background())
	if !loaded.Success {
		t.Fatalf("load: %s", loaded.Message)
	}
	if len(records) != 2 {
		t.Fatalf("stored %d records, want 2: %+v", len(records), records)
	}
	first := records[0]
	if first.Label != "1" || first.FullName != "New Name" || len(first.Descriptors) != 2 {
		t.Errorf("merged record = %+v", first)
	}
	if records[1].Label != "2" {
		t.Errorf("second record = %+v", records[1])
	}
}

func TestImportGalleryRejectsMalformed(t *testing.T) {
	files := storage.NewFileStore(filepath.Join(t.TempDir(), "gallery.json"))
	gw := storage.NewGateway(storage.NewBlobBackend(files), 0, time.Millisecond)

	if _, err := importGallery(context.Background(), gw, []byte(`{"label":"1"}`)); err == nil {
		t.Fatal("expected error for non-array gallery")
	}
	if _, err := files.Get(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("backend written after failed import: %v", err)
	}
}
