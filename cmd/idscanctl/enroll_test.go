package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIdentityFromFile(t *testing.T) {
	tests := []struct {
		path      string
		wantLabel string
		wantName  string
	}{
		{"/cards/1234_Jane Doe.jpg", "1234", "Jane Doe"},
		{"cards/5678.png", "5678", "5678"},
		{"9012_.jpeg", "9012", "9012"},
		{"42_Ann_Marie Lee.webp", "42", "Ann_Marie Lee"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			label, name := identityFromFile(tt.path)
			if label != tt.wantLabel || name != tt.wantName {
				t.Fatalf("identityFromFile(%q) = %q, %q; want %q, %q", tt.path, label, name, tt.wantLabel, tt.wantName)
			}
		})
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.JPG", "a.png", "notes.txt", "c.webp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := listImages(dir)
	if err != nil {
		t.Fatalf("listImages: %v", err)
	}
	want := []string{"a.png", "b.JPG", "c.webp"}
	if len(files) != len(want) {
		t.Fatalf("files = %v", files)
	}
	for i, f := range files {
		if filepath.Base(f) != want[i] {
			t.Fatalf("files[%d] = %s, want %s", i, filepath.Base(f), want[i])
		}
	}
}
