package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeFileServer mimics the upload/download endpoints of the gallery file server.
type fakeFileServer struct {
	mu       sync.Mutex
	data     []byte
	filename string
}

func (f *fakeFileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/upload":
		file, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		f.data = data
		f.filename = hdr.Filename
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"filename":"` + hdr.Filename + `"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/download":
		if f.data == nil {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(f.data)
	default:
		http.NotFound(w, r)
	}
}

func TestRemoteStoreNotFound(t *testing.T) {
	srv := httptest.NewServer(&fakeFileServer{})
	defer srv.Close()

	s := NewRemoteStore(srv.URL, 0)
	if _, err := s.Get(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoteStoreRoundTrip(t *testing.T) {
	fs := &fakeFileServer{}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	backend := NewBlobBackend(NewRemoteStore(srv.URL+"/", 0))
	if err := backend.Write(context.Background(), sample()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if fs.filename != RemoteFileName {
		t.Errorf("expected upload filename %q, got %q", RemoteFileName, fs.filename)
	}

	records, err := backend.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 2 || records[1].Label != "2" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestRemoteStoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage offline", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewRemoteStore(srv.URL, 0)
	_, err := s.Get(context.Background())
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a non-not-found error, got %v", err)
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "storage offline") {
		t.Errorf("error should carry status and body: %v", err)
	}

	if err := s.Put(context.Background(), []byte("[]")); err == nil {
		t.Fatal("expected upload error")
	}
}
