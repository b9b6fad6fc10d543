package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/your-org/idscan/internal/models"
)

// ErrNotFound reports that the backend holds no gallery yet.
var ErrNotFound = errors.New("no gallery data found")

// Backend persists the whole gallery. Write is a full replace.
type Backend interface {
	Name() string
	Read(ctx context.Context) ([]models.FaceRecord, error)
	Write(ctx context.Context, records []models.FaceRecord) error
}

// BlobStore holds the gallery as one serialized document.
// Get returns ErrNotFound when nothing has been stored.
type BlobStore interface {
	Name() string
	Get(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, data []byte) error
}

type blobBackend struct {
	blobs BlobStore
}

// NewBlobBackend exposes a BlobStore as a Backend using the JSON gallery codec.
func NewBlobBackend(blobs BlobStore) Backend {
	return &blobBackend{blobs: blobs}
}

func (b *blobBackend) Name() string {
	return b.blobs.Name()
}

func (b *blobBackend) Read(ctx context.Context) ([]models.FaceRecord, error) {
	data, err := b.blobs.Get(ctx)
	if err != nil {
		return nil, err
	}
	records, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode gallery from %s: %w", b.blobs.Name(), err)
	}
	return records, nil
}

func (b *blobBackend) Write(ctx context.Context, records []models.FaceRecord) error {
	data, err := Encode(records)
	if err != nil {
		return fmt.Errorf("encode gallery: %w", err)
	}
	return b.blobs.Put(ctx, data)
}
