// Package vision detects faces in images and turns them into descriptors.
package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/your-org/idscan/internal/config"
	"github.com/your-org/idscan/internal/models"
	"github.com/your-org/idscan/internal/observability"
)

// Detector finds every face in an encoded image and describes it.
type Detector interface {
	Detect(ctx context.Context, img []byte) ([]models.Detection, error)
}

// ErrDecode is returned when the image bytes cannot be decoded.
var ErrDecode = errors.New("decode image")

// Pipeline is the ONNX-backed Detector: detect, crop, embed.
type Pipeline struct {
	mu       sync.Mutex
	detector *FaceDetector
	embedder *Embedder
}

// NewPipeline loads both models from cfg.ModelsDir. The runtime must be initialised.
func NewPipeline(cfg config.VisionConfig, descriptorDim int) (*Pipeline, error) {
	detPath := filepath.Join(cfg.ModelsDir, cfg.DetectorModel)
	embPath := filepath.Join(cfg.ModelsDir, cfg.EmbedderModel)

	slog.Info("loading detection model", "path", detPath)
	det, err := NewFaceDetector(detPath, float32(cfg.DetectionThreshold), nil)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath, descriptorDim, nil)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("vision pipeline ready", "descriptor_dim", descriptorDim)
	return &Pipeline{detector: det, embedder: emb}, nil
}

// Detect returns one detection per face, highest confidence first.
// An image with no faces yields an empty slice.
func (p *Pipeline) Detect(ctx context.Context, data []byte) ([]models.Detection, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()

	// Sessions share their tensors, so one image at a time.
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	detW, detH := p.detector.InputSize()
	detInput := preprocessForDetection(img, detW, detH)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	boxes, err := p.detector.Run(detInput, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	out := make([]models.Detection, 0, len(boxes))
	embW, embH := p.embedder.InputSize()
	for _, b := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		crop := cropFace(img, b.BBox)
		if crop == nil {
			continue
		}

		start = time.Now()
		desc, err := p.embedder.Extract(preprocessForEmbedding(crop, embW, embH))
		if err != nil {
			slog.Warn("embed error", "error", err)
			continue
		}
		observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

		out = append(out, models.Detection{
			Descriptor: desc,
			BBox:       b.BBox,
			Confidence: b.Confidence,
		})
	}
	return out, nil
}

// Close releases the ONNX sessions.
func (p *Pipeline) Close() {
	if p.detector != nil {
		p.detector.Close()
	}
	if p.embedder != nil {
		p.embedder.Close()
	}
}
