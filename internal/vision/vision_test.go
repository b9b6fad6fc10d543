package vision

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func TestIOU(t *testing.T) {
	tests := []struct {
		name string
		a, b [4]float32
		want float32
	}{
		{"identical", [4]float32{0, 0, 10, 10}, [4]float32{0, 0, 10, 10}, 1},
		{"disjoint", [4]float32{0, 0, 10, 10}, [4]float32{20, 20, 30, 30}, 0},
		{"half overlap", [4]float32{0, 0, 10, 10}, [4]float32{5, 0, 15, 10}, 50.0 / 150.0},
		{"degenerate", [4]float32{0, 0, 0, 0}, [4]float32{0, 0, 0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iou(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("iou = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNMS(t *testing.T) {
	boxes := []faceBox{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.7},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.9},
		{BBox: [4]float32{50, 50, 60, 60}, Confidence: 0.8},
	}
	got := nms(boxes, 0.4)
	if len(got) != 2 {
		t.Fatalf("expected 2 boxes, got %d", len(got))
	}
	if got[0].Confidence != 0.9 || got[1].Confidence != 0.8 {
		t.Errorf("unexpected survivors: %+v", got)
	}
}

func TestDecodeStride(t *testing.T) {
	// 64x64 input at stride 32 gives a 2x2 map with 2 anchors each.
	n := 2 * 2 * anchorsPerStride
	scores := make([]float32, n)
	bboxes := make([]float32, n*4)
	landmarks := make([]float32, n*10)

	// Anchor 2 sits at cell (1,0), centre (32,0).
	scores[2] = 0.95
	copy(bboxes[2*4:], []float32{0.5, 0, 0.5, 1})

	boxes := decodeStride(scores, bboxes, landmarks, 32, 0.5, 64, 64, 2, 2, 128, 128)
	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(boxes))
	}
	want := [4]float32{32, 0, 96, 64}
	if boxes[0].BBox != want {
		t.Errorf("bbox = %v, want %v", boxes[0].BBox, want)
	}
}

func TestImageToFloat32CHW(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 128, A: 255})
		}
	}

	data := imageToFloat32CHW(img, 2, 2, [3]float32{0, 0, 0}, [3]float32{255, 255, 255})
	if len(data) != 3*2*2 {
		t.Fatalf("expected 12 values, got %d", len(data))
	}
	// Allow one step of filter rounding.
	const tol = 1.5 / 255
	for i, want := range []float64{1, 0, 128.0 / 255.0} {
		for j := 0; j < 4; j++ {
			if got := float64(data[i*4+j]); math.Abs(got-want) > tol {
				t.Errorf("plane %d pixel %d = %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestCropFace(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	crop := cropFace(img, [4]float32{10, 10, 60, 60})
	if crop == nil {
		t.Fatal("expected a crop")
	}
	if b := crop.Bounds(); b.Dx() != 60 || b.Dy() != 60 {
		t.Errorf("crop size = %dx%d, want 60x60", b.Dx(), b.Dy())
	}

	if cropFace(img, [4]float32{200, 200, 300, 300}) != nil {
		t.Error("box outside the image should give nil")
	}

	edge := cropFace(img, [4]float32{0, 0, 100, 100})
	if b := edge.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Errorf("padding must be clamped, got %v", b)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("normalize = %v", v)
	}

	zero := []float32{0, 0}
	normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestPipelineRejectsUndecodableImage(t *testing.T) {
	p := &Pipeline{}
	_, err := p.Detect(context.Background(), []byte("not an image"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}
