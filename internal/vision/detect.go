package vision

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// faceBox is a raw detector hit in original image coordinates.
type faceBox struct {
	BBox       [4]float32 // x1, y1, x2, y2
	Confidence float32
	Landmarks  [5][2]float32
}

// FaceDetector runs the RetinaFace det_10g model.
type FaceDetector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputW        int
	inputH        int
}

var strides = []int{8, 16, 32}

const (
	anchorsPerStride = 2
	nmsThreshold     = 0.4
)

// NewFaceDetector loads the detection model. opts may be nil.
func NewFaceDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*FaceDetector, error) {
	inputW, inputH := 640, 640

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// Outputs carry no batch dimension. Per stride s there are
	// (640/s)^2 * 2 anchors: 12800, 3200, 800.
	type outputSpec struct {
		name  string
		shape ort.Shape
	}
	outputs := []outputSpec{
		{"448", ort.NewShape(12800, 1)},
		{"471", ort.NewShape(3200, 1)},
		{"494", ort.NewShape(800, 1)},
		{"451", ort.NewShape(12800, 4)},
		{"474", ort.NewShape(3200, 4)},
		{"497", ort.NewShape(800, 4)},
		{"454", ort.NewShape(12800, 10)},
		{"477", ort.NewShape(3200, 10)},
		{"500", ort.NewShape(800, 10)},
	}

	outputNames := make([]string, len(outputs))
	outputTensors := make([]*ort.Tensor[float32], len(outputs))
	outputValues := make([]ort.Value, len(outputs))
	for i, spec := range outputs {
		outputNames[i] = spec.name
		t, err := ort.NewEmptyTensor[float32](spec.shape)
		if err != nil {
			for j := 0; j < i; j++ {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", spec.name, err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &FaceDetector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		threshold:     threshold,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// Run detects faces in a preprocessed CHW tensor. origW/origH scale boxes back
// to the source image. Not safe for concurrent use.
func (d *FaceDetector) Run(imgData []float32, origW, origH int) ([]faceBox, error) {
	copy(d.inputTensor.GetData(), imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	boxes := decodeAnchors(d.outputTensors, d.threshold, d.inputW, d.inputH, origW, origH)
	return nms(boxes, nmsThreshold), nil
}

func (d *FaceDetector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *FaceDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// decodeAnchors turns score/bbox/landmark outputs at strides 8, 16, 32 into boxes.
func decodeAnchors(outputs []*ort.Tensor[float32], threshold float32, inputW, inputH, origW, origH int) []faceBox {
	var boxes []faceBox

	scaleW := float32(origW) / float32(inputW)
	scaleH := float32(origH) / float32(inputH)

	for si, stride := range strides {
		scores := outputs[si].GetData()
		bboxes := outputs[si+3].GetData()
		landmarks := outputs[si+6].GetData()
		boxes = append(boxes, decodeStride(scores, bboxes, landmarks, stride, threshold,
			inputW, inputH, scaleW, scaleH, float32(origW), float32(origH))...)
	}
	return boxes
}

func decodeStride(scores, bboxes, landmarks []float32, stride int, threshold float32,
	inputW, inputH int, scaleW, scaleH, maxW, maxH float32) []faceBox {
	var boxes []faceBox

	fmW := inputW / stride
	fmH := inputH / stride
	st := float32(stride)

	idx := 0
	for cy := 0; cy < fmH; cy++ {
		for cx := 0; cx < fmW; cx++ {
			for a := 0; a < anchorsPerStride; a++ {
				score := scores[idx]
				if score >= threshold {
					ax := float32(cx) * st
					ay := float32(cy) * st

					// Distances from the anchor to each edge, in stride units.
					x1 := clampF((ax-bboxes[idx*4+0]*st)*scaleW, 0, maxW)
					y1 := clampF((ay-bboxes[idx*4+1]*st)*scaleH, 0, maxH)
					x2 := clampF((ax+bboxes[idx*4+2]*st)*scaleW, 0, maxW)
					y2 := clampF((ay+bboxes[idx*4+3]*st)*scaleH, 0, maxH)

					var lm [5][2]float32
					for li := 0; li < 5; li++ {
						lm[li][0] = (ax + landmarks[idx*10+li*2]*st) * scaleW
						lm[li][1] = (ay + landmarks[idx*10+li*2+1]*st) * scaleH
					}

					boxes = append(boxes, faceBox{
						BBox:       [4]float32{x1, y1, x2, y2},
						Confidence: score,
						Landmarks:  lm,
					})
				}
				idx++
			}
		}
	}
	return boxes
}

// nms keeps the highest-confidence box of each overlapping cluster.
// The result is ordered by descending confidence.
func nms(boxes []faceBox, iouThreshold float32) []faceBox {
	if len(boxes) == 0 {
		return boxes
	}

	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Confidence > boxes[j].Confidence
	})

	keep := make([]bool, len(boxes))
	for i := range keep {
		keep[i] = true
	}
	for i := 0; i < len(boxes); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(boxes); j++ {
			if keep[j] && iou(boxes[i].BBox, boxes[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []faceBox
	for i, b := range boxes {
		if keep[i] {
			result = append(result, b)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	inter := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
