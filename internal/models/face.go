package models

// Descriptor is a face embedding vector produced by the embedding model.
// The gallery expects 128 values but does not enforce it.
type Descriptor []float32

// FaceRecord is one identity in the gallery. The (Label, Group) pair is unique.
type FaceRecord struct {
	Label       string       `json:"label"`
	FullName    string       `json:"fullName"`
	Group       string       `json:"group"`
	Descriptors []Descriptor `json:"descriptors"`
}

// Clone returns a deep copy of the record.
func (r FaceRecord) Clone() FaceRecord {
	out := FaceRecord{
		Label:       r.Label,
		FullName:    r.FullName,
		Group:       r.Group,
		Descriptors: make([]Descriptor, len(r.Descriptors)),
	}
	for i, d := range r.Descriptors {
		out.Descriptors[i] = append(Descriptor(nil), d...)
	}
	return out
}

// Detection is one face found by the detect adapter.
type Detection struct {
	Descriptor Descriptor `json:"descriptor"`
	BBox       [4]float32 `json:"bbox"` // x1, y1, x2, y2
	Confidence float32    `json:"confidence"`
}

// Descriptors returns the descriptors of the detections in detection order.
func Descriptors(dets []Detection) []Descriptor {
	out := make([]Descriptor, 0, len(dets))
	for _, d := range dets {
		out = append(out, d.Descriptor)
	}
	return out
}
