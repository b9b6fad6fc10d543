package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/your-org/idscan/internal/models"
)

// ErrMalformed is wrapped by every Decode failure.
var ErrMalformed = errors.New("malformed gallery data")

// wireRecord mirrors the stored JSON. Pointers tell a missing field from an empty one.
type wireRecord struct {
	Label       *string              `json:"label"`
	FullName    *string              `json:"fullName"`
	Group       *string              `json:"group"`
	Descriptors *[]models.Descriptor `json:"descriptors"`
}

// Encode serializes the gallery as a JSON array of records.
// A nil gallery is written as an empty array.
func Encode(records []models.FaceRecord) ([]byte, error) {
	if records == nil {
		records = []models.FaceRecord{}
	}
	out := make([]models.FaceRecord, len(records))
	for i, r := range records {
		out[i] = r
		if out[i].Descriptors == nil {
			out[i].Descriptors = []models.Descriptor{}
		}
	}
	return json.Marshal(out)
}

// Decode parses a stored gallery. A missing fullName defaults to "";
// a missing label, group or descriptors list is an error.
func Decode(data []byte) ([]models.FaceRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: top level must be a JSON array", ErrMalformed)
	}

	var wire []wireRecord
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	records := make([]models.FaceRecord, 0, len(wire))
	for i, w := range wire {
		switch {
		case w.Label == nil:
			return nil, fmt.Errorf("%w: record %d has no label", ErrMalformed, i)
		case w.Group == nil:
			return nil, fmt.Errorf("%w: record %d (%s) has no group", ErrMalformed, i, *w.Label)
		case w.Descriptors == nil:
			return nil, fmt.Errorf("%w: record %d (%s) has no descriptors", ErrMalformed, i, *w.Label)
		}

		rec := models.FaceRecord{
			Label:       *w.Label,
			Group:       *w.Group,
			Descriptors: *w.Descriptors,
		}
		if w.FullName != nil {
			rec.FullName = *w.FullName
		}
		records = append(records, rec)
	}
	return records, nil
}
