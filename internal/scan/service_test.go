package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/your-org/idscan/internal/gallery"
	"github.com/your-org/idscan/internal/history"
	"github.com/your-org/idscan/internal/matcher"
	"github.com/your-org/idscan/internal/models"
	"github.com/your-org/idscan/internal/storage"
	"github.com/your-org/idscan/internal/vision"
)

type fakeDetector struct {
	dets []models.Detection
	err  error
}

func (f *fakeDetector) Detect(ctx context.Context, img []byte) ([]models.Detection, error) {
	return f.dets, f.err
}

type nopPersister struct{}

func (nopPersister) Load(ctx context.Context) ([]models.FaceRecord, storage.Outcome) {
	return nil, storage.Outcome{Success: true}
}

func (nopPersister) Save(ctx context.Context, records []models.FaceRecord) storage.Outcome {
	return storage.Outcome{Success: true}
}

func vec(v float32) models.Descriptor {
	d := make(models.Descriptor, 4)
	d[0] = v
	return d
}

type recorder struct {
	events []models.ScanEvent
}

func (r *recorder) NotifyScan(ctx context.Context, evt models.ScanEvent) error {
	r.events = append(r.events, evt)
	return nil
}

func newService(t *testing.T, det *fakeDetector) (*Service, *gallery.Store, *history.Log, *recorder) {
	t.Helper()
	store := gallery.NewStore(nopPersister{})
	log := history.NewLog(history.NewMemoryKV())
	rec := &recorder{}
	var d vision.Detector
	if det != nil {
		d = det
	}
	svc := NewService(d, store, log, rec, Options{ScanThreshold: 0.45, AdminThreshold: 0.6})
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, store, log, rec
}

func TestScanImageRecordsHistory(t *testing.T) {
	det := &fakeDetector{dets: []models.Detection{
		{Descriptor: vec(0.5)},
		{Descriptor: vec(0.1)},
	}}
	svc, store, log, rec := newService(t, det)
	store.Upsert("A", "Alice", "g", []models.Descriptor{vec(0)})

	entry, err := svc.ScanImage(context.Background(), "camera", []byte("img"))
	if err != nil {
		t.Fatalf("ScanImage: %v", err)
	}
	if entry.Timestamp != 1700000000000 {
		t.Errorf("timestamp = %d", entry.Timestamp)
	}
	if len(entry.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(entry.Results))
	}
	if entry.Results[0].Label != matcher.Unknown || entry.Results[1].Label != "A" {
		t.Errorf("unexpected results %+v", entry.Results)
	}

	entries, _ := log.List(context.Background())
	if len(entries) != 1 || entries[0].Timestamp != entry.Timestamp {
		t.Errorf("history not recorded: %+v", entries)
	}
	if len(rec.events) != 1 || rec.events[0].Source != "camera" || rec.events[0].ID == "" {
		t.Errorf("notification missing: %+v", rec.events)
	}
}

func TestScanNoFaces(t *testing.T) {
	svc, store, log, rec := newService(t, &fakeDetector{})
	store.Upsert("A", "", "g", []models.Descriptor{vec(0)})

	entry, err := svc.ScanImage(context.Background(), "camera", []byte("img"))
	if err != nil {
		t.Fatalf("no faces is not an error: %v", err)
	}
	if len(entry.Results) != 0 {
		t.Errorf("expected empty results, got %+v", entry.Results)
	}
	entries, _ := log.List(context.Background())
	if len(entries) != 0 || len(rec.events) != 0 {
		t.Error("empty scans are not recorded")
	}
}

func TestScanRefusals(t *testing.T) {
	t.Run("empty gallery", func(t *testing.T) {
		svc, _, _, _ := newService(t, &fakeDetector{})
		if _, err := svc.ScanImage(context.Background(), "x", nil); !errors.Is(err, matcher.ErrEmptyGallery) {
			t.Errorf("expected ErrEmptyGallery, got %v", err)
		}
	})
	t.Run("no detector", func(t *testing.T) {
		svc, store, _, _ := newService(t, nil)
		store.Upsert("A", "", "g", []models.Descriptor{vec(0)})
		if _, err := svc.ScanImage(context.Background(), "x", nil); !errors.Is(err, ErrNoDetector) {
			t.Errorf("expected ErrNoDetector, got %v", err)
		}
	})
	t.Run("detector error", func(t *testing.T) {
		boom := errors.New("boom")
		svc, store, _, _ := newService(t, &fakeDetector{err: boom})
		store.Upsert("A", "", "g", []models.Descriptor{vec(0)})
		if _, err := svc.ScanImage(context.Background(), "x", nil); !errors.Is(err, boom) {
			t.Errorf("expected wrapped boom, got %v", err)
		}
	})
}

func TestAdminMatchUsesAdminThreshold(t *testing.T) {
	svc, store, log, _ := newService(t, &fakeDetector{dets: []models.Detection{{Descriptor: vec(0.5)}}})
	store.Upsert("A", "Alice", "g", []models.Descriptor{vec(0)})

	results, err := svc.MatchImage(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("MatchImage: %v", err)
	}
	// 0.5 is above the scan threshold but within the admin one.
	if len(results) != 1 || results[0].Label != "A" || results[0].Distance != 0.5 {
		t.Errorf("unexpected results %+v", results)
	}
	entries, _ := log.List(context.Background())
	if len(entries) != 0 {
		t.Error("admin match must not write history")
	}
}

func TestEnroll(t *testing.T) {
	svc, store, _, _ := newService(t, &fakeDetector{dets: []models.Detection{{Descriptor: vec(1)}, {Descriptor: vec(2)}}})

	res, err := svc.EnrollImage(context.Background(), EnrollRequest{Label: " 1001 ", FullName: "Ann", Group: "chess"}, []byte("img"))
	if err != nil {
		t.Fatalf("EnrollImage: %v", err)
	}
	if !res.Created || res.Faces != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	r, ok := store.Find("1001", "chess")
	if !ok || len(r.Descriptors) != 2 {
		t.Errorf("record not stored: %+v", r)
	}

	res, err = svc.EnrollDescriptors(EnrollRequest{Label: "1001", FullName: "Ann B", Group: "chess"}, []models.Descriptor{vec(3)})
	if err != nil || res.Created {
		t.Errorf("second enrolment should append: %+v, %v", res, err)
	}
}

func TestEnrollValidation(t *testing.T) {
	svc, _, _, _ := newService(t, &fakeDetector{})

	tests := []struct {
		name string
		req  EnrollRequest
		want string
	}{
		{"no label", EnrollRequest{FullName: "A", Group: "g"}, "Please enter an ID number for the face."},
		{"no name", EnrollRequest{Label: "1", Group: "g"}, "Please enter a Full Name for the face."},
		{"no group", EnrollRequest{Label: "1", FullName: "A", Group: "  "}, "Please select a group for the face."},
		{"no faces", EnrollRequest{Label: "1", FullName: "A", Group: "g"}, "No faces detected to save. Please upload an image first."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.EnrollDescriptors(tt.req, nil)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Msg != tt.want {
				t.Errorf("got %v, want %q", err, tt.want)
			}
		})
	}
}
