package gallery

import (
	"context"
	"reflect"
	"testing"

	"github.com/your-org/idscan/internal/models"
	"github.com/your-org/idscan/internal/storage"
)

type stubPersister struct {
	loadRecords []models.FaceRecord
	loadOutcome storage.Outcome
	saved       []models.FaceRecord
	saveOutcome storage.Outcome
	saves       int
}

func (p *stubPersister) Load(ctx context.Context) ([]models.FaceRecord, storage.Outcome) {
	return p.loadRecords, p.loadOutcome
}

func (p *stubPersister) Save(ctx context.Context, records []models.FaceRecord) storage.Outcome {
	p.saves++
	p.saved = records
	return p.saveOutcome
}

func TestUpsertIdentity(t *testing.T) {
	s := NewStore(&stubPersister{})

	if !s.Upsert("1001", "Ann", "chess", []models.Descriptor{{1, 2}}) {
		t.Fatal("first upsert should create")
	}
	if s.Upsert("1001", "Ann Lee", "chess", []models.Descriptor{{3, 4}, {5, 6}}) {
		t.Fatal("second upsert should append")
	}
	if !s.Upsert("1001", "Other", "go", []models.Descriptor{{7, 8}}) {
		t.Fatal("same label in another group is a new record")
	}

	if s.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", s.Len())
	}
	r, ok := s.Find("1001", "chess")
	if !ok {
		t.Fatal("record not found")
	}
	if r.FullName != "Ann Lee" {
		t.Errorf("fullName not refreshed: %q", r.FullName)
	}
	if len(r.Descriptors) != 3 {
		t.Errorf("expected 3 descriptors, got %d", len(r.Descriptors))
	}
	if s.DescriptorCount() != 4 {
		t.Errorf("expected 4 descriptors total, got %d", s.DescriptorCount())
	}
}

func TestUpsertCopiesInput(t *testing.T) {
	s := NewStore(&stubPersister{})
	d := models.Descriptor{1, 2}
	s.Upsert("a", "", "g", []models.Descriptor{d})
	d[0] = 99

	r, _ := s.Find("a", "g")
	if r.Descriptors[0][0] != 1 {
		t.Error("store must not alias caller descriptors")
	}
}

func TestGroupsAndLabels(t *testing.T) {
	s := NewStore(&stubPersister{})
	s.Upsert("30", "", "Robotics", nil)
	s.Upsert("10", "", "chess", nil)
	s.Upsert("20", "", "chess", nil)
	s.Upsert("05", "", "Robotics", nil)

	if got, want := s.Groups(), []string{"Robotics", "chess"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Groups = %v, want %v", got, want)
	}
	if got, want := s.Labels("Robotics"), []string{"05", "30"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Labels = %v, want %v", got, want)
	}
	if got := s.Labels("missing"); len(got) != 0 {
		t.Errorf("expected no labels, got %v", got)
	}
}

func TestSearch(t *testing.T) {
	s := NewStore(&stubPersister{})
	s.Upsert("A-100", "", "Chess Club", nil)
	s.Upsert("a-200", "", "Chess Club", nil)
	s.Upsert("B-300", "", "Chess Club", nil)
	s.Upsert("1", "", "Drama", nil)

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"groups by substring", s.SearchGroups("CHESS"), []string{"Chess Club"}},
		{"groups empty term", s.SearchGroups("  "), []string{"Chess Club", "Drama"}},
		{"groups no match", s.SearchGroups("zzz"), []string{}},
		{"labels case insensitive", s.SearchLabels("Chess Club", "a-"), []string{"A-100", "a-200"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadFailureEmptiesGallery(t *testing.T) {
	p := &stubPersister{loadOutcome: storage.Outcome{Success: false, Message: "down"}}
	s := NewStore(p)
	s.Upsert("a", "", "g", []models.Descriptor{{1}})

	out := s.Load(context.Background())
	if out.Success || out.Message != "down" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if s.Len() != 0 {
		t.Errorf("gallery should be empty after failed load, has %d", s.Len())
	}
}

func TestLoadReplacesGallery(t *testing.T) {
	p := &stubPersister{
		loadRecords: []models.FaceRecord{{Label: "x", Group: "g", Descriptors: []models.Descriptor{{1}}}},
		loadOutcome: storage.Outcome{Success: true},
	}
	s := NewStore(p)
	s.Upsert("a", "", "g", nil)

	if out := s.Load(context.Background()); !out.Success {
		t.Fatalf("load failed: %s", out.Message)
	}
	if got := s.Labels("g"); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("Labels = %v", got)
	}
}

func TestFlushKeepsMemory(t *testing.T) {
	p := &stubPersister{saveOutcome: storage.Outcome{Success: false, Message: "nope"}}
	s := NewStore(p)
	s.Upsert("a", "", "g", []models.Descriptor{{1}})

	out := s.Flush(context.Background())
	if out.Success {
		t.Fatal("expected failure outcome")
	}
	if p.saves != 1 || len(p.saved) != 1 {
		t.Errorf("expected one save of one record, got %d saves of %d", p.saves, len(p.saved))
	}
	if s.Len() != 1 {
		t.Error("flush must not clear memory")
	}
}

func TestReplaceMergesDuplicates(t *testing.T) {
	s := NewStore(&stubPersister{})
	s.Replace([]models.FaceRecord{
		{Label: "a", FullName: "Old", Group: "g", Descriptors: []models.Descriptor{{1}}},
		{Label: "b", Group: "g"},
		{Label: "a", FullName: "New", Group: "g", Descriptors: []models.Descriptor{{2}}},
	})

	if s.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", s.Len())
	}
	r, _ := s.Find("a", "g")
	if r.FullName != "New" || len(r.Descriptors) != 2 {
		t.Errorf("unexpected merged record %+v", r)
	}
	if recs := s.Records(); recs[0].Label != "a" || recs[1].Label != "b" {
		t.Errorf("order not preserved: %+v", recs)
	}
}
