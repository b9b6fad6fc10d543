// Package gallery holds the in-memory set of labeled face descriptors.
package gallery

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/your-org/idscan/internal/models"
	"github.com/your-org/idscan/internal/observability"
	"github.com/your-org/idscan/internal/storage"
)

// Persister is the durable side of the gallery.
type Persister interface {
	Load(ctx context.Context) ([]models.FaceRecord, storage.Outcome)
	Save(ctx context.Context, records []models.FaceRecord) storage.Outcome
}

// Store owns the gallery for the life of the process.
// Reads and mutations are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []models.FaceRecord
	gw      Persister
}

func NewStore(gw Persister) *Store {
	return &Store{gw: gw}
}

// Load replaces the gallery with the durable copy. On failure the gallery is empty.
func (s *Store) Load(ctx context.Context) storage.Outcome {
	records, out := s.gw.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !out.Success {
		s.records = nil
	} else {
		s.records = merge(records)
	}
	s.updateGauges()
	return out
}

// Flush writes the current gallery to durable storage. Memory is never cleared.
func (s *Store) Flush(ctx context.Context) storage.Outcome {
	return s.gw.Save(ctx, s.Records())
}

// Upsert appends descriptors to the record for (label, group) and refreshes its
// full name, or creates the record. It reports whether a record was created.
func (s *Store) Upsert(label, fullName, group string, descriptors []models.Descriptor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := s.upsertLocked(label, fullName, group, descriptors)
	s.updateGauges()
	return created
}

func (s *Store) upsertLocked(label, fullName, group string, descriptors []models.Descriptor) bool {
	copied := make([]models.Descriptor, len(descriptors))
	for i, d := range descriptors {
		copied[i] = append(models.Descriptor(nil), d...)
	}

	for i := range s.records {
		r := &s.records[i]
		if r.Label == label && r.Group == group {
			r.Descriptors = append(r.Descriptors, copied...)
			r.FullName = fullName
			return false
		}
	}
	s.records = append(s.records, models.FaceRecord{
		Label:       label,
		FullName:    fullName,
		Group:       group,
		Descriptors: copied,
	})
	return true
}

// Replace swaps in a whole gallery, as a bulk import does.
// Repeated (label, group) pairs are merged in order.
func (s *Store) Replace(records []models.FaceRecord) {
	merged := merge(records)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = merged
	s.updateGauges()
}

// Records returns a deep copy of the gallery in insertion order.
func (s *Store) Records() []models.FaceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FaceRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Find returns a copy of the record for (label, group).
func (s *Store) Find(label, group string) (models.FaceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.Label == label && r.Group == group {
			return r.Clone(), true
		}
	}
	return models.FaceRecord{}, false
}

// Groups returns the distinct groups, sorted.
func (s *Store) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, r := range s.records {
		seen[r.Group] = struct{}{}
	}
	return sortedKeys(seen)
}

// Labels returns the distinct labels within group, sorted.
func (s *Store) Labels(group string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, r := range s.records {
		if r.Group == group {
			seen[r.Label] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// SearchGroups filters Groups by a case-insensitive substring.
func (s *Store) SearchGroups(term string) []string {
	return filter(s.Groups(), term)
}

// SearchLabels filters Labels(group) by a case-insensitive substring.
func (s *Store) SearchLabels(group, term string) []string {
	return filter(s.Labels(group), term)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// DescriptorCount is the number of stored descriptors across all records.
func (s *Store) DescriptorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return descriptorCount(s.records)
}

func (s *Store) updateGauges() {
	observability.GalleryRecords.Set(float64(len(s.records)))
	observability.GalleryDescriptors.Set(float64(descriptorCount(s.records)))
}

func descriptorCount(records []models.FaceRecord) int {
	n := 0
	for _, r := range records {
		n += len(r.Descriptors)
	}
	return n
}

func merge(records []models.FaceRecord) []models.FaceRecord {
	tmp := &Store{}
	for _, r := range records {
		tmp.upsertLocked(r.Label, r.FullName, r.Group, r.Descriptors)
	}
	return tmp.records
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func filter(values []string, term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			out = append(out, v)
		}
	}
	return out
}
