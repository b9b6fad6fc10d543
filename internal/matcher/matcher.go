// Package matcher finds the nearest gallery identity for each probe descriptor.
package matcher

import (
	"errors"
	"math"
	"time"

	"github.com/your-org/idscan/internal/models"
	"github.com/your-org/idscan/internal/observability"
)

// Unknown is the label reported when no record is within the threshold.
const Unknown = "unknown"

// ErrEmptyGallery is returned when there is nothing to match against.
var ErrEmptyGallery = errors.New("no known faces to match against")

// MatchAll returns one result per probe, in probe order. The record owning the
// single closest descriptor wins; on an exact tie the earlier record wins.
// A best distance above threshold yields Unknown with the distance still set.
// Descriptors whose length differs from the probe are not compared; a probe
// with nothing comparable yields Unknown with models.NoDistance.
func MatchAll(probes []models.Descriptor, records []models.FaceRecord, threshold float64) ([]models.MatchResult, error) {
	if len(records) == 0 {
		return nil, ErrEmptyGallery
	}

	start := time.Now()
	defer func() {
		observability.MatchDuration.Observe(time.Since(start).Seconds())
	}()

	results := make([]models.MatchResult, 0, len(probes))
	for _, probe := range probes {
		results = append(results, matchOne(probe, records, threshold))
	}
	return results, nil
}

func matchOne(probe models.Descriptor, records []models.FaceRecord, threshold float64) models.MatchResult {
	best := -1
	bestDist := math.Inf(1)

	for i, r := range records {
		for _, d := range r.Descriptors {
			if len(d) != len(probe) {
				continue
			}
			if dist := Euclidean(probe, d); dist < bestDist {
				bestDist = dist
				best = i
			}
		}
	}

	if best < 0 {
		return models.MatchResult{Label: Unknown, Distance: models.NoDistance}
	}
	if bestDist > threshold {
		return models.MatchResult{Label: Unknown, Distance: round2(bestDist)}
	}
	r := records[best]
	return models.MatchResult{
		Label:    r.Label,
		FullName: r.FullName,
		Group:    r.Group,
		Distance: round2(bestDist),
	}
}

// Euclidean returns the L2 distance between two equal-length vectors.
func Euclidean(a, b models.Descriptor) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
