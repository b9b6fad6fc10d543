package models

// NoDistance is the Distance of a result whose probe could not be compared
// with any stored descriptor (every stored vector had a different length).
const NoDistance = -1.0

// MatchResult is the outcome of comparing one probe against the gallery.
// Distance is rounded to two decimals, or NoDistance.
type MatchResult struct {
	Label    string  `json:"label"`
	FullName string  `json:"fullName,omitempty"`
	Group    string  `json:"group,omitempty"`
	Distance float64 `json:"distance"`
}

// Compared reports whether Distance holds a real measurement.
func (r MatchResult) Compared() bool {
	return r.Distance >= 0
}

// ScanHistoryEntry is one completed capture. Timestamp is in Unix milliseconds.
type ScanHistoryEntry struct {
	Timestamp int64         `json:"timestamp"`
	Results   []MatchResult `json:"results"`
}

// ScanEvent is published on the event bus after a scan completes.
type ScanEvent struct {
	ID     string           `json:"id"`
	Source string           `json:"source"`
	Entry  ScanHistoryEntry `json:"entry"`
}
