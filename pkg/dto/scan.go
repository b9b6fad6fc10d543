package dto

import "github.com/your-org/idscan/internal/models"

// DescriptorsRequest carries precomputed descriptors instead of an image.
type DescriptorsRequest struct {
	Source      string              `json:"source"`
	Descriptors []models.Descriptor `json:"descriptors"`
}

type ScanResponse struct {
	Timestamp int64                `json:"timestamp"`
	Results   []models.MatchResult `json:"results"`
	Total     int                  `json:"total"`
}

func NewScanResponse(e models.ScanHistoryEntry) ScanResponse {
	results := e.Results
	if results == nil {
		results = []models.MatchResult{}
	}
	return ScanResponse{Timestamp: e.Timestamp, Results: results, Total: len(results)}
}

type MatchResponse struct {
	Results []models.MatchResult `json:"results"`
	Total   int                  `json:"total"`
}

type HistoryResponse struct {
	History []models.ScanHistoryEntry `json:"history"`
	Total   int                       `json:"total"`
}

func NewMatchResponse(results []models.MatchResult) MatchResponse {
	if results == nil {
		results = []models.MatchResult{}
	}
	return MatchResponse{Results: results, Total: len(results)}
}
