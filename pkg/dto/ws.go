package dto

import "github.com/your-org/idscan/internal/models"

// WebSocket event types.
const (
	WSScanCompleted = "scan_completed"
	WSGallerySaved  = "gallery_saved"
)

// GallerySavedEvent tells clients the durable gallery changed.
type GallerySavedEvent struct {
	Backend string `json:"backend"`
	Records int    `json:"records"`
	SavedAt string `json:"saved_at"`
}

// WSEvent is a WebSocket message for real-time scan delivery.
type WSEvent struct {
	Type    string             `json:"type"` // scan_completed, gallery_saved
	Source  string             `json:"source,omitempty"`
	Scan    *models.ScanEvent  `json:"scan,omitempty"`
	Gallery *GallerySavedEvent `json:"gallery,omitempty"`
}
