package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/idscan/internal/history"
	"github.com/your-org/idscan/internal/scan"
	"github.com/your-org/idscan/pkg/dto"
)

const (
	// uploadSource names scans submitted over HTTP without a source.
	uploadSource   = "upload"
	captureTimeout = 15 * time.Second
)

// FrameSource grabs one encoded frame from a camera or stream.
type FrameSource interface {
	CaptureFrame(ctx context.Context, source string) ([]byte, error)
}

type ScanHandler struct {
	svc     *scan.Service
	history *history.Log

	// Frames and DefaultSource serve Capture; Frames may be nil.
	Frames        FrameSource
	DefaultSource string
}

func NewScanHandler(svc *scan.Service, log *history.Log) *ScanHandler {
	return &ScanHandler{svc: svc, history: log}
}

// Capture grabs a frame from the source query parameter (or the configured
// camera) and runs the live scan flow on it.
func (h *ScanHandler) Capture(c *gin.Context) {
	if h.Frames == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "frame capture not configured"})
		return
	}
	if err := h.svc.CanScan(); err != nil {
		writeError(c, err)
		return
	}
	source := c.DefaultQuery("source", h.DefaultSource)

	ctx, cancel := context.WithTimeout(c.Request.Context(), captureTimeout)
	defer cancel()

	img, err := h.Frames.CaptureFrame(ctx, source)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "capture frame: " + err.Error()})
		return
	}
	entry, err := h.svc.ScanImage(c.Request.Context(), source, img)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewScanResponse(entry))
}

// Scan runs the live scan flow on an uploaded image (multipart field image,
// optional field source) or on JSON descriptors.
func (h *ScanHandler) Scan(c *gin.Context) {
	ctx := c.Request.Context()

	if isMultipart(c) {
		img, err := readUpload(c, "image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entry, err := h.svc.ScanImage(ctx, sourceOr(c.PostForm("source")), img)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewScanResponse(entry))
		return
	}

	var req dto.DescriptorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := h.svc.ScanDescriptors(ctx, sourceOr(req.Source), req.Descriptors)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewScanResponse(entry))
}

// Latest returns the most recent recorded scan.
func (h *ScanHandler) Latest(c *gin.Context) {
	entry, ok, err := h.history.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no scans recorded"})
		return
	}
	c.JSON(http.StatusOK, dto.NewScanResponse(entry))
}

// Match is the administrative match: admin threshold, nothing recorded.
func (h *ScanHandler) Match(c *gin.Context) {
	ctx := c.Request.Context()

	if isMultipart(c) {
		img, err := readUpload(c, "image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		results, err := h.svc.MatchImage(ctx, img)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewMatchResponse(results))
		return
	}

	var req dto.DescriptorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	results, err := h.svc.MatchDescriptors(req.Descriptors)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewMatchResponse(results))
}

func sourceOr(s string) string {
	if s == "" {
		return uploadSource
	}
	return s
}
