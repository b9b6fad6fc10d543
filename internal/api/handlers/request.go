package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/idscan/internal/matcher"
	"github.com/your-org/idscan/internal/scan"
	"github.com/your-org/idscan/internal/vision"
)

const maxUploadBytes = 20 << 20

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// readUpload returns the bytes of the named multipart file.
func readUpload(c *gin.Context, field string) ([]byte, error) {
	file, _, err := c.Request.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s file required", field)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s failed", field)
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", field, maxUploadBytes)
	}
	return data, nil
}

// writeError maps scan and match errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var verr *scan.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
	case errors.Is(err, matcher.ErrEmptyGallery):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, scan.ErrNoDetector):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vision pipeline not initialized"})
	case errors.Is(err, vision.ErrDecode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported or corrupt image"})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
