package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/idscan/internal/gallery"
)

// ReadyCheck probes one dependency.
type ReadyCheck func(ctx context.Context) error

type SystemHandler struct {
	store  *gallery.Store
	checks map[string]ReadyCheck
}

func NewSystemHandler(store *gallery.Store, checks map[string]ReadyCheck) *SystemHandler {
	return &SystemHandler{store: store, checks: checks}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := map[string]string{}
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":  map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks":  checks,
		"gallery": gin.H{"records": h.store.Len(), "descriptors": h.store.DescriptorCount()},
	})
}
