package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/idscan/internal/history"
	"github.com/your-org/idscan/pkg/dto"
)

type HistoryHandler struct {
	log *history.Log
}

func NewHistoryHandler(log *history.Log) *HistoryHandler {
	return &HistoryHandler{log: log}
}

func (h *HistoryHandler) List(c *gin.Context) {
	entries, err := h.log.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.HistoryResponse{History: entries, Total: len(entries)})
}

func (h *HistoryHandler) Clear(c *gin.Context) {
	if err := h.log.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
