package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/idscan/internal/auth"
	"github.com/your-org/idscan/pkg/dto"
)

type AuthHandler struct {
	sessions *auth.Sessions
}

func NewAuthHandler(sessions *auth.Sessions) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	token, expires, err := h.sessions.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password."})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.sessions.SetCookie(c, token)
	c.JSON(http.StatusOK, dto.LoginResponse{
		Status:    "logged in",
		ExpiresAt: expires.UTC().Format(time.RFC3339),
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.ClearCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// Session reports whether the caller holds a valid admin session.
func (h *AuthHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"admin": h.sessions.IsAdmin(c)})
}
