package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/idscan/internal/api/handlers"
	"github.com/your-org/idscan/internal/api/ws"
	"github.com/your-org/idscan/internal/auth"
	"github.com/your-org/idscan/internal/gallery"
	"github.com/your-org/idscan/internal/history"
	"github.com/your-org/idscan/internal/scan"
)

type RouterConfig struct {
	APIKey   string
	Sessions *auth.Sessions
	Store    *gallery.Store
	Scans    *scan.Service
	History  *history.Log
	Hub      *ws.Hub
	// Backend names the gallery backend in flush notices.
	Backend string
	// OnSaved is called after a successful flush.
	OnSaved handlers.SavedFunc
	// Frames captures camera frames for POST /v1/scans/capture; may be nil.
	Frames        handlers.FrameSource
	CaptureSource string
	// Checks are probed by /readyz.
	Checks map[string]handlers.ReadyCheck
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Store, cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Admin session
	authH := handlers.NewAuthHandler(cfg.Sessions)
	v1.POST("/auth/login", authH.Login)
	v1.POST("/auth/logout", authH.Logout)
	v1.GET("/auth/session", authH.Session)

	// Gallery lookups
	galleryH := handlers.NewGalleryHandler(cfg.Store, cfg.Scans, cfg.Backend, cfg.OnSaved)
	v1.GET("/groups", galleryH.Groups)
	v1.GET("/groups/:group/labels", galleryH.Labels)
	v1.GET("/groups/:group/labels/:label", galleryH.Profile)

	// Live scans & history
	scanH := handlers.NewScanHandler(cfg.Scans, cfg.History)
	scanH.Frames = cfg.Frames
	scanH.DefaultSource = cfg.CaptureSource
	v1.POST("/scans", scanH.Scan)
	v1.POST("/scans/capture", scanH.Capture)
	v1.GET("/scans/latest", scanH.Latest)

	historyH := handlers.NewHistoryHandler(cfg.History)
	v1.GET("/history", historyH.List)
	v1.DELETE("/history", historyH.Clear)

	// Administration (session cookie)
	admin := v1.Group("/admin")
	admin.Use(cfg.Sessions.RequireAdmin())
	admin.POST("/faces", galleryH.Upsert)
	admin.POST("/match", scanH.Match)
	admin.GET("/gallery", galleryH.List)
	admin.POST("/gallery/flush", galleryH.Flush)
	admin.POST("/gallery/reload", galleryH.Reload)
	admin.POST("/gallery/import", galleryH.Import)
	admin.GET("/gallery/export", galleryH.Export)

	return r
}
