package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "idscan",
		Name:      "scans_total",
		Help:      "Total number of completed scans",
	}, []string{"flow"})

	FacesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "idscan",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected",
	}, []string{"flow"})

	FacesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "idscan",
		Name:      "faces_matched_total",
		Help:      "Match results by outcome",
	}, []string{"flow", "result"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "idscan",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	MatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "idscan",
		Name:      "match_duration_seconds",
		Help:      "Duration of one probe set against the gallery",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	GalleryLoadAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "idscan",
		Name:      "gallery_load_attempts_total",
		Help:      "Gallery load attempts by backend and result",
	}, []string{"backend", "result"})

	PersistenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "idscan",
		Name:      "persistence_duration_seconds",
		Help:      "Duration of gallery backend reads and writes",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "op"})

	GalleryRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "idscan",
		Name:      "gallery_records",
		Help:      "Number of face records held in memory",
	})

	GalleryDescriptors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "idscan",
		Name:      "gallery_descriptors",
		Help:      "Number of descriptors held in memory",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "idscan",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "idscan",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	CaptureLoops = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "idscan",
		Name:      "capture_loops",
		Help:      "Number of running capture loops",
	})

	FramesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "idscan",
		Name:      "frames_captured_total",
		Help:      "Frames grabbed from capture sources",
	}, []string{"source", "result"})
)
