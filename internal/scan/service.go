// Package scan runs the capture pipeline: detect, match, record, notify.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/idscan/internal/gallery"
	"github.com/your-org/idscan/internal/history"
	"github.com/your-org/idscan/internal/matcher"
	"github.com/your-org/idscan/internal/models"
	"github.com/your-org/idscan/internal/observability"
	"github.com/your-org/idscan/internal/vision"
)

// ErrNoDetector is returned when no face detector is loaded.
var ErrNoDetector = errors.New("face detector is not available")

// Notifier hands completed scans to presentation (websocket, event bus).
type Notifier interface {
	NotifyScan(ctx context.Context, evt models.ScanEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, evt models.ScanEvent) error

func (f NotifierFunc) NotifyScan(ctx context.Context, evt models.ScanEvent) error {
	return f(ctx, evt)
}

type Options struct {
	// ScanThreshold is used by the live scan flow.
	ScanThreshold float64
	// AdminThreshold is used by administrative matching.
	AdminThreshold float64
}

// Service ties the detector, gallery and history together.
type Service struct {
	detector vision.Detector
	store    *gallery.Store
	history  *history.Log
	notifier Notifier
	opts     Options
	now      func() time.Time
}

// NewService creates a scan service. detector and notifier may be nil.
func NewService(detector vision.Detector, store *gallery.Store, log *history.Log, notifier Notifier, opts Options) *Service {
	return &Service{
		detector: detector,
		store:    store,
		history:  log,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
	}
}

// HasDetector reports whether images can be processed.
func (s *Service) HasDetector() bool {
	return s.detector != nil
}

// Detect runs the detector on an encoded image.
func (s *Service) Detect(ctx context.Context, img []byte) ([]models.Detection, error) {
	if s.detector == nil {
		return nil, ErrNoDetector
	}
	dets, err := s.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	return dets, nil
}

// CanScan returns matcher.ErrEmptyGallery when there is nothing to match against.
func (s *Service) CanScan() error {
	if s.store.Len() == 0 {
		return matcher.ErrEmptyGallery
	}
	return nil
}

// ScanImage is the live scan flow for one captured image.
func (s *Service) ScanImage(ctx context.Context, source string, img []byte) (models.ScanHistoryEntry, error) {
	if err := s.CanScan(); err != nil {
		return models.ScanHistoryEntry{}, err
	}
	dets, err := s.Detect(ctx, img)
	if err != nil {
		return models.ScanHistoryEntry{}, err
	}
	return s.ScanDescriptors(ctx, source, models.Descriptors(dets))
}

// ScanDescriptors matches probes at the scan threshold. When at least one
// face was found the entry is appended to history and announced.
func (s *Service) ScanDescriptors(ctx context.Context, source string, probes []models.Descriptor) (models.ScanHistoryEntry, error) {
	results, err := matcher.MatchAll(probes, s.store.Records(), s.opts.ScanThreshold)
	if err != nil {
		return models.ScanHistoryEntry{}, err
	}

	entry := models.ScanHistoryEntry{
		Timestamp: s.now().UnixMilli(),
		Results:   results,
	}
	observability.ScansTotal.WithLabelValues("scan").Inc()
	observeResults("scan", results)

	if len(results) == 0 {
		slog.Info("scan found no faces", "source", source)
		return entry, nil
	}

	if err := s.history.Append(ctx, entry); err != nil {
		slog.Error("append scan history", "error", err)
	}

	if s.notifier != nil {
		evt := models.ScanEvent{
			ID:     uuid.NewString(),
			Source: source,
			Entry:  entry,
		}
		if err := s.notifier.NotifyScan(ctx, evt); err != nil {
			slog.Warn("notify scan", "error", err, "id", evt.ID)
		}
	}

	slog.Info("scan complete", "source", source, "faces", len(results), "matched", countMatched(results))
	return entry, nil
}

// MatchImage is the administrative match flow: no history, admin threshold.
func (s *Service) MatchImage(ctx context.Context, img []byte) ([]models.MatchResult, error) {
	if s.store.Len() == 0 {
		return nil, matcher.ErrEmptyGallery
	}
	dets, err := s.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	return s.MatchDescriptors(models.Descriptors(dets))
}

// MatchDescriptors matches probes at the admin threshold.
func (s *Service) MatchDescriptors(probes []models.Descriptor) ([]models.MatchResult, error) {
	results, err := matcher.MatchAll(probes, s.store.Records(), s.opts.AdminThreshold)
	if err != nil {
		return nil, err
	}
	observability.ScansTotal.WithLabelValues("admin").Inc()
	observeResults("admin", results)
	return results, nil
}

// EnrollRequest identifies who the submitted faces belong to.
type EnrollRequest struct {
	Label    string
	FullName string
	Group    string
}

// Validate trims the fields and checks none is empty.
func (r *EnrollRequest) Validate() error {
	r.Label = strings.TrimSpace(r.Label)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Group = strings.TrimSpace(r.Group)
	switch {
	case r.Label == "":
		return &ValidationError{Msg: "Please enter an ID number for the face."}
	case r.FullName == "":
		return &ValidationError{Msg: "Please enter a Full Name for the face."}
	case r.Group == "":
		return &ValidationError{Msg: "Please select a group for the face."}
	}
	return nil
}

// ValidationError carries a message meant for the operator.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// EnrollResult reports what an enrolment changed.
type EnrollResult struct {
	Created bool
	Faces   int
	Message string
}

// EnrollImage detects every face in img and adds them under req.
func (s *Service) EnrollImage(ctx context.Context, req EnrollRequest, img []byte) (EnrollResult, error) {
	if err := req.Validate(); err != nil {
		return EnrollResult{}, err
	}
	dets, err := s.Detect(ctx, img)
	if err != nil {
		return EnrollResult{}, err
	}
	return s.EnrollDescriptors(req, models.Descriptors(dets))
}

// EnrollDescriptors upserts descriptors under req. The gallery is not flushed.
func (s *Service) EnrollDescriptors(req EnrollRequest, descriptors []models.Descriptor) (EnrollResult, error) {
	if err := req.Validate(); err != nil {
		return EnrollResult{}, err
	}
	if len(descriptors) == 0 {
		return EnrollResult{}, &ValidationError{Msg: "No faces detected to save. Please upload an image first."}
	}

	created := s.store.Upsert(req.Label, req.FullName, req.Group, descriptors)
	res := EnrollResult{Created: created, Faces: len(descriptors)}
	if created {
		res.Message = fmt.Sprintf("Saved face for %q (%s) in group %q.", req.Label, req.FullName, req.Group)
	} else {
		res.Message = fmt.Sprintf("Added new descriptors for %q (%s) in group %q.", req.Label, req.FullName, req.Group)
	}
	slog.Info("face enrolled", "label", req.Label, "group", req.Group, "descriptors", len(descriptors), "created", created)
	return res, nil
}

func observeResults(flow string, results []models.MatchResult) {
	observability.FacesDetected.WithLabelValues(flow).Add(float64(len(results)))
	for _, r := range results {
		outcome := "matched"
		if r.Label == matcher.Unknown {
			outcome = "unknown"
		}
		observability.FacesMatched.WithLabelValues(flow, outcome).Inc()
	}
}

func countMatched(results []models.MatchResult) int {
	n := 0
	for _, r := range results {
		if r.Label != matcher.Unknown {
			n++
		}
	}
	return n
}
