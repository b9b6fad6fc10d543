package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/idscan/internal/observability"
)

// FrameGrabber captures one encoded frame from a source.
type FrameGrabber interface {
	CaptureFrame(ctx context.Context, source string) ([]byte, error)
}

// FrameHandler receives every captured frame.
type FrameHandler func(ctx context.Context, source string, frame []byte) error

// Resolver turns a source into something ffmpeg can open.
type Resolver func(ctx context.Context, source string) (string, error)

// Scheduler runs one capture loop per source.
type Scheduler struct {
	grabber  FrameGrabber
	interval time.Duration
	// MaxRetries is the number of consecutive failed grabs tolerated
	// (with 2s, 4s, 8s... backoff) before a loop gives up.
	MaxRetries int
	// Resolve is used for YouTube sources; nil means ResolveYouTubeURL.
	Resolve Resolver
	backoff func(attempt int) time.Duration

	mu    sync.Mutex
	loops map[string]context.CancelFunc
	wg    sync.WaitGroup
}

func NewScheduler(grabber FrameGrabber, interval time.Duration) *Scheduler {
	return &Scheduler{
		grabber:    grabber,
		interval:   interval,
		MaxRetries: 3,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		},
		loops: make(map[string]context.CancelFunc),
	}
}

// Start begins capturing from source every interval until ctx is done,
// Stop is called, or the retries run out.
func (s *Scheduler) Start(ctx context.Context, source string, handler FrameHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.loops[source]; exists {
		return fmt.Errorf("capture %s already running", source)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.loops[source] = cancel
	observability.CaptureLoops.Inc()
	s.wg.Add(1)

	slog.Info("starting capture loop", "source", source, "interval", s.interval)
	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.loops, source)
			s.mu.Unlock()
			observability.CaptureLoops.Dec()
			s.wg.Done()
			slog.Info("capture loop stopped", "source", source)
		}()
		s.run(loopCtx, source, handler)
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context, source string, handler FrameHandler) {
	target, err := s.resolve(ctx, source)
	if err != nil {
		slog.Error("resolve capture source", "source", source, "error", err)
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	failures := 0
	for {
		frame, err := s.grabber.CaptureFrame(ctx, target)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			observability.FramesCaptured.WithLabelValues(source, "error").Inc()
			failures++
			if failures > s.MaxRetries {
				slog.Error("capture failed after retries", "source", source, "attempts", failures, "error", err)
				return
			}
			delay := s.backoff(failures)
			slog.Warn("retrying capture", "source", source, "attempt", failures, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			// Resolved YouTube URLs expire.
			if IsYouTube(source) {
				if resolved, err := s.resolve(ctx, source); err == nil {
					target = resolved
				} else {
					slog.Warn("re-resolve capture source", "source", source, "error", err)
				}
			}
			continue
		}

		failures = 0
		observability.FramesCaptured.WithLabelValues(source, "ok").Inc()
		if err := handler(ctx, source, frame); err != nil {
			slog.Warn("handle captured frame", "source", source, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) resolve(ctx context.Context, source string) (string, error) {
	if !IsYouTube(source) {
		return source, nil
	}
	resolve := s.Resolve
	if resolve == nil {
		resolve = ResolveYouTubeURL
	}
	return resolve(ctx, source)
}

// Stop ends the loop for source. Stopping an idle source is a no-op.
func (s *Scheduler) Stop(source string) {
	s.mu.Lock()
	cancel, ok := s.loops[source]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopAll ends every loop and waits for them to exit.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	for _, cancel := range s.loops {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// ActiveCount returns the number of running loops.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loops)
}
