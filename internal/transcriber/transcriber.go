// Package transcriber captures voice chat while a recording runs and turns
// it into an SRT sidecar aligned to the recording clock.
package transcriber

import (
	"context"
	"log/slog"
	"time"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/storage"
	"github.com/splat-replay/splat-replay/internal/subtitle"
)

// Result is one recognized utterance.
type Result struct {
	Text string
	At   time.Time
}

// SpeechRecognizer is the speech engine port. Start begins listening and
// streams utterances until Stop or context end.
type SpeechRecognizer interface {
	Start(ctx context.Context) (<-chan Result, error)
	Stop() error
}

// Cue display bounds: short utterances still get read, long ones do not
// linger.
const (
	minCueDuration = 1500 * time.Millisecond
	maxCueDuration = 7 * time.Second
	perRuneExtra   = 80 * time.Millisecond
)

// Service follows the recording lifecycle over the event bus, accumulates
// recognized speech with recording-clock offsets (pauses excluded), and
// saves the SRT sidecar when the recording stops.
type Service struct {
	recognizer SpeechRecognizer
	repo       *storage.Repository
	events     *bus.EventBus
	logger     *slog.Logger
	now        func() time.Time

	listening   bool
	results     <-chan Result
	recStop     context.CancelFunc
	cues        []subtitle.Cue
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
}

// NewService wires the transcriber.
func NewService(recognizer SpeechRecognizer, repo *storage.Repository, events *bus.EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		recognizer: recognizer,
		repo:       repo,
		events:     events,
		logger:     logger.With(slog.String("component", "transcriber")),
		now:        time.Now,
	}
}

// Run consumes recording lifecycle events until the context ends. All state
// lives on this goroutine.
func (s *Service) Run(ctx context.Context) error {
	sub := s.events.Subscribe(
		bus.EventRecordingStarted,
		bus.EventRecordingPaused,
		bus.EventRecordingResumed,
		bus.EventRecordingStopped,
		bus.EventRecordingCancelled,
	)
	defer sub.Close()
	defer s.stopListening()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result, ok := <-s.resultChan():
			if !ok {
				s.results = nil
				continue
			}
			s.onResult(result)
		case e, ok := <-sub.C():
			if !ok {
				return nil
			}
			s.onEvent(ctx, e)
		}
	}
}

// resultChan is nil-safe: a nil channel blocks forever, which select treats
// as absent.
func (s *Service) resultChan() <-chan Result {
	return s.results
}

func (s *Service) onEvent(ctx context.Context, e bus.Event) {
	switch e.Type {
	case bus.EventRecordingStarted:
		s.startListening(ctx)
	case bus.EventRecordingPaused:
		if s.listening && s.pausedAt.IsZero() {
			s.pausedAt = s.now()
		}
	case bus.EventRecordingResumed:
		if s.listening && !s.pausedAt.IsZero() {
			s.pausedTotal += s.now().Sub(s.pausedAt)
			s.pausedAt = time.Time{}
		}
	case bus.EventRecordingStopped:
		video, _ := e.Payload["video"].(string)
		s.finish(video)
	case bus.EventRecordingCancelled:
		s.discard()
	}
}

func (s *Service) startListening(ctx context.Context) {
	if s.listening || s.recognizer == nil {
		return
	}
	recCtx, cancel := context.WithCancel(ctx)
	results, err := s.recognizer.Start(recCtx)
	if err != nil {
		cancel()
		s.logger.Error("speech recognizer start failed", slog.Any("error", err))
		return
	}
	s.listening = true
	s.results = results
	s.recStop = cancel
	s.cues = nil
	s.startedAt = s.now()
	s.pausedAt = time.Time{}
	s.pausedTotal = 0
	s.publishListening(true)
}

func (s *Service) onResult(result Result) {
	if !s.listening || result.Text == "" {
		return
	}
	// Speech during a pause belongs to no point in the video.
	if !s.pausedAt.IsZero() {
		return
	}
	at := result.At
	if at.IsZero() {
		at = s.now()
	}
	offset := at.Sub(s.startedAt) - s.pausedTotal
	if offset < 0 {
		offset = 0
	}
	s.cues = append(s.cues, subtitle.Cue{
		Index: len(s.cues) + 1,
		Start: offset,
		End:   offset + cueDuration(result.Text),
		Text:  result.Text,
	})
	s.events.Publish(bus.NewEvent(bus.EventSpeechRecognized, map[string]any{
		"text":           result.Text,
		"offset_seconds": offset.Seconds(),
	}))
}

func cueDuration(text string) time.Duration {
	d := minCueDuration + time.Duration(len([]rune(text)))*perRuneExtra
	if d > maxCueDuration {
		d = maxCueDuration
	}
	return d
}

// finish writes the accumulated cues as the recording's subtitle sidecar.
func (s *Service) finish(videoPath string) {
	cues := s.cues
	s.stopListening()
	if len(cues) == 0 || videoPath == "" {
		return
	}
	track := subtitle.Track{Cues: cues}
	if err := s.repo.SaveSubtitle(storage.KindRecorded, videoPath, track.Format()); err != nil {
		s.logger.Error("saving speech subtitle failed",
			slog.String("video", videoPath), slog.Any("error", err))
		return
	}
	s.logger.Info("speech subtitle saved",
		slog.String("video", videoPath), slog.Int("cues", len(cues)))
}

func (s *Service) discard() {
	s.stopListening()
}

func (s *Service) stopListening() {
	if !s.listening {
		return
	}
	s.listening = false
	s.cues = nil
	s.results = nil
	if s.recStop != nil {
		s.recStop()
		s.recStop = nil
	}
	if s.recognizer != nil {
		if err := s.recognizer.Stop(); err != nil {
			s.logger.Warn("speech recognizer stop failed", slog.Any("error", err))
		}
	}
	s.publishListening(false)
}

func (s *Service) publishListening(active bool) {
	s.events.Publish(bus.NewEvent(bus.EventSpeechListening, map[string]any{
		"active": active,
	}))
}
