package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voicetype/internal/domain"
)

type SessionConfig struct {
	TriggerKey domain.TriggerKey
	// MaxPending bounds segments waiting for transcription; 0 means unbounded.
	MaxPending    int
	PreviewLength int
	CloseTimeout  time.Duration
}

// Session is the hold-to-speak state machine. HandleKey must only be called
// from one goroutine (the key monitor loop); that goroutine is the only
// writer of the recording state.
type Session struct {
	capture  AudioCapture
	feedback Feedback
	observer Observer
	pipeline *pipeline
	cfg      SessionConfig
	logger   *slog.Logger

	state atomic.Int32
	now   func() time.Time
}

func NewSession(
	capture AudioCapture,
	stt SpeechToText,
	out Deliverer,
	feedback Feedback,
	observer Observer,
	cfg SessionConfig,
	logger *slog.Logger,
) *Session {
	if feedback == nil {
		feedback = &NoopFeedback{}
	}
	if observer == nil {
		observer = NoopObserver{}
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = 5 * time.Second
	}
	return &Session{
		capture:  capture,
		feedback: feedback,
		observer: observer,
		pipeline: newPipeline(stt, out, feedback, observer, cfg.MaxPending, cfg.PreviewLength, logger),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// State reports the current state. Safe for concurrent use.
func (s *Session) State() domain.RecordingState {
	st := domain.RecordingState(s.state.Load())
	if st == domain.StateTranscribing && s.pipeline.Pending() == 0 {
		return domain.StateIdle
	}
	return st
}

// Pending is the number of segments stopped but not yet delivered.
func (s *Session) Pending() int {
	return s.pipeline.Pending()
}

func (s *Session) setState(st domain.RecordingState) {
	if domain.RecordingState(s.state.Swap(int32(st))) != st {
		s.observer.StateChanged(st)
	}
}

// settle is the state to fall back to when no segment is being recorded.
func (s *Session) settle() {
	if s.pipeline.Pending() > 0 {
		s.setState(domain.StateTranscribing)
		return
	}
	s.setState(domain.StateIdle)
}

// Run feeds key events into the state machine until ctx is cancelled or the
// source fails.
func (s *Session) Run(ctx context.Context, source KeyEventSource) error {
	stop := context.AfterFunc(ctx, func() {
		source.Close()
	})
	defer stop()

	s.logger.Info("session ready", "trigger_key", s.cfg.TriggerKey.Name)

	for {
		ev, err := source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading key events: %w", err)
		}
		s.HandleKey(ev)
	}
}

func (s *Session) HandleKey(ev domain.KeyEvent) {
	if ev.Code != s.cfg.TriggerKey.Code {
		return
	}

	if domain.RecordingState(s.state.Load()) == domain.StateTranscribing && s.pipeline.Pending() == 0 {
		s.setState(domain.StateIdle)
	}

	switch ev.Action {
	case domain.KeyPress, domain.KeyRepeat:
		s.press()
	case domain.KeyRelease:
		s.release()
	}
}

func (s *Session) press() {
	if domain.RecordingState(s.state.Load()) == domain.StateRecording {
		return
	}

	if err := s.capture.Start(); err != nil {
		s.logger.Error("starting recording", "error", err)
		s.feedback.Notify(domain.FeedbackEvent{
			Kind:    domain.FeedbackFailed,
			Message: "Microphone unavailable",
		})
		s.settle()
		return
	}

	s.logger.Info("recording started", "pending", s.pipeline.Pending())
	s.feedback.Notify(domain.FeedbackEvent{Kind: domain.FeedbackRecordingStarted, Message: "Recording..."})
	s.setState(domain.StateRecording)
}

func (s *Session) release() {
	if domain.RecordingState(s.state.Load()) != domain.StateRecording {
		return
	}

	buf, err := s.capture.Stop()
	switch {
	case errors.Is(err, domain.ErrRecordingTooShort):
		s.logger.Info("recording too short, ignoring")
		s.feedback.Notify(domain.FeedbackEvent{Kind: domain.FeedbackTooShort, Message: "Recording too short"})
		s.observer.SegmentFinished(OutcomeTooShort, 0)
		s.settle()
		return
	case err != nil:
		s.logger.Error("stopping recording", "error", err)
		s.feedback.Notify(domain.FeedbackEvent{Kind: domain.FeedbackFailed, Message: "Recording failed"})
		s.observer.SegmentFinished(OutcomeFailed, 0)
		s.settle()
		return
	}

	seg := domain.Segment{
		ID:        uuid.NewString(),
		Audio:     buf,
		StoppedAt: s.now(),
	}

	s.feedback.Notify(domain.FeedbackEvent{Kind: domain.FeedbackRecordingStopped, Message: "Transcribing..."})

	if err := s.pipeline.Submit(seg); err != nil {
		s.logger.Warn("dropping recording", "segment", seg.ID, "error", err)
		s.feedback.Notify(domain.FeedbackEvent{Kind: domain.FeedbackDropped, Message: "Busy, recording dropped"})
		s.observer.SegmentFinished(OutcomeDropped, buf.Duration())
		s.settle()
		return
	}

	s.logger.Info("recording stopped",
		"segment", seg.ID,
		"samples", len(buf.Samples),
		"duration", buf.Duration(),
	)
	s.setState(domain.StateTranscribing)
}

// Close discards an unfinished recording and drains the pipeline.
func (s *Session) Close() {
	if domain.RecordingState(s.state.Load()) == domain.StateRecording {
		if _, err := s.capture.Stop(); err != nil && !errors.Is(err, domain.ErrRecordingTooShort) {
			s.logger.Warn("stopping recording on shutdown", "error", err)
		}
	}
	s.pipeline.Close(s.cfg.CloseTimeout)
	s.setState(domain.StateIdle)
}
