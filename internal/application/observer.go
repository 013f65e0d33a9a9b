package application

import (
	"time"

	"voicetype/internal/domain"
)

// Observer is told about finished pipeline stages, for metrics.
type Observer interface {
	StateChanged(state domain.RecordingState)
	SegmentFinished(outcome string, audio time.Duration)
	TranscriptionFinished(elapsed time.Duration, err error)
	PendingChanged(pending int)
}

type NoopObserver struct{}

func (NoopObserver) StateChanged(domain.RecordingState)         {}
func (NoopObserver) SegmentFinished(string, time.Duration)      {}
func (NoopObserver) TranscriptionFinished(time.Duration, error) {}
func (NoopObserver) PendingChanged(int)                         {}

const (
	OutcomeDelivered = "delivered"
	OutcomeNoSpeech  = "no_speech"
	OutcomeFailed    = "failed"
	OutcomeTooShort  = "too_short"
	OutcomeDropped   = "dropped"
)
