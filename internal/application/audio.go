package application

import "voicetype/internal/domain"

// AudioCapture records one segment at a time.
type AudioCapture interface {
	Start() error
	// Stop returns domain.ErrRecordingTooShort when the segment was shorter
	// than the configured minimum.
	Stop() (*domain.AudioBuffer, error)
}
