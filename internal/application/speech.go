package application

import (
	"context"
	"fmt"

	"voicetype/internal/domain"
)

type SpeechToText interface {
	Transcribe(ctx context.Context, audio *domain.AudioBuffer) (string, error)
}

// NoopSTT rejects every request. Used when no service is configured.
type NoopSTT struct{}

func (n *NoopSTT) Transcribe(_ context.Context, _ *domain.AudioBuffer) (string, error) {
	return "", fmt.Errorf("speech-to-text not configured: %w", domain.ErrUnreachable)
}
