package application

import "voicetype/internal/domain"

// Feedback receives state-transition cues. Implementations must not block
// and must swallow their own failures.
type Feedback interface {
	Notify(event domain.FeedbackEvent)
}

type NoopFeedback struct{}

func (n *NoopFeedback) Notify(_ domain.FeedbackEvent) {}
