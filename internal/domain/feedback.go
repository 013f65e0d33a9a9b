package domain

type FeedbackKind string

const (
	FeedbackRecordingStarted FeedbackKind = "recording_started"
	FeedbackRecordingStopped FeedbackKind = "recording_stopped"
	FeedbackTooShort         FeedbackKind = "too_short"
	FeedbackDelivered        FeedbackKind = "delivered"
	FeedbackNoSpeech         FeedbackKind = "no_speech"
	FeedbackFailed           FeedbackKind = "failed"
	FeedbackDropped          FeedbackKind = "dropped"
)

type FeedbackEvent struct {
	Kind    FeedbackKind
	Message string
}
