package domain

type RecordingState int32

const (
	StateIdle RecordingState = iota
	StateRecording
	StateTranscribing
)

func (s RecordingState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	default:
		return "unknown"
	}
}
