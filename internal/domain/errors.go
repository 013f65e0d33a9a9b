package domain

import "errors"

var (
	ErrDeviceUnavailable = errors.New("no input device with the trigger key")
	ErrDeviceBusy        = errors.New("audio device busy")
	ErrRecordingTooShort = errors.New("recording too short")
	ErrCaptureFailed     = errors.New("audio capture failed")
	ErrUnreachable       = errors.New("transcription service unreachable")
	ErrTimeout           = errors.New("transcription request timed out")
	ErrBadResponse       = errors.New("bad response from transcription service")
	ErrNoToolAvailable   = errors.New("no typing or clipboard tool available")
	ErrUnsupported       = errors.New("capability not available")
)
