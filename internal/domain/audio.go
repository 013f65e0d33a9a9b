package domain

import "time"

const DefaultSampleRate = 16000

// AudioBuffer holds signed 16-bit mono PCM. Once handed to the
// transcription pipeline it is never written again.
type AudioBuffer struct {
	Samples    []int16
	SampleRate int
}

func (b *AudioBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Segment is one press-to-release recording on its way to delivery.
type Segment struct {
	ID        string
	Audio     *AudioBuffer
	StoppedAt time.Time
}
