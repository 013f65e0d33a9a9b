//go:build !portaudio
// +build !portaudio

package audio

import "fmt"

// PortAudio stub when portaudio is not available
type PortAudio struct{}

func NewPortAudio() (*PortAudio, error) {
	return nil, fmt.Errorf("microphone not available: rebuild with -tags portaudio")
}

func (p *PortAudio) Open(_, _ int, _ func([]int16), _ func()) (Stream, error) {
	return nil, fmt.Errorf("microphone not available")
}

func (p *PortAudio) Close() error {
	return nil
}
