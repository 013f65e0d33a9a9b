//go:build portaudio
// +build portaudio

package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudio opens streams on the default input device.
type PortAudio struct{}

func NewPortAudio() (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	return &PortAudio{}, nil
}

func (p *PortAudio) Open(sampleRate, framesPerBuffer int, onFrames func([]int16), onOverflow func()) (Stream, error) {
	inputChannels := 1
	outputChannels := 0

	callback := func(in []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		if flags&portaudio.InputOverflow != 0 {
			onOverflow()
		}
		onFrames(in)
	}

	stream, err := portaudio.OpenDefaultStream(
		inputChannels,
		outputChannels,
		float64(sampleRate),
		framesPerBuffer,
		callback,
	)
	if err != nil {
		return nil, fmt.Errorf("opening default stream: %w", err)
	}
	return stream, nil
}

func (p *PortAudio) Close() error {
	return portaudio.Terminate()
}
