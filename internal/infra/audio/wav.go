package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voicetype/internal/domain"
)

// EncodeWAV renders the buffer as a 16-bit PCM RIFF/WAVE file.
func EncodeWAV(buf *domain.AudioBuffer) ([]byte, error) {
	if buf == nil {
		return nil, errors.New("encoding wav: nil buffer")
	}

	out := &writeSeeker{}
	enc := wav.NewEncoder(out, buf.SampleRate, 16, 1, 1)

	pcm := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  buf.SampleRate,
		},
		Data:           make([]int, len(buf.Samples)),
		SourceBitDepth: 16,
	}
	for i, s := range buf.Samples {
		pcm.Data[i] = int(s)
	}

	if err := enc.Write(pcm); err != nil {
		enc.Close()
		return nil, fmt.Errorf("writing samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing wav: %w", err)
	}
	return out.buf, nil
}

// DecodeWAV reads a PCM WAV stream. Multi-channel input is downmixed to mono
// and samples are rescaled to 16 bits.
func DecodeWAV(r io.ReadSeeker) (*domain.AudioBuffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("decoding wav: not a valid wav file")
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	shift := int(dec.BitDepth) - 16
	// 8-bit PCM is unsigned with silence at 128.
	offset := 0
	if dec.BitDepth == 8 {
		offset = 128
	}

	samples := make([]int16, 0, len(pcm.Data)/channels)
	for i := 0; i+channels <= len(pcm.Data); i += channels {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += pcm.Data[i+ch] - offset
		}
		v := sum / channels
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			v <<= -shift
		}
		samples = append(samples, int16(v))
	}

	return &domain.AudioBuffer{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}

func LoadWAV(path string) (*domain.AudioBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return DecodeWAV(bytes.NewReader(data))
}

// writeSeeker is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[w.pos:end], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("seek: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seek: negative position")
	}
	w.pos = int(abs)
	return abs, nil
}
