package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"voicetype/internal/domain"
)

type fakeStream struct {
	started bool
	stopped bool
	closed  bool
	stopErr error
}

func (s *fakeStream) Start() error { s.started = true; return nil }
func (s *fakeStream) Stop() error  { s.stopped = true; return s.stopErr }
func (s *fakeStream) Close() error { s.closed = true; return nil }

type fakeOpener struct {
	openErr    error
	stopErr    error
	opens      int
	stream     *fakeStream
	onFrames   func([]int16)
	onOverflow func()
}

func (o *fakeOpener) Open(_, _ int, onFrames func([]int16), onOverflow func()) (Stream, error) {
	o.opens++
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.stream = &fakeStream{stopErr: o.stopErr}
	o.onFrames = onFrames
	o.onOverflow = onOverflow
	return o.stream, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

const framesPerBuffer = 1024

func newTestCapture(opener *fakeOpener, clock *fakeClock) *Capture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewCapture(opener, CaptureConfig{
		SampleRate:      16000,
		FramesPerBuffer: framesPerBuffer,
		MinDuration:     300 * time.Millisecond,
	}, logger)
	c.now = clock.now
	return c
}

// speak simulates the driver delivering d worth of audio.
func speak(opener *fakeOpener, clock *fakeClock, d time.Duration) {
	total := int(d.Seconds() * 16000)
	for sent := 0; sent < total; sent += framesPerBuffer {
		frames := make([]int16, framesPerBuffer)
		for i := range frames {
			frames[i] = int16(sent + i)
		}
		opener.onFrames(frames)
	}
	clock.advance(d)
}

func TestCapture_SampleCountMatchesDuration(t *testing.T) {
	opener := &fakeOpener{}
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := newTestCapture(opener, clock)

	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	speak(opener, clock, 500*time.Millisecond)

	buf, err := c.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := 8000
	if diff := len(buf.Samples) - want; diff < -framesPerBuffer || diff > framesPerBuffer {
		t.Errorf("samples: got %d, want %d ± %d", len(buf.Samples), want, framesPerBuffer)
	}
	if buf.SampleRate != 16000 {
		t.Errorf("sample rate: got %d, want 16000", buf.SampleRate)
	}
	for i := 1; i < len(buf.Samples); i++ {
		if buf.Samples[i] != buf.Samples[i-1]+1 {
			t.Fatalf("samples out of order at %d", i)
		}
	}
	if !opener.stream.stopped || !opener.stream.closed {
		t.Error("expected stream to be stopped and closed")
	}
}

func TestCapture_TooShortIsDiscarded(t *testing.T) {
	opener := &fakeOpener{}
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := newTestCapture(opener, clock)

	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	speak(opener, clock, 100*time.Millisecond)

	buf, err := c.Stop()
	if !errors.Is(err, domain.ErrRecordingTooShort) {
		t.Fatalf("error: got %v, want ErrRecordingTooShort", err)
	}
	if buf != nil {
		t.Errorf("expected nil buffer, got %d samples", len(buf.Samples))
	}
}

func TestCapture_NoSamplesIsTooShort(t *testing.T) {
	opener := &fakeOpener{}
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := newTestCapture(opener, clock)

	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.advance(time.Second)

	if _, err := c.Stop(); !errors.Is(err, domain.ErrRecordingTooShort) {
		t.Fatalf("error: got %v, want ErrRecordingTooShort", err)
	}
}

func TestCapture_OpenFailureIsDeviceBusy(t *testing.T) {
	opener := &fakeOpener{openErr: errors.New("Device unavailable")}
	c := newTestCapture(opener, &fakeClock{})

	err := c.Start()
	if !errors.Is(err, domain.ErrDeviceBusy) {
		t.Fatalf("error: got %v, want ErrDeviceBusy", err)
	}

	if _, err := c.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("stop after failed start: got %v, want ErrNotRecording", err)
	}
}

func TestCapture_DriverErrorDiscardsBuffer(t *testing.T) {
	opener := &fakeOpener{stopErr: errors.New("stream lost")}
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := newTestCapture(opener, clock)

	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	speak(opener, clock, time.Second)

	buf, err := c.Stop()
	if !errors.Is(err, domain.ErrCaptureFailed) {
		t.Fatalf("error: got %v, want ErrCaptureFailed", err)
	}
	if buf != nil {
		t.Error("expected nil buffer on driver error")
	}
}

func TestCapture_StartTwice(t *testing.T) {
	opener := &fakeOpener{}
	c := newTestCapture(opener, &fakeClock{})

	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second start: got %v, want ErrAlreadyRecording", err)
	}
	if opener.opens != 1 {
		t.Errorf("opens: got %d, want 1", opener.opens)
	}
}

func TestCapture_SegmentsDoNotLeak(t *testing.T) {
	opener := &fakeOpener{}
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := newTestCapture(opener, clock)

	c.Start()
	speak(opener, clock, time.Second)
	first, err := c.Stop()
	if err != nil {
		t.Fatalf("first stop: %v", err)
	}

	late := opener.onFrames
	late(make([]int16, framesPerBuffer))

	c.Start()
	speak(opener, clock, 500*time.Millisecond)
	second, err := c.Stop()
	if err != nil {
		t.Fatalf("second stop: %v", err)
	}

	if len(second.Samples) >= len(first.Samples) {
		t.Errorf("second segment carries old samples: %d >= %d", len(second.Samples), len(first.Samples))
	}
}

func TestWAV_RoundTrip(t *testing.T) {
	in := &domain.AudioBuffer{SampleRate: 16000, Samples: make([]int16, 8000)}
	for i := range in.Samples {
		in.Samples[i] = int16(i%200 - 100)
	}

	data, err := EncodeWAV(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Fatalf("missing RIFF/WAVE header: %q", data[:12])
	}

	out, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SampleRate != 16000 || len(out.Samples) != len(in.Samples) {
		t.Fatalf("decoded %d samples at %d Hz", len(out.Samples), out.SampleRate)
	}
	if out.Samples[150] != in.Samples[150] {
		t.Errorf("sample 150: got %d, want %d", out.Samples[150], in.Samples[150])
	}
}

func pcm8WAV(data []byte) []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	b.WriteString("RIFF")
	binary.Write(&b, le, uint32(36+len(data)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, le, uint32(16))
	binary.Write(&b, le, uint16(1)) // PCM
	binary.Write(&b, le, uint16(1)) // mono
	binary.Write(&b, le, uint32(8000))
	binary.Write(&b, le, uint32(8000))
	binary.Write(&b, le, uint16(1))
	binary.Write(&b, le, uint16(8))
	b.WriteString("data")
	binary.Write(&b, le, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

func TestWAV_Decode8BitIsUnsigned(t *testing.T) {
	out, err := DecodeWAV(bytes.NewReader(pcm8WAV([]byte{128, 255, 0, 128})))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := []int16{0, 127 << 8, -128 << 8, 0}
	if len(out.Samples) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(out.Samples), len(want))
	}
	for i := range want {
		if out.Samples[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, out.Samples[i], want[i])
		}
	}
	if out.SampleRate != 8000 {
		t.Errorf("sample rate: got %d", out.SampleRate)
	}
}
