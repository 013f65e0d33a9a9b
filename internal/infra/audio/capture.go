package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"voicetype/internal/domain"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

// Stream is an open input stream whose driver calls back with frames.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// StreamOpener opens a mono int16 input stream. onFrames and onOverflow run
// on the driver's real-time thread and must return quickly.
type StreamOpener interface {
	Open(sampleRate, framesPerBuffer int, onFrames func([]int16), onOverflow func()) (Stream, error)
}

type CaptureConfig struct {
	SampleRate      int
	FramesPerBuffer int
	MinDuration     time.Duration
}

// Capture records one segment at a time from a StreamOpener.
type Capture struct {
	opener StreamOpener
	cfg    CaptureConfig
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	stream    Stream
	startedAt time.Time

	queue     chunkQueue
	recording atomic.Bool
	overflows atomic.Int64
}

func NewCapture(opener StreamOpener, cfg CaptureConfig, logger *slog.Logger) *Capture {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = domain.DefaultSampleRate
	}
	if cfg.FramesPerBuffer == 0 {
		cfg.FramesPerBuffer = 1024
	}
	return &Capture{
		opener: opener,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (c *Capture) SampleRate() int {
	return c.cfg.SampleRate
}

func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return ErrAlreadyRecording
	}

	c.queue.reset()
	c.overflows.Store(0)

	stream, err := c.opener.Open(c.cfg.SampleRate, c.cfg.FramesPerBuffer, c.onFrames, c.onOverflow)
	if err != nil {
		return fmt.Errorf("opening stream: %w: %w", domain.ErrDeviceBusy, err)
	}

	c.recording.Store(true)
	c.startedAt = c.now()

	if err := stream.Start(); err != nil {
		c.recording.Store(false)
		stream.Close()
		return fmt.Errorf("starting stream: %w: %w", domain.ErrDeviceBusy, err)
	}

	c.stream = stream
	c.logger.Debug("microphone started", "sampleRate", c.cfg.SampleRate)
	return nil
}

// Stop ends the segment and hands its samples to the caller. Segments
// shorter than MinDuration are discarded with domain.ErrRecordingTooShort.
func (c *Capture) Stop() (*domain.AudioBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return nil, ErrNotRecording
	}

	elapsed := c.now().Sub(c.startedAt)
	c.recording.Store(false)

	stopErr := c.stream.Stop()
	if err := c.stream.Close(); err != nil {
		c.logger.Warn("closing stream", "error", err)
	}
	c.stream = nil

	samples := c.queue.drain()

	if n := c.overflows.Load(); n > 0 {
		c.logger.Warn("input overflow during recording", "count", n)
	}

	if stopErr != nil {
		c.logger.Error("audio driver error", "error", stopErr)
		return nil, fmt.Errorf("stopping stream: %w: %w", domain.ErrCaptureFailed, stopErr)
	}

	if elapsed < c.cfg.MinDuration {
		c.logger.Debug("recording too short", "elapsed", elapsed, "min", c.cfg.MinDuration)
		return nil, domain.ErrRecordingTooShort
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples captured", domain.ErrRecordingTooShort)
	}

	return &domain.AudioBuffer{Samples: samples, SampleRate: c.cfg.SampleRate}, nil
}

// Record captures a fixed-length segment.
func (c *Capture) Record(ctx context.Context, d time.Duration) (*domain.AudioBuffer, error) {
	if err := c.Start(); err != nil {
		return nil, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.Stop()
		return nil, ctx.Err()
	case <-timer.C:
	}

	return c.Stop()
}

func (c *Capture) onFrames(frames []int16) {
	if !c.recording.Load() {
		return
	}
	c.queue.push(frames)
}

func (c *Capture) onOverflow() {
	c.overflows.Add(1)
}

// chunkQueue is written by the driver callback and drained by Stop. Pushes
// never wait on the consumer beyond a short critical section.
type chunkQueue struct {
	mu      sync.Mutex
	chunks  [][]int16
	samples int
}

func (q *chunkQueue) push(frames []int16) {
	chunk := make([]int16, len(frames))
	copy(chunk, frames)

	q.mu.Lock()
	q.chunks = append(q.chunks, chunk)
	q.samples += len(chunk)
	q.mu.Unlock()
}

func (q *chunkQueue) drain() []int16 {
	q.mu.Lock()
	chunks, n := q.chunks, q.samples
	q.chunks, q.samples = nil, 0
	q.mu.Unlock()

	out := make([]int16, 0, n)
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out
}

func (q *chunkQueue) reset() {
	q.mu.Lock()
	q.chunks, q.samples = nil, 0
	q.mu.Unlock()
}
