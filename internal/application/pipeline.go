package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"voicetype/internal/domain"
)

var errPipelineFull = errors.New("too many recordings waiting for transcription")

type Deliverer interface {
	Deliver(ctx context.Context, text string) error
}

type transcription struct {
	text    string
	err     error
	elapsed time.Duration
}

type job struct {
	segment domain.Segment
	result  chan transcription
}

// pipeline transcribes segments concurrently and delivers their text in
// submission order through a single consumer goroutine.
type pipeline struct {
	stt        SpeechToText
	out        Deliverer
	feedback   Feedback
	observer   Observer
	logger     *slog.Logger
	maxPending int
	previewLen int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    []*job
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	pending atomic.Int32
}

func newPipeline(stt SpeechToText, out Deliverer, feedback Feedback, observer Observer, maxPending, previewLen int, logger *slog.Logger) *pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &pipeline{
		stt:        stt,
		out:        out,
		feedback:   feedback,
		observer:   observer,
		logger:     logger,
		maxPending: maxPending,
		previewLen: previewLen,
		ctx:        ctx,
		cancel:     cancel,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go p.deliverLoop()
	return p
}

func (p *pipeline) Pending() int {
	return int(p.pending.Load())
}

// Submit never blocks. The segment's transcription starts immediately; its
// delivery waits for every segment submitted before it.
func (p *pipeline) Submit(seg domain.Segment) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("pipeline closed")
	}
	if p.maxPending > 0 && p.Pending() >= p.maxPending {
		p.mu.Unlock()
		return fmt.Errorf("%w (%d pending)", errPipelineFull, p.Pending())
	}
	j := &job{segment: seg, result: make(chan transcription, 1)}
	p.jobs = append(p.jobs, j)
	p.observer.PendingChanged(int(p.pending.Add(1)))
	p.mu.Unlock()

	go p.transcribe(j)

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

func (p *pipeline) transcribe(j *job) {
	start := time.Now()
	text, err := p.stt.Transcribe(p.ctx, j.segment.Audio)
	elapsed := time.Since(start)
	p.observer.TranscriptionFinished(elapsed, err)
	j.result <- transcription{text: text, err: err, elapsed: elapsed}
}

func (p *pipeline) next() (*job, bool) {
	for {
		p.mu.Lock()
		if len(p.jobs) > 0 {
			j := p.jobs[0]
			p.jobs[0] = nil
			p.jobs = p.jobs[1:]
			p.mu.Unlock()
			return j, true
		}
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-p.wake:
		case <-p.ctx.Done():
			return nil, false
		}
	}
}

func (p *pipeline) deliverLoop() {
	defer close(p.done)
	for {
		j, ok := p.next()
		if !ok {
			return
		}

		var res transcription
		select {
		case res = <-j.result:
		case <-p.ctx.Done():
			return
		}

		p.finish(j.segment, res)
		p.observer.PendingChanged(int(p.pending.Add(-1)))
	}
}

func (p *pipeline) finish(seg domain.Segment, res transcription) {
	logger := p.logger.With("segment", seg.ID)
	audioLen := seg.Audio.Duration()

	if res.err != nil {
		logger.Error("transcription failed", "error", res.err, "elapsed", res.elapsed)
		p.feedback.Notify(domain.FeedbackEvent{
			Kind:    domain.FeedbackFailed,
			Message: fmt.Sprintf("Error: %s", truncate(res.err.Error(), 40)),
		})
		p.observer.SegmentFinished(OutcomeFailed, audioLen)
		return
	}

	if res.text == "" {
		logger.Info("no speech detected", "elapsed", res.elapsed)
		p.feedback.Notify(domain.FeedbackEvent{Kind: domain.FeedbackNoSpeech, Message: "No speech detected"})
		p.observer.SegmentFinished(OutcomeNoSpeech, audioLen)
		return
	}

	logger.Info("transcribed", "text", res.text, "elapsed", res.elapsed)
	p.feedback.Notify(domain.FeedbackEvent{
		Kind:    domain.FeedbackDelivered,
		Message: "Ready: " + truncate(res.text, p.previewLen),
	})

	if err := p.out.Deliver(p.ctx, res.text); err != nil {
		logger.Error("delivering text", "error", err)
		p.feedback.Notify(domain.FeedbackEvent{
			Kind:    domain.FeedbackFailed,
			Message: "No typing or clipboard tool available",
		})
		p.observer.SegmentFinished(OutcomeFailed, audioLen)
		return
	}
	p.observer.SegmentFinished(OutcomeDelivered, audioLen)
}

// Close stops accepting segments and waits up to timeout for queued ones
// to be delivered. Transcriptions still running after that are abandoned.
func (p *pipeline) Close(timeout time.Duration) {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}

	select {
	case <-p.done:
	case <-time.After(timeout):
		p.logger.Warn("abandoning pending transcriptions", "pending", p.Pending())
	}
	p.cancel()
	<-p.done
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
