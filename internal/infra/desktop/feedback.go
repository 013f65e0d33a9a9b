package desktop

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/gen2brain/beeep"

	"voicetype/internal/domain"
)

type FeedbackConfig struct {
	BeepEnabled    bool
	StartFrequency float64
	StopFrequency  float64
	BeepDuration   time.Duration
	// StartSound and StopSound are WAV files played instead of the tones
	// when they exist.
	StartSound          string
	StopSound           string
	Notifications       bool
	NotificationTimeout time.Duration
	Title               string
}

type notification struct {
	Title     string
	Message   string
	Icon      string
	Timeout   time.Duration
	ReplaceID string
}

// Feedback plays beeps and shows desktop notifications on its own
// goroutine. Events that arrive while the queue is full are dropped.
type Feedback struct {
	cfg    FeedbackConfig
	logger *slog.Logger
	queue  chan domain.FeedbackEvent
	stop   chan struct{}
	done   chan struct{}

	// notificationID is reused so one notification is updated through a
	// recording cycle. Only the run goroutine touches it.
	notificationID string

	beep   func(freq float64, ms int) error
	play   func(path string) error
	notify func(n notification) (id string, err error)
}

func NewFeedback(cfg FeedbackConfig, logger *slog.Logger) *Feedback {
	if cfg.Title == "" {
		cfg.Title = "Voice Input"
	}
	f := &Feedback{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan domain.FeedbackEvent, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		beep:   beeep.Beep,
		play:   playSound,
		notify: showNotification,
	}
	go f.run()
	return f
}

func (f *Feedback) Notify(ev domain.FeedbackEvent) {
	select {
	case f.queue <- ev:
	default:
		f.logger.Debug("feedback queue full, dropping", "kind", ev.Kind)
	}
}

func (f *Feedback) Close() {
	close(f.stop)
	<-f.done
}

func (f *Feedback) run() {
	defer close(f.done)
	for {
		select {
		case <-f.stop:
			return
		case ev := <-f.queue:
			f.handle(ev)
		}
	}
}

func (f *Feedback) handle(ev domain.FeedbackEvent) {
	icon := "dialog-information"
	timeout := f.cfg.NotificationTimeout

	switch ev.Kind {
	case domain.FeedbackRecordingStarted:
		f.playBeep(f.cfg.StartSound, f.cfg.StartFrequency)
		icon = "audio-input-microphone"
		timeout = time.Minute
	case domain.FeedbackRecordingStopped:
		f.playBeep(f.cfg.StopSound, f.cfg.StopFrequency)
		icon = "view-refresh"
		timeout = 30 * time.Second
	case domain.FeedbackDelivered:
		icon = "dialog-ok-apply"
		timeout = 3 * time.Second
	case domain.FeedbackTooShort, domain.FeedbackNoSpeech, domain.FeedbackDropped:
		icon = "dialog-warning"
		timeout = 3 * time.Second
	case domain.FeedbackFailed:
		icon = "dialog-error"
	}

	if !f.cfg.Notifications || ev.Message == "" {
		return
	}
	id, err := f.notify(notification{
		Title:     f.cfg.Title,
		Message:   ev.Message,
		Icon:      icon,
		Timeout:   timeout,
		ReplaceID: f.notificationID,
	})
	if err != nil {
		f.logger.Debug("showing notification", "error", err)
		return
	}
	if id != "" {
		f.notificationID = id
	}
}

func (f *Feedback) playBeep(sound string, freq float64) {
	if !f.cfg.BeepEnabled {
		return
	}
	if sound != "" {
		if _, err := os.Stat(sound); err == nil {
			err := f.play(sound)
			if err == nil {
				return
			}
			f.logger.Debug("playing sound file, using tone", "path", sound, "error", err)
		}
	}
	if err := f.beep(freq, int(f.cfg.BeepDuration.Milliseconds())); err != nil {
		f.logger.Debug("playing beep", "error", err)
	}
}

func playSound(path string) error {
	player, err := exec.LookPath("paplay")
	if err != nil {
		player, err = exec.LookPath("aplay")
		if err != nil {
			return fmt.Errorf("no sound player: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, player, path).Run(); err != nil {
		return fmt.Errorf("running %s: %w", player, err)
	}
	return nil
}

// showNotification prefers notify-send, which honours an expiry and can
// replace an earlier notification, and falls back to beeep.
func showNotification(n notification) (string, error) {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		return "", beeep.Notify(n.Title, n.Message, "")
	}

	args := []string{"-i", n.Icon, "-t", strconv.FormatInt(n.Timeout.Milliseconds(), 10)}
	if n.ReplaceID != "" {
		args = append(args, "--replace-id", n.ReplaceID)
	} else {
		args = append(args, "--print-id")
	}
	args = append(args, n.Title, n.Message)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running notify-send: %w", err)
	}
	if n.ReplaceID != "" {
		return n.ReplaceID, nil
	}
	return strings.TrimSpace(stdout.String()), nil
}
