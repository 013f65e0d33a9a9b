package desktop

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"voicetype/internal/domain"
)

type recorded struct {
	mu       sync.Mutex
	beeps    []float64
	sounds   []string
	notes    []string
	icons    []string
	replaced []string
	release  chan struct{}
}

func newTestFeedback(cfg FeedbackConfig, rec *recorded) *Feedback {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &Feedback{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan domain.FeedbackEvent, 2),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		beep: func(freq float64, _ int) error {
			if rec.release != nil {
				<-rec.release
			}
			rec.mu.Lock()
			rec.beeps = append(rec.beeps, freq)
			rec.mu.Unlock()
			return nil
		},
		play: func(path string) error {
			rec.mu.Lock()
			rec.sounds = append(rec.sounds, path)
			rec.mu.Unlock()
			return nil
		},
		notify: func(n notification) (string, error) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.notes = append(rec.notes, n.Message)
			rec.icons = append(rec.icons, n.Icon)
			rec.replaced = append(rec.replaced, n.ReplaceID)
			if n.ReplaceID != "" {
				return n.ReplaceID, nil
			}
			return "42", nil
		},
	}
	go f.run()
	return f
}

func waitNotes(rec *recorded, want int) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec.mu.Lock()
		n := len(rec.notes)
		rec.mu.Unlock()
		if n >= want || time.Now().After(deadline) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFeedback_BeepsAndNotifies(t *testing.T) {
	rec := &recorded{}
	f := newTestFeedback(FeedbackConfig{
		BeepEnabled:    true,
		StartFrequency: 800,
		StopFrequency:  400,
		BeepDuration:   100 * time.Millisecond,
		Notifications:  true,
	}, rec)

	f.Notify(domain.FeedbackEvent{Kind: domain.FeedbackRecordingStarted, Message: "Recording..."})
	f.Notify(domain.FeedbackEvent{Kind: domain.FeedbackRecordingStopped, Message: "Transcribing..."})

	waitNotes(rec, 2)
	f.Close()

	if len(rec.beeps) != 2 || rec.beeps[0] != 800 || rec.beeps[1] != 400 {
		t.Errorf("beeps: got %v, want [800 400]", rec.beeps)
	}
	if len(rec.icons) != 2 || rec.icons[0] != "audio-input-microphone" {
		t.Errorf("icons: got %v", rec.icons)
	}
}

func TestFeedback_NotifyNeverBlocks(t *testing.T) {
	rec := &recorded{release: make(chan struct{})}
	f := newTestFeedback(FeedbackConfig{BeepEnabled: true}, rec)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			f.Notify(domain.FeedbackEvent{Kind: domain.FeedbackRecordingStarted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a stuck sink")
	}
	close(rec.release)
	f.Close()
}

func TestFeedback_DisabledSinksStaySilent(t *testing.T) {
	rec := &recorded{}
	f := newTestFeedback(FeedbackConfig{}, rec)

	f.Notify(domain.FeedbackEvent{Kind: domain.FeedbackRecordingStarted, Message: "Recording..."})
	time.Sleep(20 * time.Millisecond)
	f.Close()

	if len(rec.beeps)+len(rec.notes) != 0 {
		t.Errorf("expected nothing, got beeps=%v notes=%v", rec.beeps, rec.notes)
	}
}

func TestFeedback_UpdatesOneNotification(t *testing.T) {
	rec := &recorded{}
	f := newTestFeedback(FeedbackConfig{Notifications: true}, rec)

	f.Notify(domain.FeedbackEvent{Kind: domain.FeedbackRecordingStarted, Message: "Recording..."})
	f.Notify(domain.FeedbackEvent{Kind: domain.FeedbackRecordingStopped, Message: "Transcribing..."})
	waitNotes(rec, 2)
	f.Notify(domain.FeedbackEvent{Kind: domain.FeedbackDelivered, Message: "Ready: hello"})
	waitNotes(rec, 3)
	f.Close()

	want := []string{"", "42", "42"}
	if len(rec.replaced) != len(want) {
		t.Fatalf("notifications: got %d, want %d", len(rec.replaced), len(want))
	}
	for i := range want {
		if rec.replaced[i] != want[i] {
			t.Errorf("notification %d replace id: got %q, want %q", i, rec.replaced[i], want[i])
		}
	}
}

func TestFeedback_SoundFileReplacesTone(t *testing.T) {
	sound := filepath.Join(t.TempDir(), "start.wav")
	if err := os.WriteFile(sound, []byte("RIFF"), 0o600); err != nil {
		t.Fatalf("writing sound: %v", err)
	}

	rec := &recorded{}
	f := newTestFeedback(FeedbackConfig{
		BeepEnabled:    true,
		StartFrequency: 800,
		StopFrequency:  400,
		StartSound:     sound,
		StopSound:      filepath.Join(t.TempDir(), "missing.wav"),
		Notifications:  true,
	}, rec)

	f.Notify(domain.FeedbackEvent{Kind: domain.FeedbackRecordingStarted, Message: "Recording..."})
	f.Notify(domain.FeedbackEvent{Kind: domain.FeedbackRecordingStopped, Message: "Transcribing..."})
	waitNotes(rec, 2)
	f.Close()

	if len(rec.sounds) != 1 || rec.sounds[0] != sound {
		t.Errorf("sounds: got %v, want [%s]", rec.sounds, sound)
	}
	if len(rec.beeps) != 1 || rec.beeps[0] != 400 {
		t.Errorf("missing stop sound should fall back to the tone: got %v", rec.beeps)
	}
}
