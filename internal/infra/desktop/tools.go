package desktop

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"

	"voicetype/internal/domain"
)

// Tools puts text into the focused window: clipboard through atotto/clipboard,
// the paste shortcut through a virtual keyboard, and direct typing through an
// external command such as wtype or xdotool.
type Tools struct {
	typeCommand []string
	logger      *slog.Logger

	kb    *keybd_event.KeyBonding
	kbErr error
	ready chan struct{}
}

// NewTools starts creating the virtual keyboard in the background; on Linux
// uinput needs a moment before the new device accepts events.
func NewTools(typeCommand []string, logger *slog.Logger) *Tools {
	t := &Tools{
		typeCommand: typeCommand,
		logger:      logger,
		ready:       make(chan struct{}),
	}
	go func() {
		defer close(t.ready)
		kb, err := keybd_event.NewKeyBonding()
		if err != nil {
			t.kbErr = err
			return
		}
		if runtime.GOOS == "linux" {
			time.Sleep(2 * time.Second)
		}
		t.kb = &kb
	}()
	return t
}

func (t *Tools) CopyToClipboard(_ context.Context, text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard: %w (install wl-clipboard, xclip or xsel)", domain.ErrUnsupported)
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("writing clipboard: %w", err)
	}
	return nil
}

func (t *Tools) SimulatePaste(ctx context.Context, shift bool) error {
	select {
	case <-t.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if t.kbErr != nil {
		return fmt.Errorf("virtual keyboard: %w: %v", domain.ErrUnsupported, t.kbErr)
	}

	t.kb.Clear()
	t.kb.SetKeys(keybd_event.VK_V)
	t.kb.HasCTRL(true)
	t.kb.HasSHIFT(shift)
	if err := t.kb.Launching(); err != nil {
		return fmt.Errorf("sending paste shortcut: %w", err)
	}
	return nil
}

func (t *Tools) TypeText(ctx context.Context, text string) error {
	if len(t.typeCommand) == 0 {
		return fmt.Errorf("typing: %w", domain.ErrUnsupported)
	}

	args := append(append([]string{}, t.typeCommand[1:]...), text)
	cmd := exec.CommandContext(ctx, t.typeCommand[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w: %s", t.typeCommand[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// TypeCommandName is the typing tool in use, or "" when typing is disabled.
func (t *Tools) TypeCommandName() string {
	if len(t.typeCommand) == 0 {
		return ""
	}
	return t.typeCommand[0]
}

// DetectTypeCommand picks a typing tool installed for the current display
// server. It returns nil when none is found.
func DetectTypeCommand() []string {
	var candidates [][]string
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		candidates = [][]string{
			{"wtype", "--"},
			{"ydotool", "type", "--"},
		}
	} else {
		candidates = [][]string{
			{"xdotool", "type", "--clearmodifiers", "--"},
			{"ydotool", "type", "--"},
		}
	}
	for _, c := range candidates {
		if _, err := exec.LookPath(c[0]); err == nil {
			return c
		}
	}
	return nil
}
