//go:build gohook

package keyboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"

	"voicetype/internal/domain"
)

// Monitor reads a process-wide keyboard hook instead of raw devices. Useful
// on X11 sessions without access to /dev/input and on macOS/Windows.
type Monitor struct {
	key       domain.TriggerKey
	rawcode   uint16
	events    chan hook.Event
	done      chan struct{}
	closeOnce sync.Once
}

func Open(key domain.TriggerKey, logger *slog.Logger) (*Monitor, error) {
	code, ok := hook.Keycode[strings.ToLower(key.Name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no global hook mapping", domain.ErrDeviceUnavailable, key.Name)
	}

	logger.Info("using global keyboard hook", "key", key.Name)
	return &Monitor{
		key:     key,
		rawcode: code,
		events:  hook.Start(),
		done:    make(chan struct{}),
	}, nil
}

func (m *Monitor) Devices() []string {
	return []string{"global hook"}
}

func (m *Monitor) Next(ctx context.Context) (domain.KeyEvent, error) {
	for {
		select {
		case <-ctx.Done():
			return domain.KeyEvent{}, ctx.Err()
		case <-m.done:
			return domain.KeyEvent{}, ErrClosed
		case ev, ok := <-m.events:
			if !ok {
				return domain.KeyEvent{}, ErrClosed
			}
			if ev.Keycode != m.rawcode {
				continue
			}
			switch ev.Kind {
			case hook.KeyHold:
				return domain.KeyEvent{Code: m.key.Code, Action: domain.KeyPress, Device: "hook"}, nil
			case hook.KeyUp:
				return domain.KeyEvent{Code: m.key.Code, Action: domain.KeyRelease, Device: "hook"}, nil
			}
		}
	}
}

func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		hook.End()
	})
	return nil
}
