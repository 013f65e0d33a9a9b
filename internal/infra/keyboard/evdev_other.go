//go:build !linux && !gohook

package keyboard

import (
	"context"
	"fmt"
	"log/slog"

	"voicetype/internal/domain"
)

// Monitor is unavailable outside Linux unless built with -tags gohook.
type Monitor struct{}

func Open(key domain.TriggerKey, _ *slog.Logger) (*Monitor, error) {
	return nil, fmt.Errorf("%w: %s (evdev requires linux, rebuild with -tags gohook)", domain.ErrDeviceUnavailable, key.Name)
}

func (m *Monitor) Devices() []string { return nil }

func (m *Monitor) Next(_ context.Context) (domain.KeyEvent, error) {
	return domain.KeyEvent{}, ErrClosed
}

func (m *Monitor) Close() error { return nil }
