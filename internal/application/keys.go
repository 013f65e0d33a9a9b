package application

import (
	"context"

	"voicetype/internal/domain"
)

// KeyEventSource yields trigger key events in device order.
type KeyEventSource interface {
	Next(ctx context.Context) (domain.KeyEvent, error)
	Close() error
}
