package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"voicetype/internal/domain"
)

// InputTools is the platform capability used to put text into the focused
// window. Methods return domain.ErrUnsupported when the mechanism is absent.
type InputTools interface {
	CopyToClipboard(ctx context.Context, text string) error
	SimulatePaste(ctx context.Context, shift bool) error
	TypeText(ctx context.Context, text string) error
}

type DeliveryMethod string

const (
	DeliverAuto      DeliveryMethod = "auto"
	DeliverClipboard DeliveryMethod = "clipboard"
	DeliverType      DeliveryMethod = "type"
)

type OutputConfig struct {
	Method     DeliveryMethod
	PasteDelay time.Duration
	PasteShift bool
}

type TextOutput struct {
	tools  InputTools
	cfg    OutputConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewTextOutput(tools InputTools, cfg OutputConfig, logger *slog.Logger) *TextOutput {
	if cfg.Method == "" {
		cfg.Method = DeliverAuto
	}
	return &TextOutput{
		tools:  tools,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Deliver places text into the active application. Text left on the
// clipboard counts as delivered even when the paste shortcut fails.
func (o *TextOutput) Deliver(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	if o.cfg.Method != DeliverClipboard {
		err := o.tools.TypeText(ctx, text)
		if err == nil {
			o.logger.Info("typed text into active window", "chars", len(text))
			return nil
		}
		if o.cfg.Method == DeliverType {
			return fmt.Errorf("typing text: %w", errors.Join(domain.ErrNoToolAvailable, err))
		}
		if errors.Is(err, domain.ErrUnsupported) {
			o.logger.Debug("no typing tool, using clipboard")
		} else {
			o.logger.Warn("direct typing failed, using clipboard", "error", err)
		}
	}

	if err := o.tools.CopyToClipboard(ctx, text); err != nil {
		return fmt.Errorf("copying to clipboard: %w", errors.Join(domain.ErrNoToolAvailable, err))
	}
	o.logger.Info("copied text to clipboard", "chars", len(text))

	if err := o.sleep(ctx, o.cfg.PasteDelay); err != nil {
		return nil
	}

	if err := o.tools.SimulatePaste(ctx, o.cfg.PasteShift); err != nil {
		o.logger.Warn("auto-paste not available, text left on clipboard", "error", err)
		return nil
	}
	o.logger.Info("pasted into active window")
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
