package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voicetype/config"
	"voicetype/internal/application"
	"voicetype/internal/domain"
	"voicetype/internal/infra/audio"
	"voicetype/internal/infra/desktop"
	"voicetype/internal/infra/whisper"
)

const (
	minOnceSeconds = 1
	maxOnceSeconds = 30
)

var (
	errInvalidDuration = errors.New("invalid duration")
	errNoSpeech        = errors.New("no speech detected")
)

type recorder interface {
	Record(ctx context.Context, d time.Duration) (*domain.AudioBuffer, error)
}

// openRecorder opens the default microphone; the returned func releases it.
var openRecorder = func(cfg *config.Config, logger *slog.Logger) (recorder, func() error, error) {
	mic, err := audio.NewPortAudio()
	if err != nil {
		return nil, nil, fmt.Errorf("initializing audio: %w", err)
	}
	capture := audio.NewCapture(mic, audio.CaptureConfig{
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}, logger)
	return capture, mic.Close, nil
}

type onceOptions struct {
	duration int
	file     string
	deliver  bool
	url      string
}

type onceResult struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

type onceFailure struct {
	Error string   `json:"error"`
	Help  []string `json:"help,omitempty"`
}

func newOnceCmd(root *rootOptions) *cobra.Command {
	opts := &onceOptions{}

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Record for a fixed time, transcribe and print the result as JSON",
		Example: `  voicetype once --duration 5
  voicetype once --file note.wav
  voicetype once -d 3 --deliver`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := runOnce(ctx, root, opts, cmd.ErrOrStderr())
			if err != nil {
				if werr := writeJSON(cmd.OutOrStdout(), onceFailure{Error: err.Error(), Help: helpFor(err)}); werr != nil {
					return werr
				}
				return errReported
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVarP(&opts.duration, "duration", "d", 5, "seconds to record (1-30)")
	cmd.Flags().StringVar(&opts.file, "file", "", "transcribe an existing WAV file instead of recording")
	cmd.Flags().BoolVar(&opts.deliver, "deliver", false, "also paste or type the transcription")
	cmd.Flags().StringVar(&opts.url, "url", "", "override whisper.url")

	return cmd
}

// runOnce logs to logw so that stdout carries only the JSON result.
func runOnce(ctx context.Context, root *rootOptions, opts *onceOptions, logw io.Writer) (*onceResult, error) {
	if opts.file == "" && (opts.duration < minOnceSeconds || opts.duration > maxOnceSeconds) {
		return nil, fmt.Errorf("%w: %d (must be between %d and %d seconds)",
			errInvalidDuration, opts.duration, minOnceSeconds, maxOnceSeconds)
	}

	cfg, err := root.load()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.Log, logw)

	url := cfg.Whisper.URL
	if opts.url != "" {
		url = opts.url
	}
	stt := whisper.NewClient(url, cfg.Whisper.Model, cfg.Whisper.Language, cfg.WhisperTimeout())

	if err := stt.Health(ctx); err != nil {
		return nil, fmt.Errorf("whisper server at %s not available: %w", stt.URL(), err)
	}

	var (
		buf      *domain.AudioBuffer
		duration float64
	)
	if opts.file != "" {
		buf, err = audio.LoadWAV(opts.file)
		if err != nil {
			return nil, err
		}
		duration = buf.Duration().Seconds()
	} else {
		buf, err = recordOnce(ctx, cfg, time.Duration(opts.duration)*time.Second, logger)
		if err != nil {
			return nil, err
		}
		duration = float64(opts.duration)
	}

	text, err := stt.Transcribe(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("transcribing: %w", err)
	}
	logger.Info("transcription finished", "duration", duration, "chars", len(text))
	if text == "" {
		return nil, errNoSpeech
	}

	if opts.deliver {
		output := application.NewTextOutput(desktop.NewTools(typeCommand(cfg), logger), application.OutputConfig{
			Method:     application.DeliverAuto,
			PasteDelay: cfg.PasteDelay(),
			PasteShift: *cfg.Output.PasteShift,
		}, logger)
		if err := output.Deliver(ctx, text); err != nil {
			return nil, fmt.Errorf("delivering text: %w", err)
		}
	}

	return &onceResult{Text: text, Duration: duration}, nil
}

func recordOnce(ctx context.Context, cfg *config.Config, d time.Duration, logger *slog.Logger) (*domain.AudioBuffer, error) {
	rec, release, err := openRecorder(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer release()

	logger.Info("recording", "duration", d)
	buf, err := rec.Record(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("recording: %w", err)
	}
	return buf, nil
}

func helpFor(err error) []string {
	switch {
	case errors.Is(err, errNoSpeech):
		return []string{
			"speak closer to the microphone or record for longer",
			"check the input level: pactl list sources short",
		}
	case errors.Is(err, errInvalidDuration):
		return []string{fmt.Sprintf("usage: voicetype once --duration N (N from %d to %d)", minOnceSeconds, maxOnceSeconds)}
	case errors.Is(err, domain.ErrUnreachable),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrBadResponse):
		return serverHints
	case errors.Is(err, domain.ErrDeviceBusy),
		errors.Is(err, domain.ErrCaptureFailed):
		return []string{
			"check that a microphone is connected",
			"close other applications using the microphone",
		}
	case errors.Is(err, domain.ErrNoToolAvailable):
		return []string{"install wtype or ydotool (Wayland), xdotool (X11), or wl-clipboard/xclip for clipboard output"}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}
