package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"voicetype/config"
	"voicetype/internal/application"
	"voicetype/internal/domain"
	"voicetype/internal/infra/audio"
	"voicetype/internal/infra/desktop"
	"voicetype/internal/infra/keyboard"
	"voicetype/internal/infra/status"
	"voicetype/internal/infra/whisper"
)

var serverHints = []string{
	"start the server: systemctl --user start whisper-server",
	"check its log: journalctl --user -u whisper-server",
	"or point whisper.url at a running server",
}

const inputGroupHint = "add yourself to the input group (sudo usermod -aG input $USER) and log in again"

func newRunCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the dictation daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Log, cmd.OutOrStdout())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runDaemon(ctx, cfg, logger)
		},
	}
}

func runDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	key, ok := cfg.TriggerKey()
	if !ok {
		logger.Warn("unknown trigger key, using default",
			"key", cfg.Daemon.TriggerKey,
			"default", key.Name,
			"supported", strings.Join(domain.TriggerKeyNames(), ", "),
		)
	}

	stt := whisper.NewClient(cfg.Whisper.URL, cfg.Whisper.Model, cfg.Whisper.Language, cfg.WhisperTimeout())
	if err := stt.WaitHealthy(ctx, cfg.StartupWait(), logger); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Error("whisper server not available", "url", stt.URL(), "error", err, "hints", serverHints)
		return fmt.Errorf("waiting for whisper server: %w", err)
	}

	monitor, err := keyboard.Open(key, logger)
	if err != nil {
		if errors.Is(err, domain.ErrDeviceUnavailable) {
			logger.Error("no keyboard with the trigger key is readable", "key", key.Name, "hint", inputGroupHint)
		}
		return fmt.Errorf("opening keyboard monitor: %w", err)
	}
	defer monitor.Close()

	mic, err := audio.NewPortAudio()
	if err != nil {
		return fmt.Errorf("initializing audio: %w", err)
	}
	defer mic.Close()

	capture := audio.NewCapture(mic, audio.CaptureConfig{
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		MinDuration:     cfg.MinDuration(),
	}, logger)

	tools := desktop.NewTools(typeCommand(cfg), logger)
	output := application.NewTextOutput(tools, outputConfig(cfg), logger)

	feedback := desktop.NewFeedback(feedbackConfig(cfg), logger)
	defer feedback.Close()

	var observer application.Observer
	var metrics *status.Metrics
	if cfg.Status.Addr != "" {
		metrics = status.NewMetrics()
		observer = metrics
	}

	session := application.NewSession(capture, stt, output, feedback, observer, application.SessionConfig{
		TriggerKey:    key,
		MaxPending:    cfg.MaxPending(),
		PreviewLength: cfg.Feedback.PreviewLength,
	}, logger)
	defer session.Close()

	if metrics != nil {
		server := status.NewServer(cfg.Status.Addr, session, metrics, status.Info{
			TriggerKey: key.Name,
			Devices:    monitor.Devices(),
			WhisperURL: stt.URL(),
		}, logger)
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting status server: %w", err)
		}
		defer server.Stop()
	}

	logger.Info("voicetype started",
		"platform", runtime.GOOS,
		"trigger_key", key.Name,
		"devices", monitor.Devices(),
		"whisper", stt.URL(),
		"min_duration", cfg.MinDuration(),
		"output", cfg.OutputMethod(),
		"type_command", tools.TypeCommandName(),
	)

	err = session.Run(ctx, monitor)
	if ctx.Err() != nil {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func typeCommand(cfg *config.Config) []string {
	if len(cfg.Output.TypeCommand) > 0 {
		return cfg.Output.TypeCommand
	}
	return desktop.DetectTypeCommand()
}

func outputConfig(cfg *config.Config) application.OutputConfig {
	return application.OutputConfig{
		Method:     application.DeliveryMethod(cfg.OutputMethod()),
		PasteDelay: cfg.PasteDelay(),
		PasteShift: *cfg.Output.PasteShift,
	}
}

func feedbackConfig(cfg *config.Config) desktop.FeedbackConfig {
	startSound, stopSound := cfg.SoundFiles()
	return desktop.FeedbackConfig{
		BeepEnabled:         *cfg.Feedback.BeepEnabled,
		StartFrequency:      cfg.Feedback.StartFrequency,
		StopFrequency:       cfg.Feedback.StopFrequency,
		BeepDuration:        cfg.BeepDuration(),
		StartSound:          startSound,
		StopSound:           stopSound,
		Notifications:       *cfg.Feedback.Notifications,
		NotificationTimeout: cfg.NotificationTimeout(),
	}
}
