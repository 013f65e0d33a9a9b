package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voicetype/internal/application"
	"voicetype/internal/infra/whisper"
)

const interactivePrompt = "[Press ENTER to record, or type 'quit' to exit]: "

type interactiveOptions struct {
	duration int
	url      string
}

func newInteractiveCmd(root *rootOptions) *cobra.Command {
	opts := &interactiveOptions{}

	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Record fixed-length clips from the terminal and print each transcription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.duration < minOnceSeconds || opts.duration > maxOnceSeconds {
				return fmt.Errorf("%w: %d (must be between %d and %d seconds)",
					errInvalidDuration, opts.duration, minOnceSeconds, maxOnceSeconds)
			}

			cfg, err := root.load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Log, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			url := cfg.Whisper.URL
			if opts.url != "" {
				url = opts.url
			}
			stt := whisper.NewClient(url, cfg.Whisper.Model, cfg.Whisper.Language, cfg.WhisperTimeout())
			if err := stt.Health(ctx); err != nil {
				logger.Error("whisper server not available", "url", stt.URL(), "error", err, "hints", serverHints)
				return fmt.Errorf("whisper server at %s not available: %w", stt.URL(), err)
			}

			rec, release, err := openRecorder(cfg, logger)
			if err != nil {
				return err
			}
			defer release()

			session := &terminalSession{
				in:       cmd.InOrStdin(),
				out:      cmd.OutOrStdout(),
				recorder: rec,
				stt:      stt,
				duration: time.Duration(opts.duration) * time.Second,
			}
			return session.run(ctx)
		},
	}

	cmd.Flags().IntVarP(&opts.duration, "duration", "d", 5, "seconds to record per clip (1-30)")
	cmd.Flags().StringVar(&opts.url, "url", "", "override whisper.url")

	return cmd
}

// terminalSession reads commands line by line: an empty line records one
// clip, quit or exit ends the session.
type terminalSession struct {
	in       io.Reader
	out      io.Writer
	recorder recorder
	stt      application.SpeechToText
	duration time.Duration
}

func (s *terminalSession) run(ctx context.Context) error {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(s.out, "\n%s\nVoice Transcription (whisper.cpp)\n%s\n", rule, rule)
	fmt.Fprintln(s.out, "\nCommands:")
	fmt.Fprintln(s.out, "  - Press ENTER to start recording")
	fmt.Fprintln(s.out, "  - Type 'quit' or 'exit' to end session")
	fmt.Fprintln(s.out, rule)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(s.out, "\n"+interactivePrompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\n\nSession interrupted. Goodbye!")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out, "\nGoodbye!")
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			fmt.Fprintln(s.out, "\nGoodbye!")
			return nil
		case "":
		default:
			fmt.Fprintln(s.out, "Press ENTER to record, or type 'quit' to exit")
			continue
		}

		if err := s.transcribeClip(ctx); err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(s.out, "\n\nSession interrupted. Goodbye!")
				return nil
			}
			fmt.Fprintf(s.out, "\nError: %v\nPlease try again.\n", err)
		}
	}
}

func (s *terminalSession) transcribeClip(ctx context.Context) error {
	fmt.Fprintf(s.out, "Recording for %s...\n", s.duration)
	buf, err := s.recorder.Record(ctx, s.duration)
	if err != nil {
		return fmt.Errorf("recording: %w", err)
	}

	fmt.Fprintln(s.out, "Transcribing...")
	text, err := s.stt.Transcribe(ctx, buf)
	if err != nil {
		return fmt.Errorf("transcribing: %w", err)
	}
	if text == "" {
		fmt.Fprintln(s.out, "No speech detected. Please try again.")
		return nil
	}

	rule := strings.Repeat("-", 60)
	fmt.Fprintf(s.out, "\n%s\nTranscription:\n%s\n%s\n%s\n", rule, rule, text, rule)
	return nil
}
