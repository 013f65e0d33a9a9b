// Package whisper talks to a local whisper.cpp server through its
// OpenAI-compatible transcription endpoint.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"voicetype/internal/domain"
	"voicetype/internal/infra"
	"voicetype/internal/infra/audio"
)

const (
	DefaultURL     = "http://127.0.0.1:2022"
	DefaultModel   = "whisper-1"
	DefaultTimeout = 30 * time.Second

	transcriptionsPath = "/v1/audio/transcriptions"
	healthPath         = "/health"
	healthTimeout      = 2 * time.Second
)

type Client struct {
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

func NewClient(baseURL, model, language string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) URL() string {
	return c.baseURL + transcriptionsPath
}

type transcriptionResponse struct {
	Text *string `json:"text"`
}

// Transcribe uploads the buffer as audio.wav and returns the trimmed text.
// An empty string means the service heard no speech.
func (c *Client) Transcribe(ctx context.Context, buf *domain.AudioBuffer) (string, error) {
	wav, err := audio.EncodeWAV(buf)
	if err != nil {
		return "", fmt.Errorf("encoding audio: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio.wav"`)
	header.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err = part.Write(wav); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}

	if err = writer.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("writing model field: %w", err)
	}
	if c.language != "" {
		if err = writer.WriteField("language", c.language); err != nil {
			return "", fmt.Errorf("writing language field: %w", err)
		}
	}
	if err = writer.Close(); err != nil {
		return "", fmt.Errorf("closing writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", classify(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrBadResponse, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("reading response: %w", domain.ErrTimeout)
		}
		return "", fmt.Errorf("decoding response: %w: %v", domain.ErrBadResponse, err)
	}
	if result.Text == nil {
		return "", fmt.Errorf("decoding response: %w: missing text field", domain.ErrBadResponse)
	}

	return strings.TrimSpace(*result.Text), nil
}

// Health reports whether the server answers GET /health with 200.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("checking health: %w", classify(err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", domain.ErrBadResponse, resp.StatusCode)
	}
	return nil
}

// WaitHealthy polls Health every 500ms until the server is ready or window
// has passed.
func (c *Client) WaitHealthy(ctx context.Context, window time.Duration, logger *slog.Logger) error {
	return infra.WithRetry(ctx, infra.PollConfig(500*time.Millisecond, window), func(attempt int) error {
		err := c.Health(ctx)
		if err != nil && attempt == 1 {
			logger.Warn("whisper server not ready, waiting", "url", c.baseURL, "window", window)
		}
		return err
	})
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
