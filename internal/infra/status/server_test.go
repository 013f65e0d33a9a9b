package status_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voicetype/internal/application"
	"voicetype/internal/domain"
	"voicetype/internal/infra/status"
)

type fakeSession struct {
	state   domain.RecordingState
	pending int
}

func (f *fakeSession) State() domain.RecordingState { return f.state }
func (f *fakeSession) Pending() int                 { return f.pending }

var _ application.Observer = (*status.Metrics)(nil)

func newServer(session *fakeSession, metrics *status.Metrics) *status.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return status.NewServer(":0", session, metrics, status.Info{
		TriggerKey: "F12",
		Devices:    []string{"AT Translated Set 2 keyboard"},
		WhisperURL: "http://127.0.0.1:2022/v1/audio/transcriptions",
	}, logger)
}

func TestServer_Status(t *testing.T) {
	session := &fakeSession{state: domain.StateTranscribing, pending: 2}
	handler := newServer(session, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code: got %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		State      string   `json:"state"`
		Pending    int      `json:"pending"`
		TriggerKey string   `json:"trigger_key"`
		Devices    []string `json:"devices"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.State != "transcribing" || body.Pending != 2 {
		t.Errorf("got state=%q pending=%d", body.State, body.Pending)
	}
	if body.TriggerKey != "F12" || len(body.Devices) != 1 {
		t.Errorf("unexpected info: %+v", body)
	}
}

func TestServer_Health(t *testing.T) {
	handler := newServer(&fakeSession{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status code: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServer_StatusRateLimited(t *testing.T) {
	handler := newServer(&fakeSession{}, nil).Handler()

	var last int
	for i := 0; i < 61; i++ {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.RemoteAddr = "127.0.0.1:40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("status code after burst: got %d, want %d", last, http.StatusTooManyRequests)
	}
}

func TestServer_Metrics(t *testing.T) {
	metrics := status.NewMetrics()
	metrics.StateChanged(domain.StateRecording)
	metrics.PendingChanged(1)
	metrics.SegmentFinished(application.OutcomeDelivered, 2*time.Second)
	metrics.TranscriptionFinished(300*time.Millisecond, nil)

	handler := newServer(&fakeSession{}, metrics).Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code: got %d, want %d", rec.Code, http.StatusOK)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`voicetype_session_state{state="recording"} 1`,
		`voicetype_session_state{state="idle"} 0`,
		`voicetype_pending_segments 1`,
		`voicetype_segments_total{outcome="delivered"} 1`,
		`voicetype_transcription_request_seconds_count{status="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := status.NewRateLimiter(2, time.Minute)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Error("other clients are limited separately")
	}
}
