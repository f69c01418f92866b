package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tempograph/tempograph/analyzer"
	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/cache"
	"github.com/tempograph/tempograph/config"
	"github.com/tempograph/tempograph/detector"
	"github.com/tempograph/tempograph/logger"
	"github.com/tempograph/tempograph/store"
	"github.com/tempograph/tempograph/tempomap"
)

type stubLoader struct{}

func (stubLoader) Load(ctx context.Context, path string) (*audio.Audio, *audio.File, error) {
	if path == "/music/missing.wav" {
		return nil, nil, &audio.LoadError{Path: path, Err: errors.New("no such file")}
	}
	a := &audio.Audio{SampleRate: 22050, Channels: 1, Duration: 30, SourcePath: path}
	f := &audio.File{Path: path, Checksum: "sum-" + path, Duration: 30, SampleRate: 22050, Channels: 1}
	return a, f, nil
}

type stubDetector struct{}

func (stubDetector) Name() string { return "test" }

func (stubDetector) Detect(ctx context.Context, a *audio.Audio, cfg detector.Config) (*tempomap.TempoMap, error) {
	var beats []tempomap.Beat
	for t := 0.0; t < a.Duration; t += 0.5 {
		beats = append(beats, tempomap.Beat{Time: t, Position: len(beats)%4 + 1, Confidence: 0.8})
	}
	return tempomap.New(beats, 120, "test", a.Duration)
}

func newTestHandler(t *testing.T) *AnalyzeHandler {
	t.Helper()
	log, _ := logger.NewTestLogger()
	reg := detector.NewRegistry()
	reg.Register(stubDetector{})
	an := analyzer.New(reg, stubLoader{}, cache.NewMemory(), store.NewMemory(), log)
	cfg := config.Config{Algorithm: "test", SampleRate: 22050, TempoMin: 30, TempoMax: 300}
	return NewAnalyzeHandler(log, an, cfg)
}

func post(t *testing.T, handler http.Handler, body Request) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestAnalyzeHandler(t *testing.T) {
	handler := newTestHandler(t)

	rr := post(t, handler, Request{Path: "/music/track.wav", Format: "json"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.AverageBPM != 120 || resp.Beats != 60 {
		t.Errorf("bpm/beats = %g/%d, want 120/60", resp.AverageBPM, resp.Beats)
	}
	if !resp.Stored {
		t.Error("analysis not persisted")
	}
	if resp.Output == "" {
		t.Error("export output missing from response")
	}
	if resp.CacheHit {
		t.Error("first request reported a cache hit")
	}

	// Same path and algorithm again is served from cache.
	rr = post(t, handler, Request{Path: "/music/track.wav", Format: "json"})
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.CacheHit {
		t.Error("repeat request missed the cache")
	}
}

func TestAnalyzeHandlerUnknownAlgorithm(t *testing.T) {
	handler := newTestHandler(t)
	rr := post(t, handler, Request{Path: "/music/track.wav", Algorithm: "madmom"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestAnalyzeHandlerUnreadableFile(t *testing.T) {
	handler := newTestHandler(t)
	rr := post(t, handler, Request{Path: "/music/missing.wav"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestAnalyzeHandlerBadRequest(t *testing.T) {
	handler := newTestHandler(t)

	rr := post(t, handler, Request{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty path: status = %d, want 400", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/analyze", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d, want 405", rec.Code)
	}
}
