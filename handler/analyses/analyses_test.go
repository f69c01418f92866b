package analyses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/logger"
	"github.com/tempograph/tempograph/store"
	"github.com/tempograph/tempograph/tempomap"
)

func seededStore(t *testing.T) store.Store {
	t.Helper()
	m := store.NewMemory()
	rows := []struct {
		path string
		bpm  float64
	}{
		{"/music/a.wav", 117.5},
		{"/music/b.wav", 95},
		{"/music/c.wav", 150},
	}
	for i, row := range rows {
		f := &audio.File{Path: row.path, Checksum: row.path, Duration: 146.9, SampleRate: 22050, Channels: 2}
		_, err := m.Save(context.Background(), f, &store.Analysis{
			Algorithm:  "energy",
			Status:     store.StatusCompleted,
			AverageBPM: row.bpm,
		}, []tempomap.Beat{{Time: float64(i), Position: 1, Confidence: 1, TempoAtBeat: row.bpm}})
		if err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func TestAnalysesHandlerRange(t *testing.T) {
	log, _ := logger.NewTestLogger()
	handler := NewAnalysesHandler(log, seededStore(t))

	req := httptest.NewRequest(http.MethodGet, "/analyses?min_bpm=100&max_bpm=140", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Analyses) != 1 {
		t.Fatalf("analyses = %d, want 1", len(resp.Analyses))
	}
	got := resp.Analyses[0]
	if got.AverageBPM != 117.5 {
		t.Errorf("bpm = %g, want 117.5", got.AverageBPM)
	}
	if got.Path != "/music/a.wav" || got.Checksum == "" {
		t.Errorf("file fields missing: %+v", got)
	}
}

func TestAnalysesHandlerExcludesOutOfRange(t *testing.T) {
	log, _ := logger.NewTestLogger()
	handler := NewAnalysesHandler(log, seededStore(t))

	req := httptest.NewRequest(http.MethodGet, "/analyses?min_bpm=120&max_bpm=140", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Analyses) != 0 {
		t.Errorf("analyses = %d, want 0", len(resp.Analyses))
	}
}

func TestAnalysesHandlerBadRange(t *testing.T) {
	log, _ := logger.NewTestLogger()
	handler := NewAnalysesHandler(log, store.NewMemory())

	req := httptest.NewRequest(http.MethodGet, "/analyses?min_bpm=140&max_bpm=100", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
