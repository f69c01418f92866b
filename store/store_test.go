package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

func testFile(n int) *audio.File {
	return &audio.File{
		Path:       fmt.Sprintf("/music/track-%d.wav", n),
		Checksum:   fmt.Sprintf("sum-%d", n),
		Duration:   146.9,
		SampleRate: 22050,
		Channels:   2,
	}
}

func testBeats(count int, bpm float64) []tempomap.Beat {
	interval := 60.0 / bpm
	beats := make([]tempomap.Beat, count)
	for i := range beats {
		beats[i] = tempomap.Beat{
			Time:        float64(i) * interval,
			Position:    i%4 + 1,
			Confidence:  0.8,
			TempoAtBeat: bpm,
		}
	}
	return beats
}

func TestMemorySaveAndQueryRange(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.Save(ctx, testFile(1), &Analysis{
		Algorithm:  "energy",
		Status:     StatusCompleted,
		AverageBPM: 117.5,
		Processing: 1200 * time.Millisecond,
	}, testBeats(276, 117.5))
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Error("Save returned zero id")
	}

	// 117.5 falls in [100, 140].
	got, err := m.QueryByBPM(ctx, 100, 140)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("query [100,140] = %d rows, want 1", len(got))
	}
	if got[0].AverageBPM != 117.5 || got[0].BeatCount != 276 {
		t.Errorf("row = %+v", got[0])
	}

	// ...but not in [120, 140].
	if got, _ := m.QueryByBPM(ctx, 120, 140); len(got) != 0 {
		t.Errorf("query [120,140] = %d rows, want 0", len(got))
	}
}

func TestMemoryQueryEagerLoadsFiles(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 50; i++ {
		_, err := m.Save(ctx, testFile(i), &Analysis{
			Algorithm:  "energy",
			Status:     StatusCompleted,
			AverageBPM: 100 + float64(i),
		}, testBeats(8, 120))
		if err != nil {
			t.Fatal(err)
		}
	}

	// One query call returns every row with its file attached; touching
	// the files must need no further store access.
	got, err := m.QueryByBPM(ctx, 0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 50 {
		t.Fatalf("rows = %d, want 50", len(got))
	}
	for _, a := range got {
		if a.File == nil || a.File.Path == "" || a.File.Checksum == "" {
			t.Fatalf("row %d missing eagerly loaded file: %+v", a.ID, a)
		}
	}
}

func TestMemoryQueryOrderedByBPM(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i, bpm := range []float64{140, 90, 117.5, 128} {
		if _, err := m.Save(ctx, testFile(i), &Analysis{
			Algorithm: "energy", Status: StatusCompleted, AverageBPM: bpm,
		}, testBeats(4, bpm)); err != nil {
			t.Fatal(err)
		}
	}
	got, err := m.QueryByBPM(ctx, 0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].AverageBPM < got[i-1].AverageBPM {
			t.Fatalf("results not ordered by bpm: %v then %v", got[i-1].AverageBPM, got[i].AverageBPM)
		}
	}
}

func TestMemoryDedupsFilesByChecksum(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	f := testFile(1)

	for i := 0; i < 3; i++ {
		if _, err := m.Save(ctx, f, &Analysis{
			Algorithm: fmt.Sprintf("algo-%d", i), Status: StatusCompleted, AverageBPM: 120,
		}, testBeats(4, 120)); err != nil {
			t.Fatal(err)
		}
	}

	s, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalFiles != 1 {
		t.Errorf("TotalFiles = %d, want 1 (same checksum)", s.TotalFiles)
	}
	if s.TotalAnalyses != 3 {
		t.Errorf("TotalAnalyses = %d, want 3 (re-runs allowed)", s.TotalAnalyses)
	}
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Save(ctx, testFile(1), &Analysis{
		Algorithm: "energy", Status: StatusCompleted, AverageBPM: 110,
	}, testBeats(10, 110)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Save(ctx, testFile(2), &Analysis{
		Algorithm: "energy", Status: StatusCompleted, AverageBPM: 130,
	}, testBeats(20, 130)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Save(ctx, testFile(3), &Analysis{
		Algorithm: "aubio", Status: StatusCompleted, AverageBPM: 90,
	}, testBeats(5, 90)); err != nil {
		t.Fatal(err)
	}

	s, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalFiles != 3 || s.TotalAnalyses != 3 || s.TotalBeats != 35 {
		t.Errorf("counts = %d/%d/%d, want 3/3/35", s.TotalFiles, s.TotalAnalyses, s.TotalBeats)
	}
	if s.MinBPM != 90 || s.MaxBPM != 130 {
		t.Errorf("bpm bounds = [%g, %g], want [90, 130]", s.MinBPM, s.MaxBPM)
	}
	if s.AvgBPM != 110 {
		t.Errorf("AvgBPM = %g, want 110", s.AvgBPM)
	}
	if s.ByAlgorithm["energy"].Count != 2 || s.ByAlgorithm["aubio"].Count != 1 {
		t.Errorf("ByAlgorithm = %+v", s.ByAlgorithm)
	}
	if s.ByAlgorithm["energy"].AvgBPM != 120 {
		t.Errorf("energy avg = %g, want 120", s.ByAlgorithm["energy"].AvgBPM)
	}
}

func TestMemoryConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	done := make(chan error, 16)
	for i := 0; i < 16; i++ {
		i := i
		go func() {
			_, err := m.Save(ctx, testFile(i), &Analysis{
				Algorithm: "energy", Status: StatusCompleted, AverageBPM: 100 + float64(i),
			}, testBeats(8, 120))
			done <- err
		}()
	}
	for i := 0; i < 16; i++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
	s, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalAnalyses != 16 {
		t.Errorf("TotalAnalyses = %d, want 16", s.TotalAnalyses)
	}
}
