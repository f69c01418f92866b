package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

// Memory is an in-process Store used when no database is configured, and
// in tests.
type Memory struct {
	mu       sync.RWMutex
	nextFile int64
	nextAnal int64
	files    map[string]*audio.File // by checksum
	fileIDs  map[string]int64
	analyses []Analysis
	beats    map[int64][]tempomap.Beat // by analysis id
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		files:   make(map[string]*audio.File),
		fileIDs: make(map[string]int64),
		beats:   make(map[int64][]tempomap.Beat),
	}
}

// Save implements Store.
func (m *Memory) Save(ctx context.Context, f *audio.File, a *Analysis, beats []tempomap.Beat) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.fileIDs[f.Checksum]
	if !ok {
		m.nextFile++
		id = m.nextFile
		m.fileIDs[f.Checksum] = id
	}
	cp := *f
	m.files[f.Checksum] = &cp

	m.nextAnal++
	rec := *a
	rec.ID = m.nextAnal
	rec.AudioFileID = id
	rec.BeatCount = len(beats)
	rec.CreatedAt = time.Now()
	rec.File = nil
	m.analyses = append(m.analyses, rec)
	m.beats[rec.ID] = append([]tempomap.Beat(nil), beats...)
	return rec.ID, nil
}

// QueryByBPM implements Store. Files are attached from the snapshot taken
// under the same lock, so the result set needs no follow-up lookups.
func (m *Memory) QueryByBPM(ctx context.Context, min, max float64) ([]Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := make(map[int64]*audio.File, len(m.files))
	for sum, f := range m.files {
		byID[m.fileIDs[sum]] = f
	}

	var out []Analysis
	for _, a := range m.analyses {
		if a.AverageBPM < min || a.AverageBPM > max {
			continue
		}
		cp := a
		if f, ok := byID[a.AudioFileID]; ok {
			fc := *f
			cp.File = &fc
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AverageBPM < out[j].AverageBPM })
	return out, nil
}

// Stats implements Store.
func (m *Memory) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &Stats{ByAlgorithm: make(map[string]AlgorithmStats)}
	s.TotalFiles = int64(len(m.files))
	s.TotalAnalyses = int64(len(m.analyses))
	for _, f := range m.files {
		s.TotalDuration += f.Duration
	}

	type acc struct {
		count int64
		sum   float64
	}
	perAlgo := make(map[string]*acc)
	var sum float64
	for i, a := range m.analyses {
		s.TotalBeats += int64(len(m.beats[a.ID]))
		sum += a.AverageBPM
		if i == 0 || a.AverageBPM < s.MinBPM {
			s.MinBPM = a.AverageBPM
		}
		if a.AverageBPM > s.MaxBPM {
			s.MaxBPM = a.AverageBPM
		}
		pa := perAlgo[a.Algorithm]
		if pa == nil {
			pa = &acc{}
			perAlgo[a.Algorithm] = pa
		}
		pa.count++
		pa.sum += a.AverageBPM
	}
	if len(m.analyses) > 0 {
		s.AvgBPM = sum / float64(len(m.analyses))
	}
	for name, pa := range perAlgo {
		s.ByAlgorithm[name] = AlgorithmStats{Count: pa.count, AvgBPM: pa.sum / float64(pa.count)}
	}
	return s, nil
}
