// Package store persists analyses and answers BPM range queries and
// aggregate statistics over them.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

// Status is the lifecycle state of an Analysis. An analysis starts Pending
// and transitions to Completed or Failed exactly once.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Analysis is one (file, algorithm, config) execution.
type Analysis struct {
	ID          int64
	AudioFileID int64
	Algorithm   string
	Status      Status
	AverageBPM  float64
	BeatCount   int
	Error       string
	Processing  time.Duration
	CreatedAt   time.Time

	// File is eagerly populated by QueryByBPM; Save ignores it.
	File *audio.File
}

// Stats aggregates the stored analyses.
type Stats struct {
	TotalFiles    int64                     `json:"total_files"`
	TotalAnalyses int64                     `json:"total_analyses"`
	TotalBeats    int64                     `json:"total_beats"`
	AvgBPM        float64                   `json:"avg_bpm"`
	MinBPM        float64                   `json:"min_bpm"`
	MaxBPM        float64                   `json:"max_bpm"`
	TotalDuration float64                   `json:"total_duration"`
	ByAlgorithm   map[string]AlgorithmStats `json:"by_algorithm"`
}

// AlgorithmStats is the per-algorithm slice of Stats.
type AlgorithmStats struct {
	Count  int64   `json:"count"`
	AvgBPM float64 `json:"avg_bpm"`
}

// Store is the persistence contract. Save writes one analysis with its
// beats as a single logical transaction. QueryByBPM returns analyses whose
// average BPM falls in [min, max], ordered by BPM, with the owning audio
// file eagerly attached — implementations must not issue one lookup per
// row. Implementations must be safe for concurrent use.
type Store interface {
	Save(ctx context.Context, f *audio.File, a *Analysis, beats []tempomap.Beat) (int64, error)
	QueryByBPM(ctx context.Context, min, max float64) ([]Analysis, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Error reports a failed storage operation. A Save failure never rolls back
// an already-successful detection; callers report degraded success instead.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
