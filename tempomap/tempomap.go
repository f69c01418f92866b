// Package tempomap holds the beat and tempo data model produced by detectors.
package tempomap

import (
	"fmt"
	"math"
	"sort"
)

// DefaultBeatsPerMeasure is assumed when a detector does not report a meter.
const DefaultBeatsPerMeasure = 4

// Beat is a single timestamped rhythmic event.
type Beat struct {
	// Time in seconds from the start of the file.
	Time float64 `json:"time"`

	// Position within the measure, 1-based, cycling 1..BeatsPerMeasure.
	Position int `json:"position"`

	// Confidence score in [0, 1], reported by the detector as-is.
	Confidence float64 `json:"confidence"`

	// TempoAtBeat is the instantaneous BPM estimate at this beat.
	TempoAtBeat float64 `json:"tempo_at_beat"`
}

// Segment is a tempo-change interval with a constant BPM.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	BPM   float64 `json:"bpm"`
}

// InvalidError reports a tempo map that violates the model invariants.
// Detector output failing these checks is a detector bug and is surfaced
// verbatim rather than repaired.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid tempo map: %s", e.Reason)
}

// TempoMap is the full beat/tempo description of one analyzed file.
//
// A TempoMap is immutable once constructed; the fields are exported for
// serialization but must not be mutated. Fix-ups like FilterByConfidence
// return a new instance.
type TempoMap struct {
	Beats           []Beat    `json:"beats"`
	AverageBPM      float64   `json:"average_bpm"`
	Algorithm       string    `json:"algorithm"`
	Duration        float64   `json:"duration"`
	BeatsPerMeasure int       `json:"beats_per_measure"`
	Segments        []Segment `json:"segments,omitempty"`
}

// New validates and constructs a TempoMap.
//
// Beats must be strictly time-ascending with non-negative times, confidences
// in [0, 1] and positions in [1, beatsPerMeasure]. averageBPM must be
// positive and duration must cover the last beat. A zero TempoAtBeat is
// derived from the preceding inter-beat interval (the first beat falls back
// to averageBPM).
func New(beats []Beat, averageBPM float64, algorithm string, duration float64, opts ...Option) (*TempoMap, error) {
	tm := &TempoMap{
		Beats:           append([]Beat(nil), beats...),
		AverageBPM:      averageBPM,
		Algorithm:       algorithm,
		Duration:        duration,
		BeatsPerMeasure: DefaultBeatsPerMeasure,
	}
	for _, opt := range opts {
		opt(tm)
	}

	for i := range tm.Beats {
		if tm.Beats[i].TempoAtBeat == 0 {
			if i == 0 {
				tm.Beats[i].TempoAtBeat = averageBPM
			} else if dt := tm.Beats[i].Time - tm.Beats[i-1].Time; dt > 0 {
				tm.Beats[i].TempoAtBeat = 60.0 / dt
			}
		}
	}

	if err := tm.Validate(); err != nil {
		return nil, err
	}
	return tm, nil
}

// Option customizes construction.
type Option func(*TempoMap)

// WithBeatsPerMeasure overrides the assumed meter.
func WithBeatsPerMeasure(n int) Option {
	return func(tm *TempoMap) { tm.BeatsPerMeasure = n }
}

// WithSegments attaches tempo-change segments.
func WithSegments(segments []Segment) Option {
	return func(tm *TempoMap) { tm.Segments = append([]Segment(nil), segments...) }
}

// Validate re-checks every model invariant. The constructor already runs
// this; the orchestrator runs it again on detector and cache output.
func (tm *TempoMap) Validate() error {
	if tm == nil {
		return &InvalidError{Reason: "nil tempo map"}
	}
	if len(tm.Beats) == 0 {
		return &InvalidError{Reason: "no beats"}
	}
	if tm.AverageBPM <= 0 {
		return &InvalidError{Reason: fmt.Sprintf("average bpm must be positive, got %g", tm.AverageBPM)}
	}
	bpm := tm.BeatsPerMeasure
	if bpm <= 0 {
		return &InvalidError{Reason: fmt.Sprintf("beats per measure must be positive, got %d", bpm)}
	}
	var prev float64 = -1
	for i, b := range tm.Beats {
		if b.Time < 0 {
			return &InvalidError{Reason: fmt.Sprintf("beat %d: negative time %g", i, b.Time)}
		}
		if b.Time <= prev && i > 0 {
			return &InvalidError{Reason: fmt.Sprintf("beat %d: time %g not after %g", i, b.Time, prev)}
		}
		if b.Confidence < 0 || b.Confidence > 1 {
			return &InvalidError{Reason: fmt.Sprintf("beat %d: confidence %g outside [0,1]", i, b.Confidence)}
		}
		if b.Position < 1 || b.Position > bpm {
			return &InvalidError{Reason: fmt.Sprintf("beat %d: position %d outside [1,%d]", i, b.Position, bpm)}
		}
		if b.TempoAtBeat <= 0 {
			return &InvalidError{Reason: fmt.Sprintf("beat %d: tempo %g must be positive", i, b.TempoAtBeat)}
		}
		prev = b.Time
	}
	if last := tm.Beats[len(tm.Beats)-1].Time; tm.Duration < last {
		return &InvalidError{Reason: fmt.Sprintf("duration %g shorter than last beat %g", tm.Duration, last)}
	}
	for i, s := range tm.Segments {
		if s.End <= s.Start || s.BPM <= 0 {
			return &InvalidError{Reason: fmt.Sprintf("segment %d: invalid interval", i)}
		}
		if i > 0 && s.Start < tm.Segments[i-1].End {
			return &InvalidError{Reason: fmt.Sprintf("segment %d: overlaps previous", i)}
		}
	}
	return nil
}

// BeatCount reports the number of beats.
func (tm *TempoMap) BeatCount() int { return len(tm.Beats) }

// MedianBPM computes the measured tempo from inter-beat intervals,
// independent of the detector-reported AverageBPM.
func (tm *TempoMap) MedianBPM() float64 {
	if len(tm.Beats) < 2 {
		return tm.AverageBPM
	}
	intervals := make([]float64, 0, len(tm.Beats)-1)
	for i := 1; i < len(tm.Beats); i++ {
		intervals = append(intervals, tm.Beats[i].Time-tm.Beats[i-1].Time)
	}
	sort.Float64s(intervals)
	var median float64
	n := len(intervals)
	if n%2 == 1 {
		median = intervals[n/2]
	} else {
		median = (intervals[n/2-1] + intervals[n/2]) / 2
	}
	if median <= 0 {
		return tm.AverageBPM
	}
	return 60.0 / median
}

// Downbeats returns the times of position-1 beats.
func (tm *TempoMap) Downbeats() []float64 {
	var times []float64
	for _, b := range tm.Beats {
		if b.Position == 1 {
			times = append(times, b.Time)
		}
	}
	return times
}

// TempoAt returns the tempo in effect at the given time: the BPM of the
// covering segment when segments exist, AverageBPM otherwise.
func (tm *TempoMap) TempoAt(t float64) float64 {
	for _, s := range tm.Segments {
		if t >= s.Start && t < s.End {
			return s.BPM
		}
	}
	return tm.AverageBPM
}

// FilterByConfidence returns a new TempoMap keeping only beats at or above
// min confidence, with AverageBPM recomputed from the surviving intervals.
func (tm *TempoMap) FilterByConfidence(min float64) (*TempoMap, error) {
	kept := make([]Beat, 0, len(tm.Beats))
	for _, b := range tm.Beats {
		if b.Confidence >= min {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		return nil, &InvalidError{Reason: fmt.Sprintf("no beats with confidence >= %g", min)}
	}
	avg := tm.AverageBPM
	if len(kept) > 1 {
		var sum float64
		for i := 1; i < len(kept); i++ {
			sum += kept[i].Time - kept[i-1].Time
		}
		avg = 60.0 / (sum / float64(len(kept)-1))
	}
	// TempoAtBeat no longer matches the thinned intervals; rederive.
	for i := range kept {
		kept[i].TempoAtBeat = 0
	}
	return New(kept, avg, tm.Algorithm, tm.Duration,
		WithBeatsPerMeasure(tm.BeatsPerMeasure), WithSegments(tm.Segments))
}

// QuantizeToGrid returns a new TempoMap with beat times snapped to the
// nearest multiple of step seconds. Beats collapsing onto the same grid
// point keep only the first.
func (tm *TempoMap) QuantizeToGrid(step float64) (*TempoMap, error) {
	if step <= 0 {
		return nil, &InvalidError{Reason: fmt.Sprintf("grid step must be positive, got %g", step)}
	}
	quantized := make([]Beat, 0, len(tm.Beats))
	var prev float64 = -1
	for _, b := range tm.Beats {
		b.Time = math.Round(b.Time/step) * step
		b.TempoAtBeat = 0
		if b.Time <= prev && len(quantized) > 0 {
			continue
		}
		quantized = append(quantized, b)
		prev = b.Time
	}
	duration := tm.Duration
	if last := quantized[len(quantized)-1].Time; last > duration {
		duration = last
	}
	return New(quantized, tm.AverageBPM, tm.Algorithm, duration,
		WithBeatsPerMeasure(tm.BeatsPerMeasure), WithSegments(tm.Segments))
}

// Equal reports structural equality: identical beat sequences and metadata.
func (tm *TempoMap) Equal(other *TempoMap) bool {
	if tm == nil || other == nil {
		return tm == other
	}
	if tm.AverageBPM != other.AverageBPM ||
		tm.Algorithm != other.Algorithm ||
		tm.Duration != other.Duration ||
		tm.BeatsPerMeasure != other.BeatsPerMeasure ||
		len(tm.Beats) != len(other.Beats) ||
		len(tm.Segments) != len(other.Segments) {
		return false
	}
	for i := range tm.Beats {
		if tm.Beats[i] != other.Beats[i] {
			return false
		}
	}
	for i := range tm.Segments {
		if tm.Segments[i] != other.Segments[i] {
			return false
		}
	}
	return true
}
