package detector

import (
	"context"
	"errors"
	"math"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

const (
	energyFrame = 1024
	energyHop   = 512

	// The envelope tracker has no per-beat confidence model; every beat
	// carries this fixed score.
	energyConfidence = 0.8
)

// EnergyDetector is the built-in beat tracker. It derives an onset-strength
// envelope from frame-energy flux, picks the dominant period inside the
// configured tempo range by autocorrelation, and lays beats on the strongest
// phase of that period.
type EnergyDetector struct{}

// NewEnergyDetector builds an EnergyDetector.
func NewEnergyDetector() *EnergyDetector { return &EnergyDetector{} }

func (d *EnergyDetector) Name() string { return "energy" }

// Detect implements Detector.
func (d *EnergyDetector) Detect(ctx context.Context, a *audio.Audio, cfg Config) (*tempomap.TempoMap, error) {
	if a == nil || len(a.Samples) < energyFrame*2 {
		return nil, errors.New("energy: audio too short for beat tracking")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env := onsetEnvelope(a.Samples)
	if len(env) < 4 {
		return nil, errors.New("energy: envelope too short")
	}

	frameRate := float64(a.SampleRate) / energyHop
	lag := dominantLag(env, frameRate, cfg.TempoMin, cfg.TempoMax)
	if lag <= 0 {
		return nil, errors.New("energy: no periodicity in tempo range")
	}
	bpm := 60.0 * frameRate / float64(lag)

	phase := bestPhase(env, lag)
	period := float64(lag) / frameRate

	bpmeasure := cfg.BeatsPerMeasure
	if bpmeasure <= 0 {
		bpmeasure = tempomap.DefaultBeatsPerMeasure
	}
	var beats []tempomap.Beat
	for i, t := 0, float64(phase)/frameRate; t < a.Duration; i, t = i+1, t+period {
		beats = append(beats, tempomap.Beat{
			Time:       t,
			Position:   i%bpmeasure + 1,
			Confidence: energyConfidence,
		})
	}
	if len(beats) == 0 {
		return nil, errors.New("energy: no beats placed")
	}

	return tempomap.New(beats, bpm, d.Name(), a.Duration,
		tempomap.WithBeatsPerMeasure(bpmeasure))
}

// onsetEnvelope is the half-wave rectified frame-to-frame energy flux.
func onsetEnvelope(samples []float64) []float64 {
	var env []float64
	var prev float64
	for off := 0; off+energyFrame <= len(samples); off += energyHop {
		var e float64
		for _, s := range samples[off : off+energyFrame] {
			e += s * s
		}
		flux := e - prev
		if flux < 0 {
			flux = 0
		}
		env = append(env, flux)
		prev = e
	}
	return env
}

func dominantLag(env []float64, frameRate, tempoMin, tempoMax float64) int {
	minLag := int(60.0 * frameRate / tempoMax)
	maxLag := int(60.0 * frameRate / tempoMin)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(env) {
		maxLag = len(env) - 1
	}
	best, bestScore := 0, math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		var score float64
		for i := lag; i < len(env); i++ {
			score += env[i] * env[i-lag]
		}
		if score > bestScore {
			best, bestScore = lag, score
		}
	}
	return best
}

func bestPhase(env []float64, lag int) int {
	best, bestScore := 0, math.Inf(-1)
	for phase := 0; phase < lag; phase++ {
		var score float64
		for i := phase; i < len(env); i += lag {
			score += env[i]
		}
		if score > bestScore {
			best, bestScore = phase, score
		}
	}
	return best
}
