// Package detector defines the beat-detection contract and the registry
// that resolves algorithm names to implementations.
package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

// Detector produces a tempo map from decoded audio. Implementations must
// return an error on failure rather than a malformed map.
type Detector interface {
	Name() string
	Detect(ctx context.Context, a *audio.Audio, cfg Config) (*tempomap.TempoMap, error)
}

// Config carries the analysis parameters shared by all detectors. Its hash
// is part of the cache key, so the zero value must stay stable across runs.
type Config struct {
	SampleRate          int     `json:"sample_rate"`
	TempoMin            float64 `json:"tempo_min"`
	TempoMax            float64 `json:"tempo_max"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	BeatsPerMeasure     int     `json:"beats_per_measure"`
}

// DefaultConfig mirrors the defaults callers get with no overrides.
func DefaultConfig() Config {
	return Config{
		SampleRate:      22050,
		TempoMin:        30,
		TempoMax:        300,
		BeatsPerMeasure: tempomap.DefaultBeatsPerMeasure,
	}
}

// Validate rejects configurations no detector can honor.
func (c Config) Validate() error {
	if c.TempoMin <= 0 || c.TempoMax <= c.TempoMin {
		return fmt.Errorf("tempo range [%g, %g] invalid: min must be positive and below max", c.TempoMin, c.TempoMax)
	}
	if c.TempoMin < 20 {
		return fmt.Errorf("tempo min %g too low (>= 20)", c.TempoMin)
	}
	if c.TempoMax > 500 {
		return fmt.Errorf("tempo max %g too high (<= 500)", c.TempoMax)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %g outside [0,1]", c.ConfidenceThreshold)
	}
	if c.BeatsPerMeasure < 1 {
		return fmt.Errorf("beats per measure %d must be >= 1", c.BeatsPerMeasure)
	}
	return nil
}

// Hash returns a deterministic digest of the configuration, used together
// with the file checksum and algorithm name as the cache key.
func (c Config) Hash() string {
	// json.Marshal emits struct fields in declaration order, so the
	// encoding is canonical for this fixed shape.
	raw, _ := json.Marshal(c)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// UnsupportedAlgorithmError reports a lookup for an unregistered algorithm.
type UnsupportedAlgorithmError struct {
	Name string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported algorithm %q", e.Name)
}

// Registry maps algorithm names to detectors. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	detectors map[string]Detector
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{detectors: make(map[string]Detector)}
}

// Register adds or replaces a detector under its name.
func (r *Registry) Register(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors[d.Name()] = d
}

// Lookup resolves an algorithm name, failing with
// *UnsupportedAlgorithmError for unknown names. Callers resolve before any
// audio is loaded so bad configuration fails fast.
func (r *Registry) Lookup(name string) (Detector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[name]
	if !ok {
		return nil, &UnsupportedAlgorithmError{Name: name}
	}
	return d, nil
}

// Names lists the registered algorithms, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.detectors))
	for name := range r.detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProvideRegistry builds the registry with the built-in detectors.
func ProvideRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewEnergyDetector())
	r.Register(NewAubioDetector(""))
	return r
}

var Options = ProvideRegistry
