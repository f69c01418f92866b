package export

import (
	"encoding/json"
	"io"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

// JSON writes the structured result object: beats plus file metadata.
type JSON struct{}

type jsonDoc struct {
	File       string             `json:"file"`
	Checksum   string             `json:"checksum,omitempty"`
	Duration   float64            `json:"duration"`
	SampleRate int                `json:"sample_rate"`
	Algorithm  string             `json:"algorithm"`
	AverageBPM float64            `json:"average_bpm"`
	Beats      []tempomap.Beat    `json:"beats"`
	Segments   []tempomap.Segment `json:"segments,omitempty"`
}

// Export implements Exporter.
func (JSON) Export(w io.Writer, tm *tempomap.TempoMap, f *audio.File) error {
	doc := jsonDoc{
		File:       f.Path,
		Checksum:   f.Checksum,
		Duration:   tm.Duration,
		SampleRate: f.SampleRate,
		Algorithm:  tm.Algorithm,
		AverageBPM: tm.AverageBPM,
		Beats:      tm.Beats,
		Segments:   tm.Segments,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
