package export

import (
	"encoding/json"
	"io"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

// JAMS writes a JAMS-style annotation document: beats as zero-duration
// events valued by metrical position, plus one tempo observation spanning
// the file duration.
type JAMS struct{}

type jamsDoc struct {
	FileMetadata jamsFileMetadata `json:"file_metadata"`
	Annotations  []jamsAnnotation `json:"annotations"`
}

type jamsFileMetadata struct {
	Duration    float64           `json:"duration"`
	Identifiers map[string]string `json:"identifiers"`
}

type jamsAnnotation struct {
	Namespace string            `json:"namespace"`
	Metadata  map[string]string `json:"annotation_metadata"`
	Data      []jamsObservation `json:"data"`
}

type jamsObservation struct {
	Time       float64 `json:"time"`
	Duration   float64 `json:"duration"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Export implements Exporter.
func (JAMS) Export(w io.Writer, tm *tempomap.TempoMap, f *audio.File) error {
	meta := map[string]string{"data_source": tm.Algorithm}

	tempo := jamsAnnotation{Namespace: "tempo", Metadata: meta}
	if len(tm.Segments) > 0 {
		for _, s := range tm.Segments {
			tempo.Data = append(tempo.Data, jamsObservation{
				Time: s.Start, Duration: s.End - s.Start, Value: s.BPM, Confidence: 1,
			})
		}
	} else {
		tempo.Data = append(tempo.Data, jamsObservation{
			Time: 0, Duration: tm.Duration, Value: tm.AverageBPM, Confidence: 1,
		})
	}

	beat := jamsAnnotation{Namespace: "beat", Metadata: meta}
	for _, b := range tm.Beats {
		beat.Data = append(beat.Data, jamsObservation{
			Time: b.Time, Duration: 0, Value: float64(b.Position), Confidence: b.Confidence,
		})
	}

	doc := jamsDoc{
		FileMetadata: jamsFileMetadata{
			Duration:    tm.Duration,
			Identifiers: map[string]string{"file": f.Path},
		},
		Annotations: []jamsAnnotation{tempo, beat},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
