package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

// CSV writes one row per beat: time, position, confidence, bpm.
type CSV struct{}

// Export implements Exporter.
func (CSV) Export(w io.Writer, tm *tempomap.TempoMap, f *audio.File) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "position", "confidence", "bpm"}); err != nil {
		return err
	}
	for _, b := range tm.Beats {
		rec := []string{
			strconv.FormatFloat(b.Time, 'f', -1, 64),
			strconv.Itoa(b.Position),
			strconv.FormatFloat(b.Confidence, 'f', -1, 64),
			strconv.FormatFloat(b.TempoAtBeat, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
