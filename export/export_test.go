package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

func fixture(t *testing.T) (*tempomap.TempoMap, *audio.File) {
	t.Helper()
	beats := []tempomap.Beat{
		{Time: 0.5, Position: 1, Confidence: 0.9},
		{Time: 1.0, Position: 2, Confidence: 0.9},
		{Time: 1.5, Position: 3, Confidence: 0.8},
		{Time: 2.0, Position: 4, Confidence: 0.9},
	}
	tm, err := tempomap.New(beats, 120, "energy", 10.0)
	if err != nil {
		t.Fatal(err)
	}
	f := &audio.File{
		Path:       "/music/track.wav",
		Checksum:   "abc123",
		Duration:   10.0,
		SampleRate: 22050,
		Channels:   2,
	}
	return tm, f
}

func TestForFormat(t *testing.T) {
	for _, name := range Formats() {
		if _, err := ForFormat(name); err != nil {
			t.Errorf("ForFormat(%q) error = %v", name, err)
		}
	}
	_, err := ForFormat("yaml")
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("ForFormat(yaml) error = %v, want *UnsupportedFormatError", err)
	}
}

func TestJAMSProjection(t *testing.T) {
	tm, f := fixture(t)
	var buf bytes.Buffer
	if err := (JAMS{}).Export(&buf, tm, f); err != nil {
		t.Fatal(err)
	}

	var doc struct {
		FileMetadata struct {
			Duration    float64           `json:"duration"`
			Identifiers map[string]string `json:"identifiers"`
		} `json:"file_metadata"`
		Annotations []struct {
			Namespace string `json:"namespace"`
			Data      []struct {
				Time       float64 `json:"time"`
				Duration   float64 `json:"duration"`
				Value      float64 `json:"value"`
				Confidence float64 `json:"confidence"`
			} `json:"data"`
		} `json:"annotations"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}

	if doc.FileMetadata.Duration != 10.0 {
		t.Errorf("duration = %g", doc.FileMetadata.Duration)
	}
	if doc.FileMetadata.Identifiers["file"] != f.Path {
		t.Errorf("identifiers = %v", doc.FileMetadata.Identifiers)
	}
	if len(doc.Annotations) != 2 {
		t.Fatalf("annotations = %d, want tempo + beat", len(doc.Annotations))
	}

	tempo := doc.Annotations[0]
	if tempo.Namespace != "tempo" || len(tempo.Data) != 1 {
		t.Fatalf("tempo annotation = %+v", tempo)
	}
	if tempo.Data[0].Duration == 0 {
		t.Error("tempo observation must span a nonzero duration")
	}
	if tempo.Data[0].Value != 120 {
		t.Errorf("tempo value = %g", tempo.Data[0].Value)
	}

	beat := doc.Annotations[1]
	if beat.Namespace != "beat" || len(beat.Data) != 4 {
		t.Fatalf("beat annotation = %+v", beat)
	}
	for i, ob := range beat.Data {
		if ob.Duration != 0 {
			t.Errorf("beat %d: nonzero duration %g", i, ob.Duration)
		}
		if ob.Value != float64(i+1) {
			t.Errorf("beat %d: value %g, want position %d", i, ob.Value, i+1)
		}
	}
}

func TestCSVProjection(t *testing.T) {
	tm, f := fixture(t)
	var buf bytes.Buffer
	if err := (CSV{}).Export(&buf, tm, f); err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Fatalf("rows = %d, want header + 4 beats", len(records))
	}
	if strings.Join(records[0], ",") != "time,position,confidence,bpm" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "0.5" || records[1][1] != "1" {
		t.Errorf("first row = %v", records[1])
	}
}

func TestJSONProjection(t *testing.T) {
	tm, f := fixture(t)
	var buf bytes.Buffer
	if err := (JSON{}).Export(&buf, tm, f); err != nil {
		t.Fatal(err)
	}

	var doc struct {
		File       string          `json:"file"`
		Checksum   string          `json:"checksum"`
		Duration   float64         `json:"duration"`
		SampleRate int             `json:"sample_rate"`
		Algorithm  string          `json:"algorithm"`
		AverageBPM float64         `json:"average_bpm"`
		Beats      []tempomap.Beat `json:"beats"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.File != f.Path || doc.Checksum != f.Checksum || doc.SampleRate != 22050 {
		t.Errorf("metadata = %+v", doc)
	}
	if doc.AverageBPM != 120 || doc.Algorithm != "energy" {
		t.Errorf("tempo fields = %g/%s", doc.AverageBPM, doc.Algorithm)
	}
	if len(doc.Beats) != 4 {
		t.Errorf("beats = %d, want 4", len(doc.Beats))
	}
}
