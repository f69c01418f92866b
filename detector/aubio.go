package detector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

// aubio reports a tempo estimate but no per-beat confidence.
const aubioConfidence = 0.9

// AubioDetector shells out to the aubio CLI ("aubio beat <file>") and
// parses the emitted beat timestamps. The audio buffer is ignored; aubio
// decodes the file itself, so the detector only needs the source path.
type AubioDetector struct {
	bin string
}

// NewAubioDetector builds an AubioDetector. bin overrides the binary path;
// empty means "aubio" from PATH.
func NewAubioDetector(bin string) *AubioDetector {
	if bin == "" {
		bin = "aubio"
	}
	return &AubioDetector{bin: bin}
}

func (d *AubioDetector) Name() string { return "aubio" }

// Detect implements Detector.
func (d *AubioDetector) Detect(ctx context.Context, a *audio.Audio, cfg Config) (*tempomap.TempoMap, error) {
	if a == nil || a.SourcePath == "" {
		return nil, errors.New("aubio: no source path on audio buffer")
	}
	if _, err := exec.LookPath(d.bin); err != nil {
		return nil, fmt.Errorf("aubio binary not found: %w", err)
	}

	out, err := exec.CommandContext(ctx, d.bin, "beat", "-i", a.SourcePath).Output()
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("aubio beat failed: %w", err)
	}

	times, err := parseAubioBeats(string(out))
	if err != nil {
		return nil, err
	}

	bpmeasure := cfg.BeatsPerMeasure
	if bpmeasure <= 0 {
		bpmeasure = tempomap.DefaultBeatsPerMeasure
	}
	beats := make([]tempomap.Beat, 0, len(times))
	for i, t := range times {
		beats = append(beats, tempomap.Beat{
			Time:       t,
			Position:   i%bpmeasure + 1,
			Confidence: aubioConfidence,
		})
	}

	avg := averageBPM(times)
	if avg <= 0 {
		return nil, errors.New("aubio: cannot derive tempo from beat list")
	}

	duration := a.Duration
	if last := times[len(times)-1]; last > duration {
		duration = last
	}
	return tempomap.New(beats, avg, d.Name(), duration,
		tempomap.WithBeatsPerMeasure(bpmeasure))
}

// parseAubioBeats reads one beat timestamp per line, skipping noise lines.
func parseAubioBeats(out string) ([]float64, error) {
	var times []float64
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		if len(times) > 0 && t <= times[len(times)-1] {
			continue
		}
		times = append(times, t)
	}
	if len(times) == 0 {
		return nil, errors.New("aubio: no beats in output")
	}
	return times, nil
}

func averageBPM(times []float64) float64 {
	if len(times) < 2 {
		return 0
	}
	span := times[len(times)-1] - times[0]
	if span <= 0 {
		return 0
	}
	return 60.0 * float64(len(times)-1) / span
}
