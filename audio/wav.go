package audio

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

// WAVLoader decodes RIFF/WAV PCM files natively. Other container formats
// belong to external loaders implementing the Loader interface.
type WAVLoader struct{}

// NewWAVLoader builds a WAVLoader.
func NewWAVLoader() *WAVLoader { return &WAVLoader{} }

// Load reads the file, verifies the RIFF/WAVE header, decodes PCM samples
// to a mono float64 buffer and computes the SHA-256 content checksum.
func (l *WAVLoader) Load(ctx context.Context, path string) (*Audio, *File, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &LoadError{Path: path, Err: err}
	}
	sum := sha256.Sum256(raw)

	a, err := decodeWAV(raw)
	if err != nil {
		return nil, nil, &LoadError{Path: path, Err: err}
	}
	a.SourcePath = path

	f := &File{
		Path:       path,
		Checksum:   hex.EncodeToString(sum[:]),
		Duration:   a.Duration,
		SampleRate: a.SampleRate,
		Channels:   a.Channels,
	}
	return a, f, nil
}

var errNotWAV = errors.New("not a RIFF/WAVE stream")

func decodeWAV(raw []byte) (*Audio, error) {
	if len(raw) < 44 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, errNotWAV
	}

	var (
		format     uint16
		channels   int
		sampleRate int
		bitDepth   int
		data       []byte
	)

	// Walk the chunk list: fmt describes the stream, data carries samples.
	off := 12
	for off+8 <= len(raw) {
		id := string(raw[off : off+4])
		size := int(binary.LittleEndian.Uint32(raw[off+4 : off+8]))
		body := off + 8
		if body+size > len(raw) {
			return nil, fmt.Errorf("truncated %q chunk", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, errors.New("short fmt chunk")
			}
			format = binary.LittleEndian.Uint16(raw[body : body+2])
			channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bitDepth = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
		case "data":
			data = raw[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if format != 1 {
		return nil, fmt.Errorf("unsupported WAV encoding %d (PCM only)", format)
	}
	if channels < 1 || sampleRate <= 0 {
		return nil, errors.New("invalid fmt chunk")
	}
	if len(data) == 0 {
		return nil, errors.New("missing data chunk")
	}

	bytesPer := bitDepth / 8
	if bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	frames := len(data) / (bytesPer * channels)
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var mix float64
		for c := 0; c < channels; c++ {
			p := (i*channels + c) * bytesPer
			mix += decodeSample(data[p:p+bytesPer], bitDepth)
		}
		samples[i] = mix / float64(channels)
	}

	return &Audio{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   float64(frames) / float64(sampleRate),
	}, nil
}

func decodeSample(b []byte, bitDepth int) float64 {
	switch bitDepth {
	case 8:
		return (float64(b[0]) - 128) / 128
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xffffff)
		}
		return float64(v) / 8388608
	default: // 32
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	}
}
