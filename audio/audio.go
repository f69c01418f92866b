// Package audio defines the decoded-audio and file-identity types handed to
// detectors, and the loader contract for turning paths into them.
package audio

import (
	"context"
	"fmt"
)

// Audio is a decoded, mono-mixed audio buffer. SourcePath carries the
// originating file for detectors that re-read the file themselves.
type Audio struct {
	Samples    []float64
	SampleRate int
	Channels   int
	Duration   float64
	SourcePath string
}

// File identifies one audio source. Checksum is content-derived; two File
// records with the same checksum are the same source regardless of path.
type File struct {
	Path       string
	Checksum   string
	Duration   float64
	SampleRate int
	Channels   int
}

// Loader decodes an audio file and computes its identity record.
type Loader interface {
	Load(ctx context.Context, path string) (*Audio, *File, error)
}

// LoadError reports a file that could not be loaded: missing, unsupported
// format, or a corrupt stream.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load audio %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
