// Package export projects tempo maps into the supported output schemas.
// Every format is a pure projection: no format carries information the
// tempo map and file record lack.
package export

import (
	"fmt"
	"io"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

// Exporter writes one tempo map in a concrete schema.
type Exporter interface {
	Export(w io.Writer, tm *tempomap.TempoMap, f *audio.File) error
}

// UnsupportedFormatError reports an unknown output format name.
type UnsupportedFormatError struct {
	Name string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported output format %q", e.Name)
}

// ForFormat resolves a format name to its exporter. Resolution happens
// before any analysis work so a bad format fails fast.
func ForFormat(name string) (Exporter, error) {
	switch name {
	case "jams":
		return JAMS{}, nil
	case "csv":
		return CSV{}, nil
	case "json":
		return JSON{}, nil
	default:
		return nil, &UnsupportedFormatError{Name: name}
	}
}

// Formats lists the supported format names.
func Formats() []string { return []string{"jams", "csv", "json"} }
