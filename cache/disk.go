package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tempograph/tempograph/tempomap"
)

// Disk is a Store backed by one JSON file per entry under a cache
// directory, so results survive process restarts.
//
// An entry that fails to deserialize is corruption: Get logs it and
// reports a miss so the caller falls through to fresh detection.
type Disk struct {
	dir string
	log *zap.SugaredLogger
}

// NewDisk builds a disk store rooted at dir, creating it if needed.
func NewDisk(dir string, log *zap.SugaredLogger) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Disk{dir: dir, log: log}, nil
}

func (d *Disk) path(key Key) string {
	sum := sha256.Sum256([]byte(key.Checksum + "\x00" + key.Algorithm + "\x00" + key.ConfigHash))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:])+".json")
}

// Get implements Store.
func (d *Disk) Get(key Key) (*tempomap.TempoMap, bool) {
	raw, err := os.ReadFile(d.path(key))
	if err != nil {
		return nil, false
	}
	var tm tempomap.TempoMap
	if err := json.Unmarshal(raw, &tm); err != nil {
		d.log.Warnw("corrupt cache entry, treating as miss",
			"algorithm", key.Algorithm, "checksum", key.Checksum, "error", err)
		return nil, false
	}
	if err := tm.Validate(); err != nil {
		d.log.Warnw("cached tempo map fails validation, treating as miss",
			"algorithm", key.Algorithm, "checksum", key.Checksum, "error", err)
		return nil, false
	}
	return &tm, true
}

// Put implements Store. The write goes through a temp file and rename so
// concurrent readers never observe a partial entry.
func (d *Disk) Put(key Key, tm *tempomap.TempoMap) error {
	raw, err := json.Marshal(tm)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(d.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}
