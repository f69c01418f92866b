// Package analyzer drives a single file through load, detect, validate,
// persist and export.
package analyzer

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/cache"
	"github.com/tempograph/tempograph/detector"
	"github.com/tempograph/tempograph/export"
	"github.com/tempograph/tempograph/store"
	"github.com/tempograph/tempograph/tempomap"
)

// State names one stage of a run. Transitions are strictly ordered; Failed
// absorbs from any non-terminal state.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateDetecting  State = "detecting"
	StateValidating State = "validating"
	StatePersisting State = "persisting"
	StateExporting  State = "exporting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Error reports a failed detection: the detector returned an error or the
// per-file deadline expired.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis of %s failed: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Request describes one run.
type Request struct {
	Path      string
	Algorithm string
	Config    detector.Config

	// Format selects an exporter writing to Output; empty skips export.
	Format string
	Output io.Writer
}

// Result is the outcome of one run. A run can succeed in degraded form:
// TempoMap set and Err nil while StoreErr or ExportErr records a failure
// that did not invalidate the detection.
type Result struct {
	Path      string
	State     State
	File      *audio.File
	TempoMap  *tempomap.TempoMap
	CacheHit  bool
	Stored    bool
	StoreErr  error
	ExportErr error
	Elapsed   time.Duration
	Err       error
}

// Analyzer orchestrates runs. The cache and persistence store are the only
// state shared between concurrent runs; both serialize their own writes, so
// Analyzer itself holds nothing mutable and one instance may serve many
// goroutines.
type Analyzer struct {
	registry *detector.Registry
	loader   audio.Loader
	cache    cache.Store // nil disables caching
	store    store.Store // nil disables persistence
	log      *zap.SugaredLogger
}

// New builds an Analyzer. cacheStore and persistence may be nil.
func New(registry *detector.Registry, loader audio.Loader, cacheStore cache.Store, persistence store.Store, log *zap.SugaredLogger) *Analyzer {
	return &Analyzer{
		registry: registry,
		loader:   loader,
		cache:    cacheStore,
		store:    persistence,
		log:      log,
	}
}

// Run analyzes one file. Configuration problems (unknown algorithm or
// format, invalid config) fail before any audio is loaded.
func (an *Analyzer) Run(ctx context.Context, req Request) *Result {
	start := time.Now()
	res := &Result{Path: req.Path, State: StateIdle}
	fail := func(err error) *Result {
		res.State = StateFailed
		res.Err = err
		res.Elapsed = time.Since(start)
		an.log.Warnw("analysis failed", "path", req.Path, "error", err)
		return res
	}

	if err := req.Config.Validate(); err != nil {
		return fail(err)
	}
	det, err := an.registry.Lookup(req.Algorithm)
	if err != nil {
		return fail(err)
	}
	var exp export.Exporter
	if req.Format != "" {
		if exp, err = export.ForFormat(req.Format); err != nil {
			return fail(err)
		}
	}

	res.State = StateLoading
	aud, file, err := an.loader.Load(ctx, req.Path)
	if err != nil {
		return fail(err)
	}
	res.File = file

	res.State = StateDetecting
	key := cache.Key{
		Checksum:   file.Checksum,
		Algorithm:  req.Algorithm,
		ConfigHash: req.Config.Hash(),
	}
	var tm *tempomap.TempoMap
	if an.cache != nil {
		if hit, ok := an.cache.Get(key); ok {
			tm = hit
			res.CacheHit = true
			an.log.Debugw("cache hit", "path", req.Path, "algorithm", req.Algorithm)
		}
	}
	if tm == nil {
		tm, err = det.Detect(ctx, aud, req.Config)
		if err != nil {
			an.recordFailure(ctx, file, req, err)
			return fail(&Error{Path: req.Path, Err: err})
		}
		if req.Config.ConfidenceThreshold > 0 {
			if tm, err = tm.FilterByConfidence(req.Config.ConfidenceThreshold); err != nil {
				an.recordFailure(ctx, file, req, err)
				return fail(&Error{Path: req.Path, Err: err})
			}
		}
	}

	res.State = StateValidating
	if err := tm.Validate(); err != nil {
		// Malformed detector output is a detector bug; surface it
		// verbatim, never repair it.
		an.recordFailure(ctx, file, req, err)
		return fail(err)
	}
	res.TempoMap = tm

	if an.cache != nil && !res.CacheHit {
		if err := an.cache.Put(key, tm); err != nil {
			an.log.Warnw("cache write failed", "path", req.Path, "error", err)
		}
	}

	if an.store != nil {
		res.State = StatePersisting
		rec := &store.Analysis{
			Algorithm:  req.Algorithm,
			Status:     store.StatusCompleted,
			AverageBPM: tm.AverageBPM,
			Processing: time.Since(start),
		}
		if _, err := an.store.Save(ctx, file, rec, tm.Beats); err != nil {
			// Storage failure does not invalidate the detection.
			res.StoreErr = err
			an.log.Warnw("persist failed, keeping in-memory result", "path", req.Path, "error", err)
		} else {
			res.Stored = true
		}
	}

	if exp != nil {
		res.State = StateExporting
		if err := exp.Export(req.Output, tm, file); err != nil {
			res.ExportErr = err
			an.log.Warnw("export failed", "path", req.Path, "format", req.Format, "error", err)
		}
	}

	res.State = StateDone
	res.Elapsed = time.Since(start)
	an.log.Infow("analysis complete",
		"path", req.Path,
		"algorithm", req.Algorithm,
		"bpm", tm.AverageBPM,
		"beats", tm.BeatCount(),
		"cache_hit", res.CacheHit,
		"elapsed", res.Elapsed)
	return res
}

// recordFailure persists a failed analysis record when a store is
// configured and the file identity is known.
func (an *Analyzer) recordFailure(ctx context.Context, file *audio.File, req Request, cause error) {
	if an.store == nil || file == nil {
		return
	}
	rec := &store.Analysis{
		Algorithm: req.Algorithm,
		Status:    store.StatusFailed,
		Error:     cause.Error(),
	}
	if _, err := an.store.Save(ctx, file, rec, nil); err != nil {
		an.log.Warnw("could not record failed analysis", "path", req.Path, "error", err)
	}
}
