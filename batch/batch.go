// Package batch runs the analyzer over many files with bounded
// parallelism, isolating per-file failures into an aggregate summary.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tempograph/tempograph/analyzer"
	"github.com/tempograph/tempograph/detector"
)

// Request describes one batch run.
type Request struct {
	Algorithm string
	Config    detector.Config

	// Format + OutputDir enable per-file export: each input gets an
	// output file named after it in OutputDir. Empty Format disables.
	Format    string
	OutputDir string

	// SkipExisting skips inputs whose output file already exists.
	SkipExisting bool
}

// Event is pushed once per file completion. Subscribers must not assume
// input order; completion order is nondeterministic.
type Event struct {
	Path      string  `json:"path"`
	Success   bool    `json:"success"`
	Skipped   bool    `json:"skipped"`
	CacheHit  bool    `json:"cache_hit"`
	BPM       float64 `json:"bpm,omitempty"`
	Beats     int     `json:"beats,omitempty"`
	Error     string  `json:"error,omitempty"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
}

// Summary aggregates a batch run. Results are in completion order.
type Summary struct {
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Skipped   int                `json:"skipped"`
	CacheHits int                `json:"cache_hits"`
	Errors    map[string]string  `json:"errors,omitempty"`
	Elapsed   time.Duration      `json:"elapsed"`
	Results   []*analyzer.Result `json:"-"`
}

// Processor schedules analyzer runs across a bounded worker pool.
type Processor struct {
	analyzer *analyzer.Analyzer
	workers  int
	timeout  time.Duration
	hub      *Hub
	log      *zap.SugaredLogger
}

// New builds a Processor. workers bounds the pool; timeout bounds each
// file's run (zero disables). hub may be nil.
func New(an *analyzer.Analyzer, workers int, timeout time.Duration, hub *Hub, log *zap.SugaredLogger) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{analyzer: an, workers: workers, timeout: timeout, hub: hub, log: log}
}

// Run analyzes every path. One file's failure never aborts another's run;
// each outcome lands in the summary as a success or a per-file error.
// Cancelling ctx stops scheduling new files immediately; in-flight files
// see the cancellation through their own contexts, and completed results
// are preserved in the returned summary.
func (p *Processor) Run(ctx context.Context, paths []string, req Request) *Summary {
	start := time.Now()
	sum := &Summary{Total: len(paths), Errors: make(map[string]string)}

	// Fail fast on configuration before touching any file.
	if err := req.Config.Validate(); err != nil {
		for _, path := range paths {
			sum.Errors[path] = err.Error()
		}
		sum.Failed = len(paths)
		sum.Elapsed = time.Since(start)
		return sum
	}

	var (
		mu        sync.Mutex
		completed int
	)
	record := func(res *analyzer.Result, skipped bool) {
		mu.Lock()
		completed++
		done := completed
		ev := Event{Path: res.Path, Skipped: skipped, Completed: done, Total: len(paths)}
		switch {
		case skipped:
			sum.Skipped++
			ev.Success = true
		case res.Err != nil:
			sum.Failed++
			sum.Errors[res.Path] = res.Err.Error()
			ev.Error = res.Err.Error()
		default:
			sum.Succeeded++
			ev.Success = true
			ev.CacheHit = res.CacheHit
			ev.BPM = res.TempoMap.AverageBPM
			ev.Beats = res.TempoMap.BeatCount()
			if res.CacheHit {
				sum.CacheHits++
			}
		}
		sum.Results = append(sum.Results, res)
		mu.Unlock()
		if p.hub != nil {
			p.hub.Publish(ev)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(p.workers)

	for _, path := range paths {
		if ctx.Err() != nil {
			// Cancellation: stop scheduling, keep what finished.
			break
		}
		path := path
		g.Go(func() error {
			record(p.runOne(ctx, path, req))
			return nil
		})
	}
	g.Wait()

	sum.Elapsed = time.Since(start)
	p.log.Infow("batch complete",
		"total", sum.Total,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"cache_hits", sum.CacheHits,
		"elapsed", sum.Elapsed)
	return sum
}

// runOne analyzes one file under the per-file timeout, reporting whether
// the file was skipped because its output already exists.
func (p *Processor) runOne(ctx context.Context, path string, req Request) (*analyzer.Result, bool) {
	areq := analyzer.Request{
		Path:      path,
		Algorithm: req.Algorithm,
		Config:    req.Config,
	}

	var out *os.File
	if req.Format != "" && req.OutputDir != "" {
		outPath := outputPath(path, req.OutputDir, req.Format)
		if req.SkipExisting {
			if _, err := os.Stat(outPath); err == nil {
				return &analyzer.Result{Path: path, State: analyzer.StateDone}, true
			}
		}
		f, err := os.Create(outPath)
		if err != nil {
			return &analyzer.Result{
				Path:  path,
				State: analyzer.StateFailed,
				Err:   fmt.Errorf("create output: %w", err),
			}, false
		}
		out = f
		areq.Format = req.Format
		areq.Output = f
	}

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res := p.analyzer.Run(runCtx, areq)

	if out != nil {
		if err := out.Close(); err != nil && res.ExportErr == nil {
			res.ExportErr = err
		}
		if res.Err != nil {
			os.Remove(out.Name())
		}
	}
	return res, false
}

func outputPath(input, outputDir, format string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, base+"."+format)
}
