package batchrun

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/tempograph/tempograph/batch"
	"github.com/tempograph/tempograph/config"
)

// BatchHandler discovers audio files under a directory and runs the batch
// processor over them. The run is synchronous; per-file progress streams
// through the /progress websocket while it executes.
type BatchHandler struct {
	log  *zap.SugaredLogger
	proc *batch.Processor
	cfg  config.Config
}

func (*BatchHandler) Pattern() string {
	return "/batch"
}

// NewBatchHandler builds a new BatchHandler.
func NewBatchHandler(log *zap.SugaredLogger, proc *batch.Processor, cfg config.Config) *BatchHandler {
	return &BatchHandler{log: log, proc: proc, cfg: cfg}
}

type Request struct {
	Dir          string `json:"dir"`
	Algorithm    string `json:"algorithm,omitempty"`
	Recursive    bool   `json:"recursive,omitempty"`
	Format       string `json:"format,omitempty"`
	OutputDir    string `json:"output_dir,omitempty"`
	SkipExisting bool   `json:"skip_existing,omitempty"`
}

type Response struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	CacheHits int               `json:"cache_hits"`
	Errors    map[string]string `json:"errors,omitempty"`
	ElapsedMS int64             `json:"elapsed_ms"`
}

func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Dir == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Algorithm == "" {
		req.Algorithm = h.cfg.Algorithm
	}

	paths, err := batch.Discover(req.Dir, req.Recursive)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Infow("batch request", "dir", req.Dir, "files", len(paths), "algorithm", req.Algorithm)

	sum := h.proc.Run(r.Context(), paths, batch.Request{
		Algorithm:    req.Algorithm,
		Config:       h.cfg.DetectorConfig(),
		Format:       req.Format,
		OutputDir:    req.OutputDir,
		SkipExisting: req.SkipExisting,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Response{
		Total:     sum.Total,
		Succeeded: sum.Succeeded,
		Failed:    sum.Failed,
		Skipped:   sum.Skipped,
		CacheHits: sum.CacheHits,
		Errors:    sum.Errors,
		ElapsedMS: sum.Elapsed.Milliseconds(),
	})
}
