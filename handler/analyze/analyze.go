package analyze

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tempograph/tempograph/analyzer"
	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/config"
	"github.com/tempograph/tempograph/detector"
	"github.com/tempograph/tempograph/export"
)

// AnalyzeHandler runs a single-file analysis.
type AnalyzeHandler struct {
	log *zap.SugaredLogger
	an  *analyzer.Analyzer
	cfg config.Config
}

func (*AnalyzeHandler) Pattern() string {
	return "/analyze"
}

// NewAnalyzeHandler builds a new AnalyzeHandler.
func NewAnalyzeHandler(log *zap.SugaredLogger, an *analyzer.Analyzer, cfg config.Config) *AnalyzeHandler {
	return &AnalyzeHandler{log: log, an: an, cfg: cfg}
}

type Request struct {
	Path      string `json:"path"`
	Algorithm string `json:"algorithm,omitempty"`
	Format    string `json:"format,omitempty"`
}

type Response struct {
	Path       string  `json:"path"`
	Algorithm  string  `json:"algorithm"`
	AverageBPM float64 `json:"average_bpm"`
	Beats      int     `json:"beats"`
	Duration   float64 `json:"duration"`
	CacheHit   bool    `json:"cache_hit"`
	Stored     bool    `json:"stored"`
	StoreError string  `json:"store_error,omitempty"`
	ElapsedMS  int64   `json:"elapsed_ms"`
	Output     string  `json:"output,omitempty"`
}

func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Algorithm == "" {
		req.Algorithm = h.cfg.Algorithm
	}

	h.log.Infow("analyze request", "path", req.Path, "algorithm", req.Algorithm)

	var out bytes.Buffer
	res := h.an.Run(r.Context(), analyzer.Request{
		Path:      req.Path,
		Algorithm: req.Algorithm,
		Config:    h.cfg.DetectorConfig(),
		Format:    req.Format,
		Output:    &out,
	})
	if res.Err != nil {
		status := http.StatusInternalServerError
		var unsupportedAlgo *detector.UnsupportedAlgorithmError
		var unsupportedFmt *export.UnsupportedFormatError
		var loadErr *audio.LoadError
		switch {
		case errors.As(res.Err, &unsupportedAlgo), errors.As(res.Err, &unsupportedFmt):
			status = http.StatusBadRequest
		case errors.As(res.Err, &loadErr):
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, res.Err.Error(), status)
		return
	}

	resp := Response{
		Path:       res.Path,
		Algorithm:  req.Algorithm,
		AverageBPM: res.TempoMap.AverageBPM,
		Beats:      res.TempoMap.BeatCount(),
		Duration:   res.TempoMap.Duration,
		CacheHit:   res.CacheHit,
		Stored:     res.Stored,
		ElapsedMS:  res.Elapsed.Milliseconds(),
		Output:     out.String(),
	}
	if res.StoreErr != nil {
		resp.StoreError = res.StoreErr.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
