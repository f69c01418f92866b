package analyses

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/tempograph/tempograph/store"
)

// AnalysesHandler serves BPM range queries over stored analyses.
type AnalysesHandler struct {
	log   *zap.SugaredLogger
	store store.Store
}

func (*AnalysesHandler) Pattern() string {
	return "/analyses"
}

// NewAnalysesHandler builds a new AnalysesHandler.
func NewAnalysesHandler(log *zap.SugaredLogger, s store.Store) *AnalysesHandler {
	return &AnalysesHandler{log: log, store: s}
}

type Analysis struct {
	ID         int64   `json:"id"`
	Path       string  `json:"path"`
	Checksum   string  `json:"checksum"`
	Duration   float64 `json:"duration"`
	Algorithm  string  `json:"algorithm"`
	Status     string  `json:"status"`
	AverageBPM float64 `json:"average_bpm"`
	BeatCount  int     `json:"beat_count"`
}

type Response struct {
	Analyses []Analysis `json:"analyses"`
}

func (h *AnalysesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minBPM := parseOr(q.Get("min_bpm"), 0)
	maxBPM := parseOr(q.Get("max_bpm"), 1000)
	if maxBPM < minBPM {
		http.Error(w, "max_bpm below min_bpm", http.StatusBadRequest)
		return
	}

	h.log.Infow("query analyses", "min_bpm", minBPM, "max_bpm", maxBPM)

	records, err := h.store.QueryByBPM(r.Context(), minBPM, maxBPM)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := Response{Analyses: make([]Analysis, 0, len(records))}
	for _, rec := range records {
		a := Analysis{
			ID:         rec.ID,
			Algorithm:  rec.Algorithm,
			Status:     string(rec.Status),
			AverageBPM: rec.AverageBPM,
			BeatCount:  rec.BeatCount,
		}
		if rec.File != nil {
			a.Path = rec.File.Path
			a.Checksum = rec.File.Checksum
			a.Duration = rec.File.Duration
		}
		resp.Analyses = append(resp.Analyses, a)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func parseOr(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
