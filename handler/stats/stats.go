package stats

import (
	"encoding/json"
	"net/http"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/tempograph/tempograph/store"
)

// StatsHandler serves aggregate statistics over stored analyses.
type StatsHandler struct {
	log   *zap.SugaredLogger
	store store.Store
}

func (*StatsHandler) Pattern() string {
	return "/stats"
}

// NewStatsHandler builds a new StatsHandler.
func NewStatsHandler(log *zap.SugaredLogger, s store.Store) *StatsHandler {
	return &StatsHandler{log: log, store: s}
}

type AlgorithmStats struct {
	Name   string  `json:"name"`
	Count  int64   `json:"count"`
	AvgBPM float64 `json:"avg_bpm"`
}

type Response struct {
	TotalFiles    int64            `json:"total_files"`
	TotalAnalyses int64            `json:"total_analyses"`
	TotalBeats    int64            `json:"total_beats"`
	AvgBPM        float64          `json:"avg_bpm"`
	MinBPM        float64          `json:"min_bpm"`
	MaxBPM        float64          `json:"max_bpm"`
	TotalDuration float64          `json:"total_duration"`
	ByAlgorithm   []AlgorithmStats `json:"by_algorithm"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := Response{
		TotalFiles:    s.TotalFiles,
		TotalAnalyses: s.TotalAnalyses,
		TotalBeats:    s.TotalBeats,
		AvgBPM:        s.AvgBPM,
		MinBPM:        s.MinBPM,
		MaxBPM:        s.MaxBPM,
		TotalDuration: s.TotalDuration,
	}

	names := maps.Keys(s.ByAlgorithm)
	sort.Strings(names)
	for _, name := range names {
		as := s.ByAlgorithm[name]
		resp.ByAlgorithm = append(resp.ByAlgorithm, AlgorithmStats{
			Name: name, Count: as.Count, AvgBPM: as.AvgBPM,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
