package health

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// HealthHandler reports server and database liveness.
type HealthHandler struct {
	log *zap.SugaredLogger
	db  *sql.DB
}

func (*HealthHandler) Pattern() string {
	return "/health"
}

// NewHealthHandler builds a new HealthHandler. db may be nil when no
// database is configured.
func NewHealthHandler(log *zap.SugaredLogger, db *sql.DB) *HealthHandler {
	return &HealthHandler{log: log, db: db}
}

type Response struct {
	Server   bool `json:"server"`
	Database bool `json:"database"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var resp Response
	resp.Server = true
	if h.db != nil {
		resp.Database = h.db.PingContext(r.Context()) == nil
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
