package progress

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tempograph/tempograph/batch"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, you should validate the origin of the request
		return true
	},
}

// ProgressHandler streams batch progress events over a WebSocket, one
// message per completed file.
type ProgressHandler struct {
	log *zap.SugaredLogger
	hub *batch.Hub
}

func (*ProgressHandler) Pattern() string {
	return "/progress"
}

// NewProgressHandler builds a new ProgressHandler.
func NewProgressHandler(log *zap.SugaredLogger, hub *batch.Hub) *ProgressHandler {
	return &ProgressHandler{log: log, hub: hub}
}

func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("Error upgrading connection to WebSocket", "error", err)
		return
	}
	defer conn.Close()

	h.log.Info("progress client connected")

	events, cancel := h.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debugw("progress client gone", "error", err)
				return
			}
		}
	}
}
