package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oncall-agent/engine/internal/broadcast"
	"github.com/oncall-agent/engine/pkg/logger"
	"go.uber.org/zap"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The stream carries no client-controlled actions, only progress events.
	CheckOrigin: func(*http.Request) bool { return true },
}

type StreamHandler struct {
	bcast *broadcast.Broadcaster
}

func NewStreamHandler(bcast *broadcast.Broadcaster) *StreamHandler {
	return &StreamHandler{bcast: bcast}
}

// Stream upgrades the connection and forwards step events for one
// investigation until the client disconnects. Connecting before any event has
// been published is valid; the socket just stays open waiting.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid investigation id")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logger.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	sub := h.bcast.Subscribe(id.String())
	defer h.bcast.Unsubscribe(id.String(), sub)

	logger.L().Debug("step stream opened", zap.String("investigation_id", id.String()))

	// The read loop only exists to observe the close frame; inbound messages
	// are discarded.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
