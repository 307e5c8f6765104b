package chat

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type errorFrame struct {
	Error string `json:"error"`
}

// handleWebSocket serves the same relay over a WebSocket. Each text frame carries one
// request and receives exactly one reply frame; frames are processed in order.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("conn", uuid.NewString()))
	logger.Debug("websocket connected", zap.String("remote", r.RemoteAddr))

	ctx := r.Context()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			logger.Debug("websocket closed")
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		payload, err := decodeRequest(bytes.NewReader(data))
		if err != nil {
			if err := conn.WriteJSON(errorFrame{Error: "invalid request body"}); err != nil {
				return
			}
			continue
		}

		var reply any
		response, err := h.relay.Handle(ctx, payload)
		if err != nil {
			logger.Error("chat relay failed", zap.Error(err))
			reply = errorFrame{Error: "failed to generate response"}
		} else {
			reply = response
		}

		if err := conn.WriteJSON(reply); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				logger.Warn("websocket write failed", zap.Error(err))
			}
			return
		}
	}
}
