package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/weather-chat/backend/internal/model/chat"
	"github.com/zhouzirui/weather-chat/backend/pkg/utils"
)

var errNullBody = errors.New("request body is null")

// Relay 抽象聊天转发服务，便于在测试中替换。
type Relay interface {
	Handle(ctx context.Context, req chat.Request) (chat.Response, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	relay    Relay
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New 创建聊天处理器
func New(relay Relay, logger *zap.Logger) *Handler {
	return &Handler{
		relay:  relay,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/ws", h.handleWebSocket)
}

// handleChat 处理单轮聊天请求
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeRequest(r.Body)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := h.relay.Handle(r.Context(), payload)
	if err != nil {
		h.logger.Error("chat relay failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to generate response")
		return
	}

	utils.RespondJSON(w, http.StatusOK, response)
}

// decodeRequest 解析请求体，JSON null 视为无效请求。
func decodeRequest(body io.Reader) (chat.Request, error) {
	var payload *chat.Request
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return chat.Request{}, err
	}
	if payload == nil {
		return chat.Request{}, errNullBody
	}
	return *payload, nil
}
