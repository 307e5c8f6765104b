package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/weather-chat/backend/internal/handler/chat"
	middlewarePkg "github.com/zhouzirui/weather-chat/backend/internal/middleware"
	"github.com/zhouzirui/weather-chat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the chat relay.
func NewRouter(relay chat.Relay, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chat.New(relay, logger).RegisterRoutes(r)

	return r
}
