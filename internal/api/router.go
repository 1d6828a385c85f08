// Package api serves health, metrics, event submission, the read-only check
// view and the browser notification socket.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"alert-router/internal/metrics"
	"alert-router/internal/providers"
)

type Config struct {
	BasePath string
	// AllowedOrigins restricts websocket upgrades. Empty allows any origin.
	AllowedOrigins []string
}

func NewRouter(h *Handler, logger *logrus.Entry, m *metrics.Metrics, cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger, m))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v0"
	}
	api := r.Group(basePath)
	{
		api.POST("/events", h.SubmitEvent)
		api.GET("/checks/:id", h.GetCheck)
		api.GET("/checks/:id/notifications", h.GetCheckNotifications)
	}

	if h.sockets != nil {
		r.GET("/ws/notifications", h.ServeWebSocket(cfg.AllowedOrigins))
	}
	return r
}

// NewHandler wires the handlers. history and sockets may be nil.
func NewHandler(dispatcher Dispatcher, checks CheckReader, history HistoryReader,
	sockets *providers.WebSocketManager, logger *logrus.Entry) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		checks:     checks,
		history:    history,
		sockets:    sockets,
		logger:     logger.WithField("component", "api"),
	}
}
