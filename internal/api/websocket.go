package api

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ServeWebSocket upgrades the request and registers the connection for the
// contact named by ?contact_id= until the client goes away.
func (h *Handler) ServeWebSocket(allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
	return func(c *gin.Context) {
		contactID := c.Query("contact_id")
		if contactID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "contact_id is required"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.WithError(err).Warn("websocket upgrade failed")
			return
		}
		if !h.sockets.AddConnection(contactID, conn) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections"))
			_ = conn.Close()
			return
		}
		defer func() {
			h.sockets.RemoveConnection(contactID, conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
