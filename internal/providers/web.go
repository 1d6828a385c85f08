package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"alert-router/internal/metrics"
	"alert-router/internal/models"
)

const (
	maxConnectionsPerContact = 10
	writeWait                = 10 * time.Second
)

// ErrNoConnection is returned when a web message's contact has no open socket.
var ErrNoConnection = errors.New("contact has no open web connection")

// WebSocketManager tracks open browser connections per contact.
type WebSocketManager struct {
	connections map[string]map[*websocket.Conn]bool // contactID -> set of connections
	mutex       sync.Mutex
	logger      *logrus.Entry
	metrics     *metrics.Metrics
}

func NewWebSocketManager(logger *logrus.Entry, m *metrics.Metrics) *WebSocketManager {
	return &WebSocketManager{
		connections: make(map[string]map[*websocket.Conn]bool),
		logger:      logger.WithField("component", "websocket"),
		metrics:     m,
	}
}

// AddConnection registers conn for contactID. It returns false when the
// contact is at the connection limit.
func (m *WebSocketManager) AddConnection(contactID string, conn *websocket.Conn) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.connections[contactID]; !exists {
		m.connections[contactID] = make(map[*websocket.Conn]bool)
	}
	if len(m.connections[contactID]) >= maxConnectionsPerContact {
		m.logger.Warnf("Max connections reached for contact %s", contactID)
		return false
	}
	m.connections[contactID][conn] = true
	m.logger.Infof("Added WebSocket connection for contact %s (total: %d)", contactID, len(m.connections[contactID]))
	m.metrics.SetWebSocketClients(m.countLocked())
	return true
}

func (m *WebSocketManager) RemoveConnection(contactID string, conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if conns, exists := m.connections[contactID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(m.connections, contactID)
		}
		m.logger.Infof("Removed WebSocket connection for contact %s (remaining: %d)", contactID, len(conns))
	}
	m.metrics.SetWebSocketClients(m.countLocked())
}

// SendToContact writes payload to every connection of contactID and returns
// how many writes succeeded. Broken connections are dropped.
func (m *WebSocketManager) SendToContact(contactID string, payload []byte) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	conns, exists := m.connections[contactID]
	if !exists {
		return 0
	}
	sent := 0
	for conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			m.logger.Errorf("Failed to send WebSocket message to contact %s: %v", contactID, err)
			_ = conn.Close()
			delete(conns, conn)
			continue
		}
		sent++
	}
	if len(conns) == 0 {
		delete(m.connections, contactID)
	}
	m.metrics.SetWebSocketClients(m.countLocked())
	return sent
}

// Count returns the number of open connections.
func (m *WebSocketManager) Count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.countLocked()
}

func (m *WebSocketManager) countLocked() int {
	n := 0
	for _, conns := range m.connections {
		n += len(conns)
	}
	return n
}

// webPayload is what browsers receive.
type webPayload struct {
	ID               string                  `json:"id"`
	NotificationType models.NotificationType `json:"notification_type"`
	State            models.State            `json:"state"`
	Subject          string                  `json:"subject"`
	Summary          string                  `json:"summary"`
	EventID          string                  `json:"event_id"`
	Time             int64                   `json:"time"`
}

// Web pushes notifications to the contact's open browser sessions. The
// message address is unused; delivery is keyed by contact id.
type Web struct {
	manager *WebSocketManager
	logger  *logrus.Entry
}

func NewWeb(manager *WebSocketManager, logger *logrus.Entry) *Web {
	return &Web{manager: manager, logger: logger.WithField("transport", "web")}
}

func (w *Web) Medium() models.Medium { return models.MediumWeb }

func (w *Web) Deliver(_ context.Context, msg *models.Message) error {
	if err := require(
		field{msg.ContactID, "contact id"},
		field{msg.ID, "message id"},
	); err != nil {
		return err
	}
	payload, err := json.Marshal(webPayload{
		ID:               msg.ID,
		NotificationType: msg.NotificationType,
		State:            msg.State,
		Subject:          Subject(msg),
		Summary:          msg.Summary,
		EventID:          msg.EventID,
		Time:             msg.Time,
	})
	if err != nil {
		return fmt.Errorf("marshal web payload: %w", err)
	}
	if w.manager.SendToContact(msg.ContactID, payload) == 0 {
		return fmt.Errorf("%w: %s", ErrNoConnection, msg.ContactID)
	}
	w.logger.WithField("message_id", msg.ID).Info("pushed web notification")
	return nil
}
