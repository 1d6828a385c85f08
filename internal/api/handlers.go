package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"alert-router/internal/db"
	"alert-router/internal/models"
	"alert-router/internal/notification"
	"alert-router/internal/providers"
)

// Dispatcher runs events through the notification pipeline.
type Dispatcher interface {
	Process(ctx context.Context, event *models.Event) (notification.Result, error)
	QueueEvent(event *models.Event) bool
}

type CheckReader interface {
	GetCheck(ctx context.Context, id string) (*models.Check, error)
}

type HistoryReader interface {
	RecentNotifications(ctx context.Context, checkID string, limit int) ([]db.SentNotification, error)
}

type Handler struct {
	dispatcher Dispatcher
	checks     CheckReader
	history    HistoryReader
	sockets    *providers.WebSocketManager
	logger     *logrus.Entry
}

type eventResponse struct {
	CheckID   string   `json:"check_id"`
	Queued    bool     `json:"queued,omitempty"`
	Blocked   bool     `json:"blocked"`
	Filter    string   `json:"filter,omitempty"`
	Messages  []string `json:"messages,omitempty"`
	Published int      `json:"published"`
	Error     string   `json:"error,omitempty"`
}

// SubmitEvent accepts one event. With ?async=true it is queued to the
// dispatch workers and 202 is returned; otherwise it is processed inline.
func (h *Handler) SubmitEvent(c *gin.Context) {
	var payload models.EventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.WithError(err).Warn("invalid event body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	event, err := payload.Event()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if !h.dispatcher.QueueEvent(event) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event queue is full"})
			return
		}
		c.JSON(http.StatusAccepted, eventResponse{CheckID: event.CheckID(), Queued: true})
		return
	}

	res, err := h.dispatcher.Process(c.Request.Context(), event)
	resp := eventResponse{
		CheckID:   event.CheckID(),
		Blocked:   res.Blocked,
		Filter:    res.Filter,
		Published: res.Published,
	}
	for _, msg := range res.Messages {
		resp.Messages = append(resp.Messages, msg.ID)
	}
	if err != nil {
		h.logger.WithError(err).WithField("check", event.CheckID()).Error("event processing failed")
		resp.Error = err.Error()
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type checkResponse struct {
	*models.Check
	State                    models.State `json:"state"`
	InScheduledMaintenance   bool         `json:"in_scheduled_maintenance"`
	InUnscheduledMaintenance bool         `json:"in_unscheduled_maintenance"`
}

func (h *Handler) GetCheck(c *gin.Context) {
	id := c.Param("id")
	check, err := h.checks.GetCheck(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Check not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("check", id).Error("get check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get check"})
		return
	}
	now := time.Now()
	c.JSON(http.StatusOK, checkResponse{
		Check:                    check,
		State:                    check.State(),
		InScheduledMaintenance:   check.InScheduledMaintenance(now),
		InUnscheduledMaintenance: check.InUnscheduledMaintenance(now),
	})
}

func (h *Handler) GetCheckNotifications(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Notification history is not available"})
		return
	}
	id := c.Param("id")
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	sent, err := h.history.RecentNotifications(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.WithError(err).WithField("check", id).Error("get notifications failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}
	if sent == nil {
		sent = []db.SentNotification{}
	}
	c.JSON(http.StatusOK, sent)
}
