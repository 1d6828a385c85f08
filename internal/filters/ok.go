package filters

import (
	"github.com/sirupsen/logrus"

	"alert-router/internal/models"
)

// Ok suppresses recoveries nobody needs: an ok event for a check that never
// alerted a problem, or whose last notification already was a recovery.
type Ok struct {
	logger *logrus.Entry
}

func NewOk(logger *logrus.Entry) *Ok {
	return &Ok{logger: logger.WithField("filter", "ok")}
}

func (f *Ok) Name() string { return "ok" }

func (f *Ok) Block(event *models.Event, check *models.Check, _ Options) bool {
	if !event.IsService() || event.State != models.StateOK {
		return false
	}
	if check.LastProblemAlert == nil {
		f.logger.WithField("check", check.ID).Debug("block - no problem was ever alerted")
		return true
	}
	if n := check.LastNotification; n != nil && n.Type == models.NotificationRecovery {
		f.logger.WithField("check", check.ID).Debug("block - recovery already sent")
		return true
	}
	return false
}
