package filters

import (
	"github.com/sirupsen/logrus"

	"alert-router/internal/models"
)

// Unknown drops unknown-state service events when IgnoreUnknown is set.
type Unknown struct {
	logger *logrus.Entry
}

func NewUnknown(logger *logrus.Entry) *Unknown {
	return &Unknown{logger: logger.WithField("filter", "unknown")}
}

func (f *Unknown) Name() string { return "unknown" }

func (f *Unknown) Block(event *models.Event, check *models.Check, opts Options) bool {
	if !opts.IgnoreUnknown || !event.IsService() || event.State != models.StateUnknown {
		return false
	}
	f.logger.WithField("check", check.ID).Debug("block - unknown states are ignored")
	return true
}
