package filters

import (
	"github.com/sirupsen/logrus"

	"alert-router/internal/models"
)

// Acknowledgement blocks an acknowledgement of a check that is not failing,
// or that is already acknowledged.
type Acknowledgement struct {
	logger *logrus.Entry
}

func NewAcknowledgement(logger *logrus.Entry) *Acknowledgement {
	return &Acknowledgement{logger: logger.WithField("filter", "acknowledgement")}
}

func (f *Acknowledgement) Name() string { return "acknowledgement" }

func (f *Acknowledgement) Block(event *models.Event, check *models.Check, opts Options) bool {
	if event.State != models.StateAcknowledgement {
		return false
	}
	log := f.logger.WithField("check", check.ID)
	if !check.State().Failing() {
		log.Debug("block - check is not failing")
		return true
	}
	if check.InUnscheduledMaintenance(opts.Now) {
		log.Debug("block - already acknowledged")
		return true
	}
	return false
}
