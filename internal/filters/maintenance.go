package filters

import (
	"github.com/sirupsen/logrus"

	"alert-router/internal/models"
)

// ScheduledMaintenance blocks every service event while a planned window
// covers the evaluation time.
type ScheduledMaintenance struct {
	logger *logrus.Entry
}

func NewScheduledMaintenance(logger *logrus.Entry) *ScheduledMaintenance {
	return &ScheduledMaintenance{logger: logger.WithField("filter", "scheduled_maintenance")}
}

func (f *ScheduledMaintenance) Name() string { return "scheduled_maintenance" }

func (f *ScheduledMaintenance) Block(event *models.Event, check *models.Check, opts Options) bool {
	if !event.IsService() || !check.InScheduledMaintenance(opts.Now) {
		return false
	}
	f.logger.WithField("check", check.ID).Debug("block - in scheduled maintenance")
	return true
}

// UnscheduledMaintenance blocks failing service events while the check is
// acknowledged.
type UnscheduledMaintenance struct {
	logger *logrus.Entry
}

func NewUnscheduledMaintenance(logger *logrus.Entry) *UnscheduledMaintenance {
	return &UnscheduledMaintenance{logger: logger.WithField("filter", "unscheduled_maintenance")}
}

func (f *UnscheduledMaintenance) Name() string { return "unscheduled_maintenance" }

func (f *UnscheduledMaintenance) Block(event *models.Event, check *models.Check, opts Options) bool {
	if !event.IsService() || !event.State.Failing() || !check.InUnscheduledMaintenance(opts.Now) {
		return false
	}
	f.logger.WithField("check", check.ID).Debug("block - acknowledged")
	return true
}
