package filters

import (
	"time"

	"github.com/sirupsen/logrus"

	"alert-router/internal/models"
)

// Delays debounces failures and suppresses repeats:
//   - a failing service event is blocked while the current failure is younger
//     than the initial failure delay;
//   - it is also blocked when the last problem alert was sent less than the
//     repeat failure delay ago and announced the same state.
//
// A state change (warning -> critical) within the repeat window still passes.
type Delays struct {
	logger *logrus.Entry
}

func NewDelays(logger *logrus.Entry) *Delays {
	return &Delays{logger: logger.WithField("filter", "delays")}
}

func (d *Delays) Name() string { return "delays" }

func (d *Delays) Block(event *models.Event, check *models.Check, opts Options) bool {
	initialFailureDelay := resolveDelay(check.InitialFailureDelay, opts.InitialFailureDelay, DefaultInitialFailureDelay)
	repeatFailureDelay := resolveDelay(check.RepeatFailureDelay, opts.RepeatFailureDelay, DefaultRepeatFailureDelay)

	if !event.IsService() || !event.State.Failing() {
		d.logger.Debug("pass - not a service event in a failure state")
		return false
	}
	if !check.State().Failing() {
		d.logger.Debug("pass - check is not failing")
		return false
	}

	now := opts.Now
	lastAlertState := check.LastAlertState()

	var currentStateDuration, timeSinceLastAlert *time.Duration
	if last := check.LastChange(); last != nil {
		v := now.Sub(last.Timestamp)
		currentStateDuration = &v
	}
	if check.LastProblemAlert != nil {
		v := now.Sub(*check.LastProblemAlert)
		timeSinceLastAlert = &v
	}

	fields := logrus.Fields{
		"check":                  check.ID,
		"initial_failure_delay":  initialFailureDelay,
		"repeat_failure_delay":   repeatFailureDelay,
		"current_state_duration": durationField(currentStateDuration),
		"time_since_last_alert":  durationField(timeSinceLastAlert),
		"last_alert_state":       lastAlertState,
		"event_state":            event.State,
		"same_state":             lastAlertState == event.State,
	}
	if check.LastProblemAlert != nil {
		fields["last_problem_alert"] = check.LastProblemAlert.Format(time.RFC3339)
	}
	d.logger.WithFields(fields).Debug("evaluating")

	if currentStateDuration != nil && *currentStateDuration < initialFailureDelay {
		d.logger.WithFields(fields).Debug("block - current failure is younger than initial failure delay")
		return true
	}

	if timeSinceLastAlert != nil &&
		*timeSinceLastAlert < repeatFailureDelay &&
		lastAlertState == event.State {
		d.logger.WithFields(fields).Debug("block - same state alerted within repeat failure delay")
		return true
	}

	d.logger.WithFields(fields).Debug("pass - neither time condition met")
	return false
}

func durationField(d *time.Duration) interface{} {
	if d == nil {
		return "nil"
	}
	return d.String()
}
