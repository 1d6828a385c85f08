// Package filters holds the suppression rules an event must pass before any
// notification is built. Each filter is a stateless decision over an event,
// the check it applies to and the resolved options.
package filters

import (
	"time"

	"github.com/sirupsen/logrus"

	"alert-router/internal/models"
)

const (
	DefaultInitialFailureDelay = 30 * time.Second
	DefaultRepeatFailureDelay  = 60 * time.Second
)

// Filter decides whether an event should be suppressed. Block must not
// modify the check.
type Filter interface {
	Name() string
	Block(event *models.Event, check *models.Check, opts Options) bool
}

// Options are the system-wide filter settings. Zero durations fall back to
// the package defaults.
type Options struct {
	InitialFailureDelay time.Duration
	RepeatFailureDelay  time.Duration
	IgnoreUnknown       bool

	// Now is the evaluation time. The chain fills it in when zero.
	Now time.Time
}

// resolveDelay applies the override order check -> option -> default. Values
// under one second count as unset.
func resolveDelay(checkValue, optValue, fallback time.Duration) time.Duration {
	if checkValue >= time.Second {
		return checkValue
	}
	if optValue >= time.Second {
		return optValue
	}
	return fallback
}

// Chain runs filters in order and stops at the first one that blocks.
type Chain struct {
	filters []Filter
	opts    Options
	logger  *logrus.Entry
	clock   func() time.Time
}

// NewChain builds a chain over the given filters. With no filters the
// default order is used.
func NewChain(logger *logrus.Entry, opts Options, filters ...Filter) *Chain {
	if len(filters) == 0 {
		filters = Default(logger)
	}
	return &Chain{filters: filters, opts: opts, logger: logger, clock: time.Now}
}

// Default returns the standard filter order.
func Default(logger *logrus.Entry) []Filter {
	return []Filter{
		NewOk(logger),
		NewScheduledMaintenance(logger),
		NewUnscheduledMaintenance(logger),
		NewUnknown(logger),
		NewDelays(logger),
		NewAcknowledgement(logger),
	}
}

// WithClock replaces the time source; used by tests.
func (c *Chain) WithClock(clock func() time.Time) *Chain {
	c.clock = clock
	return c
}

// Filters returns the chain members in evaluation order.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// Run evaluates the chain. It returns true and the blocking filter's name if
// the event is suppressed.
func (c *Chain) Run(event *models.Event, check *models.Check) (bool, string) {
	opts := c.opts
	if opts.Now.IsZero() {
		opts.Now = c.clock()
	}
	for _, f := range c.filters {
		if f.Block(event, check, opts) {
			c.logger.WithFields(logrus.Fields{
				"check":  check.ID,
				"state":  event.State,
				"filter": f.Name(),
			}).Info("event blocked")
			return true, f.Name()
		}
	}
	return false, ""
}
