package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

// Calendar supplies the active admission period and the current civil
// date used as the expiry cutoff.
type Calendar interface {
	ActivePeriod(ctx context.Context) (model.Period, error)
	Today() time.Time
}

// CivilDate returns midnight UTC of the calendar day t falls on in loc.
// Slot dates are stored the same way, so the two compare directly.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Clock computes today's civil date in a fixed location.  A nil Now uses
// time.Now.
type Clock struct {
	Location *time.Location
	Now      func() time.Time
}

// Today returns the current civil date.
func (c Clock) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return CivilDate(now(), c.Location)
}

// StaticCalendar serves a fixed period, for tests and embedded use.
type StaticCalendar struct {
	Clock
	Period *model.Period
}

// ActivePeriod returns the configured period or ErrNoActivePeriod.
func (s StaticCalendar) ActivePeriod(context.Context) (model.Period, error) {
	if s.Period == nil {
		return model.Period{}, ErrNoActivePeriod
	}
	return *s.Period, nil
}
