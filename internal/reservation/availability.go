package reservation

import (
	"context"
	"errors"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

// AvailableSlot is a slot with its derived free-seat count.
type AvailableSlot struct {
	model.ExamSlot
	Remaining int
}

// ListAvailable returns the selectable slots of a period.  A zero
// periodID means the calendar's active period; without one the list is
// empty.  The result is a plain read and may trail concurrent
// reservations by a few seats.
func (e *Engine) ListAvailable(ctx context.Context, periodID uint64) ([]AvailableSlot, error) {
	if periodID == 0 {
		p, err := e.calendar.ActivePeriod(ctx)
		if errors.Is(err, ErrNoActivePeriod) {
			return []AvailableSlot{}, nil
		}
		if err != nil {
			return nil, err
		}
		periodID = p.ID
	}

	slots, err := e.store.ListAvailable(ctx, periodID, e.calendar.Today())
	if err != nil {
		return nil, err
	}
	out := make([]AvailableSlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, AvailableSlot{ExamSlot: s, Remaining: s.Remaining()})
	}
	return out, nil
}
