package model

import "time"

// ExamSlot represents a row in the `exam_slots` table: one bookable
// (date, session, room) triple with a fixed number of seats.  Occupied is
// mutated only by the reservation engine and always satisfies
// 0 <= Occupied <= Capacity.
//
// Session and Room are populated by read queries that join the reference
// tables; they are zero values when only the slot row was loaded.
type ExamSlot struct {
    ID        uint64    // exam_slots.id
    PeriodID  uint64    // exam_slots.period_id
    Date      time.Time // exam_slots.exam_date (midnight UTC of the civil date)
    SessionID uint64    // exam_slots.session_id
    RoomID    uint64    // exam_slots.room_id
    Capacity  int       // exam_slots.capacity
    Occupied  int       // exam_slots.occupied
    IsActive  bool      // exam_slots.is_active
    CreatedAt time.Time // exam_slots.created_at
    UpdatedAt time.Time // exam_slots.updated_at

    Session Session
    Room    Room
}

// Remaining returns the number of free seats.
func (s ExamSlot) Remaining() int {
    if s.Occupied >= s.Capacity {
        return 0
    }
    return s.Capacity - s.Occupied
}

// IsFull reports whether every seat is taken.
func (s ExamSlot) IsFull() bool { return s.Occupied >= s.Capacity }

// DateString formats the slot date as YYYY-MM-DD.
func (s ExamSlot) DateString() string { return s.Date.Format(DateLayout) }

// DateLayout is the wire and storage layout of calendar dates.
const DateLayout = "2006-01-02"

// Session represents a row in the `exam_sessions` table, e.g. "Sesi Pagi"
// 08:00-11:00.  Times are kept as "HH:MM:SS" strings the way MySQL TIME
// columns are scanned; zero-padding keeps them sortable.
type Session struct {
    ID       uint64 // exam_sessions.id
    Name     string // exam_sessions.name
    StartsAt string // exam_sessions.starts_at
    EndsAt   string // exam_sessions.ends_at
    IsActive bool   // exam_sessions.is_active
}

// Room represents a row in the `exam_rooms` table.
type Room struct {
    ID       uint64 // exam_rooms.id
    Code     string // exam_rooms.code
    Name     string // exam_rooms.name
    Capacity int    // exam_rooms.capacity
    IsActive bool   // exam_rooms.is_active
}

// Period represents a row in the `admission_periods` table.  At most one
// period is expected to be active at a time; the most recent active row
// wins when several are flagged.
type Period struct {
    ID       uint64    // admission_periods.id
    Name     string    // admission_periods.name
    OpensOn  time.Time // admission_periods.opens_on
    ClosesOn time.Time // admission_periods.closes_on
    IsActive bool      // admission_periods.is_active
}
