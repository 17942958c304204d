// Package queue defines the schedule.selected message and the background
// consumer that logs it and notifies the applicant.
package queue

// ScheduleSelectedEvent is published after an applicant's exam slot
// changed.  It carries enough detail for the consumer to log and notify
// without querying the primary database.
type ScheduleSelectedEvent struct {
    EventID            string  `json:"event_id"`
    ApplicantID        uint64  `json:"applicant_id"`
    RegistrationNumber string  `json:"registration_number"`
    FullName           string  `json:"full_name"`
    WhatsApp           string  `json:"whatsapp"`
    PreviousSlotID     *uint64 `json:"previous_slot_id,omitempty"`
    SlotID             uint64  `json:"exam_slot_id"`
    Date               string  `json:"date"`
    SessionName        string  `json:"session"`
    StartsAt           string  `json:"starts_at"`
    EndsAt             string  `json:"ends_at"`
    RoomCode           string  `json:"room_code"`
    RoomName           string  `json:"room_name"`
    SelectedAt         string  `json:"selected_at"`
}

// Moved reports whether the applicant switched from another slot.
func (e ScheduleSelectedEvent) Moved() bool { return e.PreviousSlotID != nil }
