package model

import "time"

// Applicant status values stored in applicants.status.
const (
    StatusRegistered     = "registrasi"
    StatusBiodataDone    = "biodata_lengkap"
    StatusScheduleChosen = "jadwal_dipilih"
    StatusFinished       = "selesai"
)

// Statuses lists every applicant status in workflow order.
var Statuses = []string{StatusRegistered, StatusBiodataDone, StatusScheduleChosen, StatusFinished}

// ValidStatus reports whether s is one of Statuses.
func ValidStatus(s string) bool {
    for _, v := range Statuses {
        if v == s {
            return true
        }
    }
    return false
}

// Applicant mirrors the `applicants` table.  ExamSlotID is nil while the
// applicant has not chosen a schedule yet.
type Applicant struct {
    ID                 uint64     // applicants.id
    UserID             uint64     // applicants.user_id (users.id of the login)
    RegistrationNumber string     // applicants.registration_number, e.g. PMB202600001
    FullName           string     // applicants.full_name
    WhatsApp           string     // applicants.whatsapp
    PeriodID           uint64     // applicants.period_id
    ExamSlotID         *uint64    // applicants.exam_slot_id (nullable)
    Status             string     // applicants.status
    SlotAssignedAt     *time.Time // applicants.slot_assigned_at (nullable)
    CreatedAt          time.Time  // applicants.created_at
    UpdatedAt          time.Time  // applicants.updated_at
}

// ExamCard is the printable projection of an applicant with a chosen slot.
type ExamCard struct {
    RegistrationNumber string
    FullName           string
    PeriodName         string
    SlotID             uint64
    Date               time.Time
    SessionName        string
    SessionStartsAt    string
    SessionEndsAt      string
    RoomCode           string
    RoomName           string
}
