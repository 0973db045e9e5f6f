package entity

import (
	"time"

	"github.com/google/uuid"
)

// Consultation is the doctor's clinical record for one appointment. There is
// at most one per appointment; recording again overwrites it.
type Consultation struct {
	AppointmentID    uuid.UUID  `db:"appointment_id"`
	Diagnosis        string     `db:"diagnosis"`
	TreatmentPlan    string     `db:"treatment_plan"`
	Prescription     *string    `db:"prescription"`
	FollowUpRequired bool       `db:"follow_up_required"`
	FollowUpDate     *time.Time `db:"follow_up_date"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}
