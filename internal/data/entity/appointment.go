package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// legacyStatuses maps values written by older booking flows onto the
// canonical set.
var legacyStatuses = map[string]AppointmentStatus{
	"scheduled": AppointmentStatusPending,
	"confirmed": AppointmentStatusPending,
}

// ParseStatus accepts canonical and legacy status values.
func ParseStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(s); st {
	case AppointmentStatusPending, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return st, nil
	}
	if st, ok := legacyStatuses[s]; ok {
		return st, nil
	}
	return "", fmt.Errorf("invalid appointment status %q", s)
}

// IsActive reports whether an appointment in this status still holds its slot.
func (s AppointmentStatus) IsActive() bool {
	return s != AppointmentStatusCancelled
}

// CanTransitionTo encodes the appointment state machine. completed ->
// completed is allowed so a doctor can overwrite a response.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case AppointmentStatusPending:
		return next == AppointmentStatusCompleted ||
			next == AppointmentStatusCancelled ||
			next == AppointmentStatusNoShow
	case AppointmentStatusCompleted:
		return next == AppointmentStatusCompleted
	}
	return false
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// PatientInfo is the contact and intake data a patient submits with a
// booking. It is stored as given.
type PatientInfo struct {
	Name            string   `db:"patient_name"`
	Email           string   `db:"patient_email"`
	Phone           string   `db:"patient_phone"`
	PatientRef      string   `db:"patient_ref"`
	Gender          *Gender  `db:"gender"`
	Age             *int     `db:"age"`
	HeightCm        *float64 `db:"height_cm"`
	WeightKg        *float64 `db:"weight_kg"`
	HealthCondition string   `db:"health_condition"`
	Reason          string   `db:"reason"`
	Notes           string   `db:"notes"`
}

type Appointment struct {
	Base
	Reference      string            `db:"reference"`
	DoctorID       uuid.UUID         `db:"doctor_id"`
	PatientID      uuid.UUID         `db:"patient_id"`
	Date           time.Time         `db:"appointment_date"`
	Time           TimeOfDay         `db:"appointment_time"`
	Status         AppointmentStatus `db:"status"`
	Patient        PatientInfo
	DoctorResponse *string    `db:"doctor_response"`
	RespondedAt    *time.Time `db:"responded_at"`
	Consultation   *Consultation
}

// StartsAt is the appointment's slot start as an instant in the date's location.
func (a *Appointment) StartsAt() time.Time {
	return a.Time.On(a.Date)
}
