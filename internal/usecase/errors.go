package usecase

import (
	"errors"
	"fmt"
	"time"

	"clinic-booking/internal/data/entity"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDoctorNotFound      = fmt.Errorf("doctor %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)

	// ErrConflict marks an occupied or unavailable slot. The caller may pick
	// another time or retry.
	ErrConflict = errors.New("slot conflict")
	ErrDayFull  = fmt.Errorf("no free slot left on this day: %w", ErrConflict)

	ErrUnauthorized      = errors.New("requester is not allowed to change this appointment")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
)

// ConflictError describes the slot that could not be booked. ExistingID is
// uuid.Nil when the clash was caught by the store's unique index rather than
// by the lookup.
type ConflictError struct {
	DoctorID   uuid.UUID
	Date       time.Time
	Time       entity.TimeOfDay
	ExistingID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot %s %s is already booked for doctor %s",
		e.Date.Format(entity.DateLayout), e.Time, e.DoctorID)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
