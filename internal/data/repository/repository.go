package repository

import (
	"clinic-booking/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Doctor      DoctorRepository
	Appointment AppointmentRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Doctor:      NewDoctorRepository(db, log),
		Appointment: NewAppointmentRepository(db, log),
	}
}
