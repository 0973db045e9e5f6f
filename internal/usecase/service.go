package usecase

import (
	"fmt"
	"time"

	"clinic-booking/internal/data/repository"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Doctor      DoctorService
	Appointment AppointmentService
}

func NewService(repo *repository.Repository, config *utils.Config, events EventPublisher, log *zap.Logger) (*Service, error) {
	policy, err := NewSlotPolicy(config.Slot)
	if err != nil {
		return nil, fmt.Errorf("slot policy: %w", err)
	}
	grace := time.Duration(config.NoShow.GraceMinutes) * time.Minute

	return &Service{
		Doctor:      NewDoctorService(repo.Doctor, log),
		Appointment: NewAppointmentService(repo, policy, grace, events, log),
	}, nil
}
