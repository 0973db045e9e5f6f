package usecase

import (
	"context"
	"fmt"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DoctorService interface {
	GetDoctor(ctx context.Context, doctorID uuid.UUID) (*entity.Doctor, error)
	// UpdateProfile is limited to the doctor's own user identity.
	UpdateProfile(ctx context.Context, doctorID, requesterID uuid.UUID, req *request.UpdateDoctorProfileRequest) (*entity.Doctor, error)
}

type doctorService struct {
	repo repository.DoctorRepository
	now  func() time.Time
	log  *zap.Logger
}

func NewDoctorService(repo repository.DoctorRepository, log *zap.Logger) DoctorService {
	return &doctorService{
		repo: repo,
		now:  time.Now,
		log:  log.With(zap.String("service", "doctor")),
	}
}

func (s *doctorService) GetDoctor(ctx context.Context, doctorID uuid.UUID) (*entity.Doctor, error) {
	doctor, err := s.repo.FindByID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("get doctor %s: %w", doctorID, err)
	}
	if doctor == nil {
		return nil, fmt.Errorf("%w: %s", ErrDoctorNotFound, doctorID)
	}
	return doctor, nil
}

func (s *doctorService) UpdateProfile(ctx context.Context, doctorID, requesterID uuid.UUID, req *request.UpdateDoctorProfileRequest) (*entity.Doctor, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Update profile validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, utils.FormatValidationErrors(errs))
	}

	doctor, err := s.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if requesterID == uuid.Nil || doctor.UserID != requesterID {
		s.log.Warn("Profile update by another identity",
			zap.String("doctor_id", doctorID.String()),
			zap.String("requester_id", requesterID.String()),
		)
		return nil, ErrUnauthorized
	}

	// Update only provided fields
	if req.Bio != nil {
		doctor.Bio = *req.Bio
	}
	if req.ConsultationFee != nil {
		doctor.ConsultationFee = *req.ConsultationFee
	}
	if req.PhoneNumber != nil {
		doctor.PhoneNumber = *req.PhoneNumber
	}
	doctor.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateProfile(ctx, doctor); err != nil {
		return nil, fmt.Errorf("update doctor %s profile: %w", doctorID, err)
	}

	s.log.Info("Doctor profile updated", zap.String("doctor_id", doctorID.String()))
	return doctor, nil
}
