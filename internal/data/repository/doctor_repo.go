package repository

import (
	"context"
	"errors"
	"fmt"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type DoctorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Doctor, error)
	UpdateProfile(ctx context.Context, doctor *entity.Doctor) error
}

const doctorColumns = `d.id, d.user_id, d.first_name, d.last_name, d.specialty_id, s.name,
	d.gender, d.phone_number, d.bio, d.license_number, d.consultation_fee,
	d.years_experience, d.created_at, d.updated_at`

type doctorRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewDoctorRepository(db database.Querier, log *zap.Logger) DoctorRepository {
	return &doctorRepository{
		db:  db,
		log: log.With(zap.String("repository", "doctor")),
	}
}

func (r *doctorRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Doctor, error) {
	query := `
		SELECT ` + doctorColumns + `
		FROM doctors d
		LEFT JOIN specialties s ON s.id = d.specialty_id
		WHERE d.id = $1
	`

	doctor, err := scanDoctor(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find doctor by ID",
			zap.Error(err),
			zap.String("doctor_id", id.String()),
		)
		return nil, fmt.Errorf("find doctor by ID %s: %w", id.String(), err)
	}

	return doctor, nil
}

func scanDoctor(row pgx.Row) (*entity.Doctor, error) {
	var (
		doctor entity.Doctor
		gender *string
	)
	err := row.Scan(
		&doctor.ID,
		&doctor.UserID,
		&doctor.FirstName,
		&doctor.LastName,
		&doctor.SpecialtyID,
		&doctor.SpecialtyName,
		&gender,
		&doctor.PhoneNumber,
		&doctor.Bio,
		&doctor.LicenseNumber,
		&doctor.ConsultationFee,
		&doctor.YearsExperience,
		&doctor.CreatedAt,
		&doctor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if gender != nil {
		g := entity.Gender(*gender)
		doctor.Gender = &g
	}
	return &doctor, nil
}

func (r *doctorRepository) UpdateProfile(ctx context.Context, doctor *entity.Doctor) error {
	query := `
		UPDATE doctors
		SET bio = $2, consultation_fee = $3, phone_number = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		doctor.ID,
		doctor.Bio,
		doctor.ConsultationFee,
		doctor.PhoneNumber,
		doctor.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update doctor profile",
			zap.Error(err),
			zap.String("doctor_id", doctor.ID.String()),
		)
		return fmt.Errorf("update doctor %s profile: %w", doctor.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("doctor %s not found", doctor.ID.String())
	}

	return nil
}
