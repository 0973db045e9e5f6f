package entity

import (
	"strings"

	"github.com/google/uuid"
)

type Doctor struct {
	Base
	UserID          uuid.UUID  `db:"user_id"`
	FirstName       string     `db:"first_name"`
	LastName        string     `db:"last_name"`
	SpecialtyID     *uuid.UUID `db:"specialty_id"`
	SpecialtyName   *string    `db:"specialty_name"`
	Gender          *Gender    `db:"gender"`
	PhoneNumber     string     `db:"phone_number"`
	Bio             string     `db:"bio"`
	LicenseNumber   *string    `db:"license_number"`
	ConsultationFee float64    `db:"consultation_fee"`
	YearsExperience int        `db:"years_experience"`
}

func (d *Doctor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

