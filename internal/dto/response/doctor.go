package response

import (
	"clinic-booking/internal/data/entity"
)

type DoctorResponse struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	FullName        string         `json:"full_name"`
	Specialty       *string        `json:"specialty,omitempty"`
	Gender          *entity.Gender `json:"gender,omitempty"`
	PhoneNumber     string         `json:"phone_number,omitempty"`
	Bio             string         `json:"bio"`
	LicenseNumber   *string        `json:"license_number,omitempty"`
	ConsultationFee float64        `json:"consultation_fee"`
	YearsExperience int            `json:"years_experience"`
}

func DoctorToResponse(d *entity.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:              d.ID.String(),
		UserID:          d.UserID.String(),
		FullName:        d.FullName(),
		Specialty:       d.SpecialtyName,
		Gender:          d.Gender,
		PhoneNumber:     d.PhoneNumber,
		Bio:             d.Bio,
		LicenseNumber:   d.LicenseNumber,
		ConsultationFee: d.ConsultationFee,
		YearsExperience: d.YearsExperience,
	}
}
