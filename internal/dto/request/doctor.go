package request

type UpdateDoctorProfileRequest struct {
	Bio             *string  `json:"bio,omitempty" validate:"omitempty,max=2000"`
	ConsultationFee *float64 `json:"consultation_fee,omitempty" validate:"omitempty,gte=0"`
	PhoneNumber     *string  `json:"phone_number,omitempty" validate:"omitempty,max=20"`
}
