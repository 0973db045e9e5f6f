package request

import "clinic-booking/internal/data/entity"

type PatientInfoRequest struct {
	Name            string   `json:"name" validate:"required,max=100"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Phone           string   `json:"phone" validate:"omitempty,max=20"`
	PatientRef      string   `json:"patient_ref" validate:"omitempty,max=50"`
	Gender          *string  `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	Age             *int     `json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	HeightCm        *float64 `json:"height_cm,omitempty" validate:"omitempty,gte=1,lte=300"`
	WeightKg        *float64 `json:"weight_kg,omitempty" validate:"omitempty,gte=1,lte=700"`
	HealthCondition string   `json:"health_condition" validate:"max=2000"`
	Reason          string   `json:"reason" validate:"max=2000"`
	Notes           string   `json:"notes" validate:"max=2000"`
}

// BookAppointmentRequest books an explicit slot. Date is YYYY-MM-DD, time HH:MM.
type BookAppointmentRequest struct {
	Date    string             `json:"date" validate:"required,datetime=2006-01-02"`
	Time    string             `json:"time" validate:"required,datetime=15:04"`
	Patient PatientInfoRequest `json:"patient"`
}

// BookNextRequest lets the allocator pick the next free slot of the day.
type BookNextRequest struct {
	Date    string             `json:"date" validate:"required,datetime=2006-01-02"`
	Patient PatientInfoRequest `json:"patient"`
}

type RecordResponseRequest struct {
	Response     string               `json:"response" validate:"required,max=5000"`
	Consultation *ConsultationRequest `json:"consultation,omitempty"`
}

// ConsultationRequest is the doctor's clinical record. FollowUpDate is YYYY-MM-DD.
type ConsultationRequest struct {
	Diagnosis        string  `json:"diagnosis" validate:"required,max=5000"`
	TreatmentPlan    string  `json:"treatment_plan" validate:"required,max=5000"`
	Prescription     *string `json:"prescription,omitempty" validate:"omitempty,max=5000"`
	FollowUpRequired bool    `json:"follow_up_required"`
	FollowUpDate     *string `json:"follow_up_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

func (c *ConsultationRequest) ToEntity() (*entity.Consultation, error) {
	if c == nil {
		return nil, nil
	}
	consultation := &entity.Consultation{
		Diagnosis:        c.Diagnosis,
		TreatmentPlan:    c.TreatmentPlan,
		Prescription:     c.Prescription,
		FollowUpRequired: c.FollowUpRequired,
	}
	if c.FollowUpDate != nil {
		date, err := entity.ParseDate(*c.FollowUpDate)
		if err != nil {
			return nil, err
		}
		consultation.FollowUpDate = &date
	}
	return consultation, nil
}

func (p PatientInfoRequest) ToEntity() entity.PatientInfo {
	info := entity.PatientInfo{
		Name:            p.Name,
		Email:           p.Email,
		Phone:           p.Phone,
		PatientRef:      p.PatientRef,
		Age:             p.Age,
		HeightCm:        p.HeightCm,
		WeightKg:        p.WeightKg,
		HealthCondition: p.HealthCondition,
		Reason:          p.Reason,
		Notes:           p.Notes,
	}
	if p.Gender != nil {
		g := entity.Gender(*p.Gender)
		info.Gender = &g
	}
	return info
}
