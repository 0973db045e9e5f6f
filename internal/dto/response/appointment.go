package response

import (
	"time"

	"clinic-booking/internal/data/entity"
)

type PatientInfoResponse struct {
	Name            string         `json:"name"`
	Email           string         `json:"email,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	PatientRef      string         `json:"patient_ref,omitempty"`
	Gender          *entity.Gender `json:"gender,omitempty"`
	Age             *int           `json:"age,omitempty"`
	HeightCm        *float64       `json:"height_cm,omitempty"`
	WeightKg        *float64       `json:"weight_kg,omitempty"`
	HealthCondition string         `json:"health_condition,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	Notes           string         `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID             string                   `json:"id"`
	Reference      string                   `json:"reference"`
	DoctorID       string                   `json:"doctor_id"`
	PatientID      string                   `json:"patient_id"`
	Date           string                   `json:"date"`
	Time           string                   `json:"time"`
	Status         entity.AppointmentStatus `json:"status"`
	Patient        PatientInfoResponse      `json:"patient"`
	DoctorResponse *string                  `json:"doctor_response,omitempty"`
	RespondedAt    *time.Time               `json:"responded_at,omitempty"`
	Consultation   *ConsultationResponse    `json:"consultation,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
}

type ConsultationResponse struct {
	Diagnosis        string    `json:"diagnosis"`
	TreatmentPlan    string    `json:"treatment_plan"`
	Prescription     *string   `json:"prescription,omitempty"`
	FollowUpRequired bool      `json:"follow_up_required"`
	FollowUpDate     *string   `json:"follow_up_date,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type DaySlotResponse struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type DaySlotsResponse struct {
	DoctorID string            `json:"doctor_id"`
	Date     string            `json:"date"`
	Slots    []DaySlotResponse `json:"slots"`
}

// ConflictResponse is returned with 409 when the requested slot is held.
type ConflictResponse struct {
	DoctorID              string `json:"doctor_id"`
	Date                  string `json:"date"`
	Time                  string `json:"time"`
	ExistingAppointmentID string `json:"existing_appointment_id,omitempty"`
}

// Helper converters
func AppointmentToResponse(a *entity.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID.String(),
		Reference: a.Reference,
		DoctorID:  a.DoctorID.String(),
		PatientID: a.PatientID.String(),
		Date:      a.Date.Format(entity.DateLayout),
		Time:      a.Time.String(),
		Status:    a.Status,
		Patient: PatientInfoResponse{
			Name:            a.Patient.Name,
			Email:           a.Patient.Email,
			Phone:           a.Patient.Phone,
			PatientRef:      a.Patient.PatientRef,
			Gender:          a.Patient.Gender,
			Age:             a.Patient.Age,
			HeightCm:        a.Patient.HeightCm,
			WeightKg:        a.Patient.WeightKg,
			HealthCondition: a.Patient.HealthCondition,
			Reason:          a.Patient.Reason,
			Notes:           a.Patient.Notes,
		},
		DoctorResponse: a.DoctorResponse,
		RespondedAt:    a.RespondedAt,
		Consultation:   ConsultationToResponse(a.Consultation),
		CreatedAt:      a.CreatedAt,
	}
}

func ConsultationToResponse(c *entity.Consultation) *ConsultationResponse {
	if c == nil {
		return nil
	}
	resp := &ConsultationResponse{
		Diagnosis:        c.Diagnosis,
		TreatmentPlan:    c.TreatmentPlan,
		Prescription:     c.Prescription,
		FollowUpRequired: c.FollowUpRequired,
		UpdatedAt:        c.UpdatedAt,
	}
	if c.FollowUpDate != nil {
		date := c.FollowUpDate.Format(entity.DateLayout)
		resp.FollowUpDate = &date
	}
	return resp
}

func AppointmentsToResponse(appointments []*entity.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appointments))
	for _, a := range appointments {
		out = append(out, AppointmentToResponse(a))
	}
	return out
}
