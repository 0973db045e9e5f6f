package adaptor

import (
	"encoding/json"
	"net/http"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/dto/response"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

type AppointmentHandler struct {
	service usecase.AppointmentService
	log     *zap.Logger
}

func NewAppointmentHandler(service usecase.AppointmentService, log *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		log:     log.With(zap.String("handler", "appointment")),
	}
}

// BookAppointment handles POST /api/doctors/{id}/appointments
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	patientID, ok := utils.GetRequesterIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Requester identity required")
		return
	}

	doctorID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req request.BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	// both already passed the datetime tag
	date, _ := entity.ParseDate(req.Date)
	at, err := entity.ParseTimeOfDay(req.Time)
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid time", nil)
		return
	}

	appointment, err := h.service.BookExplicit(r.Context(), doctorID, date, at, patientID, req.Patient.ToEntity())
	if err != nil {
		handleServiceError(w, h.log, err, "book appointment")
		return
	}

	utils.ResponseCreated(w, "Appointment booked", response.AppointmentToResponse(appointment))
}

// BookNextAvailable handles POST /api/doctors/{id}/appointments/next
func (h *AppointmentHandler) BookNextAvailable(w http.ResponseWriter, r *http.Request) {
	patientID, ok := utils.GetRequesterIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Requester identity required")
		return
	}

	doctorID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req request.BookNextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	date, _ := entity.ParseDate(req.Date)

	appointment, err := h.service.BookNextAvailable(r.Context(), doctorID, date, patientID, req.Patient.ToEntity())
	if err != nil {
		handleServiceError(w, h.log, err, "book next available slot")
		return
	}

	utils.ResponseCreated(w, "Appointment booked", response.AppointmentToResponse(appointment))
}

// GetAppointment handles GET /api/appointments/{id}
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	appointment, err := h.service.GetAppointment(r.Context(), appointmentID)
	if err != nil {
		handleServiceError(w, h.log, err, "get appointment")
		return
	}

	utils.ResponseSuccess(w, "success", response.AppointmentToResponse(appointment))
}

// ListPendingForDoctor handles GET /api/doctors/{id}/appointments/pending
func (h *AppointmentHandler) ListPendingForDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	req := parsePagination(r)
	appointments, total, err := h.service.ListPendingForDoctor(r.Context(), doctorID, req.Limit(), req.Offset())
	if err != nil {
		handleServiceError(w, h.log, err, "list pending appointments")
		return
	}

	utils.ResponseSuccess(w, "success",
		response.NewPaginatedResponse(response.AppointmentsToResponse(appointments), req.Page, req.Limit(), total))
}

// ListMyAppointments handles GET /api/patient/appointments
func (h *AppointmentHandler) ListMyAppointments(w http.ResponseWriter, r *http.Request) {
	patientID, ok := utils.GetRequesterIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Requester identity required")
		return
	}

	req := parsePagination(r)
	appointments, total, err := h.service.ListForPatient(r.Context(), patientID, req.Limit(), req.Offset())
	if err != nil {
		handleServiceError(w, h.log, err, "list patient appointments")
		return
	}

	utils.ResponseSuccess(w, "success",
		response.NewPaginatedResponse(response.AppointmentsToResponse(appointments), req.Page, req.Limit(), total))
}

// RecordResponse handles POST /api/appointments/{id}/response
func (h *AppointmentHandler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	appointmentID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req request.RecordResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	consultation, err := req.Consultation.ToEntity()
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid follow-up date", nil)
		return
	}

	appointment, err := h.service.RecordResponse(r.Context(), appointmentID, req.Response, consultation)
	if err != nil {
		handleServiceError(w, h.log, err, "record response")
		return
	}

	utils.ResponseSuccess(w, "Response recorded", response.AppointmentToResponse(appointment))
}

// RecentConsultations handles GET /api/doctors/{id}/consultations/recent?limit=N
func (h *AppointmentHandler) RecentConsultations(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	limit := utils.ParseInt(r.URL.Query().Get("limit"), 5)
	appointments, err := h.service.RecentConsultations(r.Context(), doctorID, limit)
	if err != nil {
		handleServiceError(w, h.log, err, "list recent consultations")
		return
	}

	utils.ResponseSuccess(w, "success", response.AppointmentsToResponse(appointments))
}

// Cancel handles POST /api/appointments/{id}/cancel
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := utils.GetRequesterIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Requester identity required")
		return
	}

	appointmentID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	appointment, err := h.service.Cancel(r.Context(), appointmentID, requesterID)
	if err != nil {
		handleServiceError(w, h.log, err, "cancel appointment")
		return
	}

	utils.ResponseSuccess(w, "Appointment cancelled", response.AppointmentToResponse(appointment))
}

// DaySlots handles GET /api/doctors/{id}/slots?date=YYYY-MM-DD
func (h *AppointmentHandler) DaySlots(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	date, err := entity.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		utils.ResponseBadRequest(w, "Query parameter date must be YYYY-MM-DD", nil)
		return
	}

	slots, err := h.service.DaySlots(r.Context(), doctorID, date)
	if err != nil {
		handleServiceError(w, h.log, err, "get day slots")
		return
	}

	resp := response.DaySlotsResponse{
		DoctorID: doctorID.String(),
		Date:     date.Format(entity.DateLayout),
		Slots:    make([]response.DaySlotResponse, 0, len(slots)),
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, response.DaySlotResponse{Time: s.Time.String(), Available: s.Available})
	}

	utils.ResponseSuccess(w, "success", resp)
}

func parsePagination(r *http.Request) request.PaginatedRequest {
	query := r.URL.Query()
	req := request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}
	if req.Page < 1 {
		req.Page = 1
	}
	return req
}
