package adaptor

import (
	"encoding/json"
	"net/http"

	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/dto/response"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

type DoctorHandler struct {
	service usecase.DoctorService
	log     *zap.Logger
}

func NewDoctorHandler(service usecase.DoctorService, log *zap.Logger) *DoctorHandler {
	return &DoctorHandler{
		service: service,
		log:     log.With(zap.String("handler", "doctor")),
	}
}

// GetDoctor handles GET /api/doctors/{id}
func (h *DoctorHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	doctor, err := h.service.GetDoctor(r.Context(), doctorID)
	if err != nil {
		handleServiceError(w, h.log, err, "get doctor")
		return
	}

	utils.ResponseSuccess(w, "success", response.DoctorToResponse(doctor))
}

// UpdateProfile handles PUT /api/doctors/{id}/profile
func (h *DoctorHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := utils.GetRequesterIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Requester identity required")
		return
	}

	doctorID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req request.UpdateDoctorProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	doctor, err := h.service.UpdateProfile(r.Context(), doctorID, requesterID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "update doctor profile")
		return
	}

	utils.ResponseSuccess(w, "Profile updated", response.DoctorToResponse(doctor))
}
