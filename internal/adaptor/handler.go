package adaptor

import (
	"errors"
	"net/http"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/dto/response"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	Doctor      *DoctorHandler
	Appointment *AppointmentHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Doctor:      NewDoctorHandler(service.Doctor, log),
		Appointment: NewAppointmentHandler(service.Appointment, log),
	}
}

// uuidParam reads a UUID path parameter. It writes a 400 and returns false
// when the value is missing or malformed.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		utils.ResponseBadRequest(w, name+" is required", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid "+name+" format", nil)
		return uuid.Nil, false
	}
	return id, true
}

// handleServiceError maps usecase errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var conflict *usecase.ConflictError

	switch {
	case errors.As(err, &conflict):
		log.Warn(operation+" failed - slot taken",
			zap.Error(err),
			zap.String("operation", operation))
		data := response.ConflictResponse{
			DoctorID: conflict.DoctorID.String(),
			Date:     conflict.Date.Format(entity.DateLayout),
			Time:     conflict.Time.String(),
		}
		if conflict.ExistingID != uuid.Nil {
			data.ExistingAppointmentID = conflict.ExistingID.String()
		}
		utils.ResponseConflict(w, "The selected time slot is already booked", data)

	case errors.Is(err, usecase.ErrConflict):
		log.Warn(operation+" failed - no slot available",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseConflict(w, err.Error(), nil)

	case errors.Is(err, usecase.ErrNotFound):
		log.Warn(operation+" failed - not found",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseNotFound(w, err.Error())

	case errors.Is(err, usecase.ErrUnauthorized):
		log.Warn(operation+" failed - forbidden",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseForbidden(w, err.Error())

	case errors.Is(err, usecase.ErrInvalidTransition):
		log.Warn(operation+" failed - invalid state",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseConflict(w, err.Error(), nil)

	case errors.Is(err, usecase.ErrInvalidInput):
		log.Warn("Invalid input for "+operation,
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadRequest(w, err.Error(), nil)

	default:
		log.Error("Failed to "+operation,
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
