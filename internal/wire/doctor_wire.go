package wire

import (
	"clinic-booking/internal/adaptor"
	"clinic-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireDoctor(r chi.Router, doctorHandler *adaptor.DoctorHandler, log *zap.Logger) {
	// GET /api/doctors/{id} - doctor profile with specialty
	r.Get("/api/doctors/{id}", doctorHandler.GetDoctor)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRequester(log))

		// PUT /api/doctors/{id}/profile - only the doctor's own identity
		r.Put("/api/doctors/{id}/profile", doctorHandler.UpdateProfile)
	})
}
