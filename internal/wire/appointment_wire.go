package wire

import (
	"clinic-booking/internal/adaptor"
	"clinic-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAppointment(r chi.Router, appointmentHandler *adaptor.AppointmentHandler, log *zap.Logger) {
	// ==================== IDENTIFIED ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRequester(log))

		// POST /api/doctors/{id}/appointments - book an explicit slot
		r.Post("/api/doctors/{id}/appointments", appointmentHandler.BookAppointment)

		// POST /api/doctors/{id}/appointments/next - book the next free slot
		r.Post("/api/doctors/{id}/appointments/next", appointmentHandler.BookNextAvailable)

		// POST /api/appointments/{id}/cancel - patient or doctor cancels
		r.Post("/api/appointments/{id}/cancel", appointmentHandler.Cancel)

		// GET /api/patient/appointments - requester's own bookings
		r.Get("/api/patient/appointments", appointmentHandler.ListMyAppointments)
	})

	// ==================== OPEN ROUTES ====================
	r.Get("/api/doctors/{id}/slots", appointmentHandler.DaySlots)
	r.Get("/api/doctors/{id}/appointments/pending", appointmentHandler.ListPendingForDoctor)
	r.Get("/api/doctors/{id}/consultations/recent", appointmentHandler.RecentConsultations)
	r.Get("/api/appointments/{id}", appointmentHandler.GetAppointment)
	r.Post("/api/appointments/{id}/response", appointmentHandler.RecordResponse)
}
