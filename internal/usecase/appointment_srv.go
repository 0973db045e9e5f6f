package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Routing keys for appointment lifecycle events.
const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentCompleted = "appointment.completed"
	EventAppointmentCancelled = "appointment.cancelled"
	EventAppointmentNoShow    = "appointment.no_show"
)

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type AppointmentEvent struct {
	AppointmentID string                   `json:"appointment_id"`
	Reference     string                   `json:"reference"`
	DoctorID      string                   `json:"doctor_id"`
	PatientID     string                   `json:"patient_id"`
	Date          string                   `json:"date"`
	Time          string                   `json:"time"`
	Status        entity.AppointmentStatus `json:"status"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

type AppointmentService interface {
	// Booking
	BookExplicit(ctx context.Context, doctorID uuid.UUID, date time.Time, at entity.TimeOfDay, patientID uuid.UUID, info entity.PatientInfo) (*entity.Appointment, error)
	BookNextAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time, patientID uuid.UUID, info entity.PatientInfo) (*entity.Appointment, error)

	// Status transitions
	// RecordResponse completes the appointment with the doctor's response.
	// consultation is optional; when given it replaces any earlier record.
	RecordResponse(ctx context.Context, appointmentID uuid.UUID, responseText string, consultation *entity.Consultation) (*entity.Appointment, error)
	Cancel(ctx context.Context, appointmentID, requesterID uuid.UUID) (*entity.Appointment, error)
	MarkNoShows(ctx context.Context, now time.Time) (int, error)

	// Reads
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (*entity.Appointment, error)
	ListPendingForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*entity.Appointment, int64, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*entity.Appointment, int64, error)
	DaySlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]DaySlot, error)
	RecentConsultations(ctx context.Context, doctorID uuid.UUID, limit int) ([]*entity.Appointment, error)
}

const maxRecentConsultations = 20

type appointmentService struct {
	repo        *repository.Repository
	policy      SlotPolicy
	noShowGrace time.Duration
	events      EventPublisher
	now         func() time.Time
	reference   func(time.Time) string
	log         *zap.Logger
}

func NewAppointmentService(repo *repository.Repository, policy SlotPolicy, noShowGrace time.Duration, events EventPublisher, log *zap.Logger) AppointmentService {
	return &appointmentService{
		repo:        repo,
		policy:      policy,
		noShowGrace: noShowGrace,
		events:      events,
		now:         time.Now,
		reference:   utils.GenerateReference,
		log:         log.With(zap.String("service", "appointment")),
	}
}

func (s *appointmentService) BookExplicit(ctx context.Context, doctorID uuid.UUID, date time.Time, at entity.TimeOfDay, patientID uuid.UUID, info entity.PatientInfo) (*entity.Appointment, error) {
	if !at.Valid() {
		return nil, fmt.Errorf("appointment time %d out of range: %w", int(at), ErrInvalidInput)
	}
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient identity is required: %w", ErrInvalidInput)
	}
	date = entity.DateOnly(date)

	if err := s.ensureDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	var created *entity.Appointment
	err := s.repo.Appointment.WithSlotLock(ctx, doctorID, date, func(repo repository.AppointmentRepository) error {
		existing, err := repo.FindActiveBySlot(ctx, doctorID, date, at)
		if err != nil {
			return err
		}
		if existing != nil {
			return &ConflictError{DoctorID: doctorID, Date: date, Time: at, ExistingID: existing.ID}
		}

		appointment := s.newAppointment(doctorID, patientID, date, at, info)
		if err := s.create(ctx, repo, appointment); err != nil {
			if errors.Is(err, repository.ErrSlotTaken) {
				return &ConflictError{DoctorID: doctorID, Date: date, Time: at}
			}
			return err
		}
		created = appointment
		return nil
	})
	if err != nil {
		s.logBookingFailure(err, doctorID, date, at)
		return nil, err
	}

	s.log.Info("Appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("reference", created.Reference),
		zap.String("doctor_id", doctorID.String()),
		zap.String("slot", created.StartsAt().Format(entity.DateLayout+" "+entity.TimeLayout)),
	)
	s.publish(ctx, EventAppointmentCreated, created)
	return created, nil
}

func (s *appointmentService) BookNextAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time, patientID uuid.UUID, info entity.PatientInfo) (*entity.Appointment, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient identity is required: %w", ErrInvalidInput)
	}
	date = entity.DateOnly(date)

	if err := s.ensureDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	var (
		created *entity.Appointment
		at      entity.TimeOfDay
		err     error
	)
	// One retry when the unique index rejects the computed slot.
	for attempt := 0; attempt < 2; attempt++ {
		created, at, err = s.allocateNext(ctx, doctorID, date, patientID, info)
		if !errors.Is(err, repository.ErrSlotTaken) {
			break
		}
		s.log.Warn("Computed slot was taken concurrently",
			zap.String("doctor_id", doctorID.String()),
			zap.String("date", date.Format(entity.DateLayout)),
			zap.String("time", at.String()),
			zap.Int("attempt", attempt+1),
		)
	}
	if errors.Is(err, repository.ErrSlotTaken) {
		err = &ConflictError{DoctorID: doctorID, Date: date, Time: at}
	}
	if err != nil {
		s.logBookingFailure(err, doctorID, date, at)
		return nil, err
	}

	s.log.Info("Appointment booked on next free slot",
		zap.String("appointment_id", created.ID.String()),
		zap.String("reference", created.Reference),
		zap.String("doctor_id", doctorID.String()),
		zap.String("slot", created.StartsAt().Format(entity.DateLayout+" "+entity.TimeLayout)),
	)
	s.publish(ctx, EventAppointmentCreated, created)
	return created, nil
}

// allocateNext picks the slot at index n (n = active bookings that day) and
// walks forward past any slot that is already held.
func (s *appointmentService) allocateNext(ctx context.Context, doctorID uuid.UUID, date time.Time, patientID uuid.UUID, info entity.PatientInfo) (*entity.Appointment, entity.TimeOfDay, error) {
	var (
		created *entity.Appointment
		at      entity.TimeOfDay
	)
	err := s.repo.Appointment.WithSlotLock(ctx, doctorID, date, func(repo repository.AppointmentRepository) error {
		count, err := repo.CountActiveByDoctorAndDate(ctx, doctorID, date)
		if err != nil {
			return err
		}
		times, err := repo.FindActiveTimes(ctx, doctorID, date)
		if err != nil {
			return err
		}

		taken := make(map[entity.TimeOfDay]bool, len(times))
		for _, t := range times {
			taken[t] = true
		}

		next, ok := s.policy.NextFree(count, taken)
		if !ok {
			return fmt.Errorf("doctor %s on %s: %w", doctorID, date.Format(entity.DateLayout), ErrDayFull)
		}
		at = next

		appointment := s.newAppointment(doctorID, patientID, date, at, info)
		if err := s.create(ctx, repo, appointment); err != nil {
			return err
		}
		created = appointment
		return nil
	})
	return created, at, err
}

func (s *appointmentService) RecordResponse(ctx context.Context, appointmentID uuid.UUID, responseText string, consultation *entity.Consultation) (*entity.Appointment, error) {
	existing, err := s.repo.Appointment.FindByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", appointmentID, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrAppointmentNotFound, appointmentID)
	}
	if !existing.Status.CanTransitionTo(entity.AppointmentStatusCompleted) {
		return nil, fmt.Errorf("cannot respond to %s appointment: %w", existing.Status, ErrInvalidTransition)
	}

	if strings.TrimSpace(responseText) == "" {
		return nil, fmt.Errorf("response text is required: %w", ErrInvalidInput)
	}
	if err := checkConsultation(consultation, existing.Date); err != nil {
		return nil, err
	}

	updated, err := s.repo.Appointment.SaveResponse(ctx, appointmentID, responseText, consultation, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("record response for %s: %w", appointmentID, err)
	}
	if updated == nil {
		// status moved between the read and the update
		return nil, fmt.Errorf("appointment %s is no longer open: %w", appointmentID, ErrInvalidTransition)
	}

	s.log.Info("Doctor response recorded",
		zap.String("appointment_id", appointmentID.String()),
		zap.String("previous_status", string(existing.Status)),
		zap.Bool("consultation", consultation != nil),
	)
	s.publish(ctx, EventAppointmentCompleted, updated)
	return updated, nil
}

func (s *appointmentService) Cancel(ctx context.Context, appointmentID, requesterID uuid.UUID) (*entity.Appointment, error) {
	existing, err := s.repo.Appointment.FindByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", appointmentID, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrAppointmentNotFound, appointmentID)
	}

	allowed, err := s.canCancel(ctx, existing, requesterID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.log.Warn("Cancel rejected",
			zap.String("appointment_id", appointmentID.String()),
			zap.String("requester_id", requesterID.String()),
		)
		return nil, ErrUnauthorized
	}

	if !existing.Status.CanTransitionTo(entity.AppointmentStatusCancelled) {
		return nil, fmt.Errorf("cannot cancel %s appointment: %w", existing.Status, ErrInvalidTransition)
	}

	updated, err := s.repo.Appointment.Transition(ctx, appointmentID,
		[]entity.AppointmentStatus{entity.AppointmentStatusPending}, entity.AppointmentStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment %s: %w", appointmentID, err)
	}
	if updated == nil {
		return nil, fmt.Errorf("appointment %s is no longer pending: %w", appointmentID, ErrInvalidTransition)
	}

	s.log.Info("Appointment cancelled",
		zap.String("appointment_id", appointmentID.String()),
		zap.String("requester_id", requesterID.String()),
	)
	s.publish(ctx, EventAppointmentCancelled, updated)
	return updated, nil
}

// checkConsultation requires a diagnosis and a treatment plan, and a
// follow-up date only when a follow-up is required, after the visit itself.
func checkConsultation(c *entity.Consultation, visit time.Time) error {
	if c == nil {
		return nil
	}
	if strings.TrimSpace(c.Diagnosis) == "" || strings.TrimSpace(c.TreatmentPlan) == "" {
		return fmt.Errorf("consultation needs a diagnosis and a treatment plan: %w", ErrInvalidInput)
	}
	if c.FollowUpDate == nil {
		return nil
	}
	if !c.FollowUpRequired {
		return fmt.Errorf("follow-up date set without a required follow-up: %w", ErrInvalidInput)
	}
	if !entity.DateOnly(*c.FollowUpDate).After(entity.DateOnly(visit)) {
		return fmt.Errorf("follow-up date %s is not after the visit: %w",
			c.FollowUpDate.Format(entity.DateLayout), ErrInvalidInput)
	}
	return nil
}

// canCancel allows the booking's patient and the doctor's own user account.
func (s *appointmentService) canCancel(ctx context.Context, a *entity.Appointment, requesterID uuid.UUID) (bool, error) {
	if requesterID == uuid.Nil {
		return false, nil
	}
	if a.PatientID == requesterID {
		return true, nil
	}

	doctor, err := s.repo.Doctor.FindByID(ctx, a.DoctorID)
	if err != nil {
		return false, fmt.Errorf("get doctor %s: %w", a.DoctorID, err)
	}
	return doctor != nil && doctor.UserID == requesterID, nil
}

func (s *appointmentService) MarkNoShows(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.noShowGrace)

	marked, err := s.repo.Appointment.MarkNoShows(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark no-shows: %w", err)
	}

	for _, a := range marked {
		s.publish(ctx, EventAppointmentNoShow, a)
	}
	s.log.Info("No-show sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("marked", len(marked)),
	)
	return len(marked), nil
}

func (s *appointmentService) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (*entity.Appointment, error) {
	appointment, err := s.repo.Appointment.FindByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", appointmentID, err)
	}
	if appointment == nil {
		return nil, fmt.Errorf("%w: %s", ErrAppointmentNotFound, appointmentID)
	}
	return appointment, nil
}

func (s *appointmentService) ListPendingForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*entity.Appointment, int64, error) {
	if err := s.ensureDoctor(ctx, doctorID); err != nil {
		return nil, 0, err
	}

	appointments, err := s.repo.Appointment.FindPendingByDoctorID(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending appointments: %w", err)
	}
	total, err := s.repo.Appointment.CountPendingByDoctorID(ctx, doctorID)
	if err != nil {
		return nil, 0, fmt.Errorf("count pending appointments: %w", err)
	}
	return appointments, total, nil
}

func (s *appointmentService) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*entity.Appointment, int64, error) {
	appointments, err := s.repo.Appointment.FindByPatientID(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patient appointments: %w", err)
	}
	total, err := s.repo.Appointment.CountByPatientID(ctx, patientID)
	if err != nil {
		return nil, 0, fmt.Errorf("count patient appointments: %w", err)
	}
	return appointments, total, nil
}

func (s *appointmentService) DaySlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]DaySlot, error) {
	date = entity.DateOnly(date)
	if err := s.ensureDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	times, err := s.repo.Appointment.FindActiveTimes(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list booked times: %w", err)
	}
	return s.policy.Grid(times), nil
}

func (s *appointmentService) RecentConsultations(ctx context.Context, doctorID uuid.UUID, limit int) ([]*entity.Appointment, error) {
	if err := s.ensureDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	if limit < 1 || limit > maxRecentConsultations {
		limit = maxRecentConsultations
	}

	appointments, err := s.repo.Appointment.FindRecentConsultations(ctx, doctorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent consultations: %w", err)
	}
	return appointments, nil
}

func (s *appointmentService) ensureDoctor(ctx context.Context, doctorID uuid.UUID) error {
	doctor, err := s.repo.Doctor.FindByID(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("get doctor %s: %w", doctorID, err)
	}
	if doctor == nil {
		return fmt.Errorf("%w: %s", ErrDoctorNotFound, doctorID)
	}
	return nil
}

func (s *appointmentService) newAppointment(doctorID, patientID uuid.UUID, date time.Time, at entity.TimeOfDay, info entity.PatientInfo) *entity.Appointment {
	now := s.now().UTC()
	return &entity.Appointment{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Reference: s.reference(now),
		DoctorID:  doctorID,
		PatientID: patientID,
		Date:      date,
		Time:      at,
		Status:    entity.AppointmentStatusPending,
		Patient:   info,
	}
}

// create inserts the appointment, drawing one fresh reference if the first
// collides with an existing one.
func (s *appointmentService) create(ctx context.Context, repo repository.AppointmentRepository, a *entity.Appointment) error {
	err := repo.Create(ctx, a)
	if !errors.Is(err, repository.ErrReferenceTaken) {
		return err
	}
	s.log.Warn("Appointment reference collided, drawing a new one", zap.String("reference", a.Reference))
	a.Reference = s.reference(s.now().UTC())
	return repo.Create(ctx, a)
}

func (s *appointmentService) logBookingFailure(err error, doctorID uuid.UUID, date time.Time, at entity.TimeOfDay) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("doctor_id", doctorID.String()),
		zap.String("date", date.Format(entity.DateLayout)),
		zap.String("time", at.String()),
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		s.log.Warn("Booking rejected", fields...)
		return
	}
	s.log.Error("Booking failed", fields...)
}

// publish never fails the calling operation.
func (s *appointmentService) publish(ctx context.Context, key string, a *entity.Appointment) {
	if s.events == nil {
		return
	}
	event := AppointmentEvent{
		AppointmentID: a.ID.String(),
		Reference:     a.Reference,
		DoctorID:      a.DoctorID.String(),
		PatientID:     a.PatientID.String(),
		Date:          a.Date.Format(entity.DateLayout),
		Time:          a.Time.String(),
		Status:        a.Status,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.events.PublishJSON(ctx, key, event); err != nil {
		s.log.Warn("Failed to publish appointment event",
			zap.Error(err),
			zap.String("event", key),
			zap.String("appointment_id", event.AppointmentID),
		)
	}
}
