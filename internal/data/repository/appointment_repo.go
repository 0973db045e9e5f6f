package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

var (
	// ErrSlotTaken is returned by Create when another active appointment
	// already holds the same doctor, date and time.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrReferenceTaken is returned by Create when the reference is in use.
	// The transaction stays usable so the caller can retry with a new one.
	ErrReferenceTaken = errors.New("appointment reference already taken")
)

const activeSlotConstraint = "appointments_active_slot_key"

var appointmentFields = []string{
	"id", "reference", "doctor_id", "patient_id", "appointment_date", "appointment_time", "status",
	"patient_name", "patient_email", "patient_phone", "patient_ref", "gender", "age", "height_cm", "weight_kg",
	"health_condition", "reason", "notes", "doctor_response", "responded_at", "created_at", "updated_at",
}

var (
	appointmentColumns = strings.Join(appointmentFields, ", ")
	// same list qualified with the "a" alias, for joins
	joinedAppointmentColumns = "a." + strings.Join(appointmentFields, ", a.")
)

const consultationColumns = `c.appointment_id, c.diagnosis, c.treatment_plan, c.prescription,
	c.follow_up_required, c.follow_up_date, c.created_at, c.updated_at`

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *entity.Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	FindActiveBySlot(ctx context.Context, doctorID uuid.UUID, date time.Time, at entity.TimeOfDay) (*entity.Appointment, error)
	FindActiveTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]entity.TimeOfDay, error)
	CountActiveByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error)

	FindPendingByDoctorID(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*entity.Appointment, error)
	CountPendingByDoctorID(ctx context.Context, doctorID uuid.UUID) (int64, error)
	FindByPatientID(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*entity.Appointment, error)
	CountByPatientID(ctx context.Context, patientID uuid.UUID) (int64, error)

	// Transition moves the appointment to status `to` only if its current
	// status is one of `from`. Returns nil, nil when nothing matched.
	Transition(ctx context.Context, id uuid.UUID, from []entity.AppointmentStatus, to entity.AppointmentStatus) (*entity.Appointment, error)
	// SaveResponse completes a pending or completed appointment with the
	// doctor's response and, when given, upserts its consultation record in
	// the same transaction. Returns nil, nil when nothing matched.
	SaveResponse(ctx context.Context, id uuid.UUID, response string, consultation *entity.Consultation, at time.Time) (*entity.Appointment, error)
	// FindRecentConsultations returns the doctor's appointments that have a
	// consultation, most recently updated first.
	FindRecentConsultations(ctx context.Context, doctorID uuid.UUID, limit int) ([]*entity.Appointment, error)
	// MarkNoShows flips pending appointments that started before cutoff.
	MarkNoShows(ctx context.Context, cutoff time.Time) ([]*entity.Appointment, error)

	// WithSlotLock runs fn in a transaction that holds an exclusive lock on
	// the doctor's day. The repository passed to fn is bound to that transaction.
	WithSlotLock(ctx context.Context, doctorID uuid.UUID, date time.Time, fn func(repo AppointmentRepository) error) error
}

type appointmentRepository struct {
	db   database.PgxIface
	q    database.Querier
	inTx bool
	log  *zap.Logger
}

func NewAppointmentRepository(db database.PgxIface, log *zap.Logger) AppointmentRepository {
	return &appointmentRepository{
		db:  db,
		q:   db,
		log: log.With(zap.String("repository", "appointment")),
	}
}

func (r *appointmentRepository) WithSlotLock(ctx context.Context, doctorID uuid.UUID, date time.Time, fn func(repo AppointmentRepository) error) error {
	if r.inTx {
		return fn(r)
	}

	key := doctorID.String() + "/" + date.Format(entity.DateLayout)
	return r.inTransaction(ctx, func(txRepo *appointmentRepository) error {
		if _, err := txRepo.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			r.log.Error("Failed to lock doctor day", zap.Error(err), zap.String("key", key))
			return fmt.Errorf("lock doctor day %s: %w", key, err)
		}
		return fn(txRepo)
	})
}

// inTransaction runs fn against a repository bound to a ReadCommitted
// transaction, reusing the current one when already inside it.
func (r *appointmentRepository) inTransaction(ctx context.Context, fn func(txRepo *appointmentRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return database.InTx(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&appointmentRepository{db: r.db, q: tx, inTx: true, log: r.log})
	})
}

func (r *appointmentRepository) Create(ctx context.Context, a *entity.Appointment) error {
	query := `
		INSERT INTO appointments (id, reference, doctor_id, patient_id, appointment_date, appointment_time, status,
			patient_name, patient_email, patient_phone, patient_ref, gender, age, height_cm, weight_kg,
			health_condition, reason, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (reference) DO NOTHING
	`

	var gender *string
	if a.Patient.Gender != nil {
		g := string(*a.Patient.Gender)
		gender = &g
	}

	result, err := r.q.Exec(ctx, query,
		a.ID,
		a.Reference,
		a.DoctorID,
		a.PatientID,
		a.Date,
		toPgTime(a.Time),
		string(a.Status),
		a.Patient.Name,
		a.Patient.Email,
		a.Patient.Phone,
		a.Patient.PatientRef,
		gender,
		a.Patient.Age,
		a.Patient.HeightCm,
		a.Patient.WeightKg,
		a.Patient.HealthCondition,
		a.Patient.Reason,
		a.Patient.Notes,
		a.CreatedAt,
		a.UpdatedAt,
	)

	if database.IsUniqueViolation(err, activeSlotConstraint) {
		r.log.Warn("Slot already taken",
			zap.String("doctor_id", a.DoctorID.String()),
			zap.String("date", a.Date.Format(entity.DateLayout)),
			zap.String("time", a.Time.String()),
		)
		return fmt.Errorf("create appointment %s: %w", a.Reference, ErrSlotTaken)
	}
	if err != nil {
		r.log.Error("Failed to create appointment",
			zap.Error(err),
			zap.String("reference", a.Reference),
			zap.String("doctor_id", a.DoctorID.String()),
		)
		return fmt.Errorf("create appointment %s: %w", a.Reference, err)
	}

	if result.RowsAffected() == 0 {
		r.log.Warn("Appointment reference already taken", zap.String("reference", a.Reference))
		return fmt.Errorf("create appointment %s: %w", a.Reference, ErrReferenceTaken)
	}

	return nil
}

func (r *appointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	appointment, err := scanAppointment(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find appointment by ID",
			zap.Error(err),
			zap.String("appointment_id", id.String()),
		)
		return nil, fmt.Errorf("find appointment by ID %s: %w", id.String(), err)
	}

	if appointment.Consultation, err = r.findConsultation(ctx, id); err != nil {
		return nil, err
	}
	return appointment, nil
}

func (r *appointmentRepository) findConsultation(ctx context.Context, appointmentID uuid.UUID) (*entity.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations c WHERE c.appointment_id = $1`

	var c entity.Consultation
	err := r.q.QueryRow(ctx, query, appointmentID).Scan(consultationDest(&c)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find consultation",
			zap.Error(err),
			zap.String("appointment_id", appointmentID.String()),
		)
		return nil, fmt.Errorf("find consultation for appointment %s: %w", appointmentID.String(), err)
	}

	return &c, nil
}

func (r *appointmentRepository) FindActiveBySlot(ctx context.Context, doctorID uuid.UUID, date time.Time, at entity.TimeOfDay) (*entity.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2 AND appointment_time = $3 AND status <> 'cancelled'
	`

	appointment, err := scanAppointment(r.q.QueryRow(ctx, query, doctorID, date, toPgTime(at)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find appointment by slot",
			zap.Error(err),
			zap.String("doctor_id", doctorID.String()),
			zap.String("date", date.Format(entity.DateLayout)),
			zap.String("time", at.String()),
		)
		return nil, fmt.Errorf("find appointment for doctor %s at %s %s: %w",
			doctorID.String(), date.Format(entity.DateLayout), at.String(), err)
	}

	return appointment, nil
}

func (r *appointmentRepository) FindActiveTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]entity.TimeOfDay, error) {
	query := `
		SELECT appointment_time
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2 AND status <> 'cancelled'
		ORDER BY appointment_time
	`

	rows, err := r.q.Query(ctx, query, doctorID, date)
	if err != nil {
		r.log.Error("Failed to find active times",
			zap.Error(err),
			zap.String("doctor_id", doctorID.String()),
			zap.String("date", date.Format(entity.DateLayout)),
		)
		return nil, fmt.Errorf("find active times for doctor %s on %s: %w",
			doctorID.String(), date.Format(entity.DateLayout), err)
	}
	defer rows.Close()

	var times []entity.TimeOfDay
	for rows.Next() {
		var t pgtype.Time
		if err := rows.Scan(&t); err != nil {
			r.log.Error("Failed to scan appointment time", zap.Error(err))
			return nil, fmt.Errorf("scan appointment time: %w", err)
		}
		times = append(times, fromPgTime(t))
	}

	return times, rows.Err()
}

func (r *appointmentRepository) CountActiveByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2 AND status <> 'cancelled'
	`

	var count int
	if err := r.q.QueryRow(ctx, query, doctorID, date).Scan(&count); err != nil {
		r.log.Error("Failed to count active appointments",
			zap.Error(err),
			zap.String("doctor_id", doctorID.String()),
			zap.String("date", date.Format(entity.DateLayout)),
		)
		return 0, fmt.Errorf("count appointments for doctor %s on %s: %w",
			doctorID.String(), date.Format(entity.DateLayout), err)
	}

	return count, nil
}

func (r *appointmentRepository) FindPendingByDoctorID(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*entity.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND status = 'pending'
		ORDER BY appointment_date, appointment_time
		LIMIT $2 OFFSET $3
	`

	rows, err := r.q.Query(ctx, query, doctorID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find pending appointments",
			zap.Error(err),
			zap.String("doctor_id", doctorID.String()),
		)
		return nil, fmt.Errorf("find pending appointments for doctor %s: %w", doctorID.String(), err)
	}

	return r.collect(rows)
}

func (r *appointmentRepository) CountPendingByDoctorID(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND status = 'pending'`

	var count int64
	if err := r.q.QueryRow(ctx, query, doctorID).Scan(&count); err != nil {
		r.log.Error("Failed to count pending appointments",
			zap.Error(err),
			zap.String("doctor_id", doctorID.String()),
		)
		return 0, fmt.Errorf("count pending appointments for doctor %s: %w", doctorID.String(), err)
	}

	return count, nil
}

func (r *appointmentRepository) FindByPatientID(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*entity.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.q.Query(ctx, query, patientID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find appointments by patient ID",
			zap.Error(err),
			zap.String("patient_id", patientID.String()),
		)
		return nil, fmt.Errorf("find appointments by patient ID %s: %w", patientID.String(), err)
	}

	return r.collect(rows)
}

func (r *appointmentRepository) CountByPatientID(ctx context.Context, patientID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM appointments WHERE patient_id = $1`

	var count int64
	if err := r.q.QueryRow(ctx, query, patientID).Scan(&count); err != nil {
		r.log.Error("Failed to count appointments by patient ID",
			zap.Error(err),
			zap.String("patient_id", patientID.String()),
		)
		return 0, fmt.Errorf("count appointments by patient ID %s: %w", patientID.String(), err)
	}

	return count, nil
}

func (r *appointmentRepository) Transition(ctx context.Context, id uuid.UUID, from []entity.AppointmentStatus, to entity.AppointmentStatus) (*entity.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + appointmentColumns

	appointment, err := scanAppointment(r.q.QueryRow(ctx, query, id, string(to), statusStrings(from)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to update appointment status",
			zap.Error(err),
			zap.String("appointment_id", id.String()),
			zap.String("status", string(to)),
		)
		return nil, fmt.Errorf("update appointment %s status to %s: %w", id.String(), string(to), err)
	}

	return appointment, nil
}

func (r *appointmentRepository) SaveResponse(ctx context.Context, id uuid.UUID, response string, consultation *entity.Consultation, at time.Time) (*entity.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'completed', doctor_response = $2, responded_at = $3, updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'completed')
		RETURNING ` + appointmentColumns

	var saved *entity.Appointment
	err := r.inTransaction(ctx, func(txRepo *appointmentRepository) error {
		appointment, err := scanAppointment(txRepo.q.QueryRow(ctx, query, id, response, at))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			r.log.Error("Failed to save doctor response",
				zap.Error(err),
				zap.String("appointment_id", id.String()),
			)
			return fmt.Errorf("save response for appointment %s: %w", id.String(), err)
		}

		if consultation != nil {
			if err := txRepo.upsertConsultation(ctx, id, consultation, at); err != nil {
				return err
			}
		}
		if appointment.Consultation, err = txRepo.findConsultation(ctx, id); err != nil {
			return err
		}
		saved = appointment
		return nil
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

func (r *appointmentRepository) upsertConsultation(ctx context.Context, appointmentID uuid.UUID, c *entity.Consultation, at time.Time) error {
	query := `
		INSERT INTO consultations (appointment_id, diagnosis, treatment_plan, prescription,
			follow_up_required, follow_up_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (appointment_id) DO UPDATE
		SET diagnosis = EXCLUDED.diagnosis,
			treatment_plan = EXCLUDED.treatment_plan,
			prescription = EXCLUDED.prescription,
			follow_up_required = EXCLUDED.follow_up_required,
			follow_up_date = EXCLUDED.follow_up_date,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query,
		appointmentID,
		c.Diagnosis,
		c.TreatmentPlan,
		c.Prescription,
		c.FollowUpRequired,
		c.FollowUpDate,
		at,
	)
	if err != nil {
		r.log.Error("Failed to save consultation",
			zap.Error(err),
			zap.String("appointment_id", appointmentID.String()),
		)
		return fmt.Errorf("save consultation for appointment %s: %w", appointmentID.String(), err)
	}

	return nil
}

func (r *appointmentRepository) FindRecentConsultations(ctx context.Context, doctorID uuid.UUID, limit int) ([]*entity.Appointment, error) {
	query := `
		SELECT ` + joinedAppointmentColumns + `, ` + consultationColumns + `
		FROM consultations c
		JOIN appointments a ON a.id = c.appointment_id
		WHERE a.doctor_id = $1
		ORDER BY c.updated_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, doctorID, limit)
	if err != nil {
		r.log.Error("Failed to find recent consultations",
			zap.Error(err),
			zap.String("doctor_id", doctorID.String()),
		)
		return nil, fmt.Errorf("find recent consultations for doctor %s: %w", doctorID.String(), err)
	}
	defer rows.Close()

	var appointments []*entity.Appointment
	for rows.Next() {
		var c entity.Consultation
		appointment, err := scanAppointment(rows, consultationDest(&c)...)
		if err != nil {
			r.log.Error("Failed to scan consultation row", zap.Error(err))
			return nil, fmt.Errorf("scan consultation row: %w", err)
		}
		appointment.Consultation = &c
		appointments = append(appointments, appointment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consultation rows: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) MarkNoShows(ctx context.Context, cutoff time.Time) ([]*entity.Appointment, error) {
	// appointment_date + appointment_time is a wall-clock timestamp; pgx
	// encodes cutoff by its wall clock as well.
	query := `
		UPDATE appointments
		SET status = 'no_show', updated_at = NOW()
		WHERE status = 'pending' AND (appointment_date + appointment_time) < $1
		RETURNING ` + appointmentColumns

	rows, err := r.q.Query(ctx, query, pgtype.Timestamp{Time: cutoff, Valid: true})
	if err != nil {
		r.log.Error("Failed to mark no-shows", zap.Error(err), zap.Time("cutoff", cutoff))
		return nil, fmt.Errorf("mark no-shows before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	return r.collect(rows)
}

func (r *appointmentRepository) collect(rows pgx.Rows) ([]*entity.Appointment, error) {
	defer rows.Close()

	var appointments []*entity.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			r.log.Error("Failed to scan appointment row", zap.Error(err))
			return nil, fmt.Errorf("scan appointment row: %w", err)
		}
		appointments = append(appointments, appointment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointment rows: %w", err)
	}
	return appointments, nil
}

// scanAppointment reads appointmentColumns in order, followed by any extra
// destinations selected after them.
func scanAppointment(row pgx.Row, extra ...any) (*entity.Appointment, error) {
	var (
		a      entity.Appointment
		at     pgtype.Time
		status string
		gender *string
	)

	dest := []any{
		&a.ID,
		&a.Reference,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&at,
		&status,
		&a.Patient.Name,
		&a.Patient.Email,
		&a.Patient.Phone,
		&a.Patient.PatientRef,
		&gender,
		&a.Patient.Age,
		&a.Patient.HeightCm,
		&a.Patient.WeightKg,
		&a.Patient.HealthCondition,
		&a.Patient.Reason,
		&a.Patient.Notes,
		&a.DoctorResponse,
		&a.RespondedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	a.Time = fromPgTime(at)
	if a.Status, err = entity.ParseStatus(status); err != nil {
		return nil, err
	}
	if gender != nil {
		g := entity.Gender(*gender)
		a.Patient.Gender = &g
	}

	return &a, nil
}

func consultationDest(c *entity.Consultation) []any {
	return []any{
		&c.AppointmentID,
		&c.Diagnosis,
		&c.TreatmentPlan,
		&c.Prescription,
		&c.FollowUpRequired,
		&c.FollowUpDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
}

func toPgTime(t entity.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Minute/time.Microsecond), Valid: true}
}

func fromPgTime(t pgtype.Time) entity.TimeOfDay {
	return entity.TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

func statusStrings(statuses []entity.AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
