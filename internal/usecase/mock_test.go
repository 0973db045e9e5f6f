package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memAppointments keeps appointments in memory and enforces the same
// contract as Postgres: one active row per doctor/date/time and a
// per-doctor-day lock for WithSlotLock.
type memAppointments struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*entity.Appointment

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// beforeCreate runs inside Create before the uniqueness check.
	beforeCreate func(a *entity.Appointment)
}

func newMemAppointments() *memAppointments {
	return &memAppointments{
		rows:  make(map[uuid.UUID]*entity.Appointment),
		locks: make(map[string]*sync.Mutex),
	}
}

func clone(a *entity.Appointment) *entity.Appointment {
	c := *a
	return &c
}

func sameDay(a, b time.Time) bool {
	return a.Format(entity.DateLayout) == b.Format(entity.DateLayout)
}

func (m *memAppointments) insert(a *entity.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[a.ID] = clone(a)
}

func (m *memAppointments) all() []*entity.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Appointment, 0, len(m.rows))
	for _, a := range m.rows {
		out = append(out, clone(a))
	}
	return out
}

func (m *memAppointments) Create(ctx context.Context, a *entity.Appointment) error {
	if m.beforeCreate != nil {
		m.beforeCreate(a)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Reference == a.Reference {
			return fmt.Errorf("create appointment %s: %w", a.Reference, repository.ErrReferenceTaken)
		}
	}
	for _, row := range m.rows {
		if row.Status.IsActive() && row.DoctorID == a.DoctorID && sameDay(row.Date, a.Date) && row.Time == a.Time {
			return fmt.Errorf("create appointment %s: %w", a.Reference, repository.ErrSlotTaken)
		}
	}
	m.rows[a.ID] = clone(a)
	return nil
}

func (m *memAppointments) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[id]; ok {
		return clone(a), nil
	}
	return nil, nil
}

func (m *memAppointments) FindActiveBySlot(ctx context.Context, doctorID uuid.UUID, date time.Time, at entity.TimeOfDay) (*entity.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.Status.IsActive() && a.DoctorID == doctorID && sameDay(a.Date, date) && a.Time == at {
			return clone(a), nil
		}
	}
	return nil, nil
}

func (m *memAppointments) FindActiveTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]entity.TimeOfDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var times []entity.TimeOfDay
	for _, a := range m.rows {
		if a.Status.IsActive() && a.DoctorID == doctorID && sameDay(a.Date, date) {
			times = append(times, a.Time)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times, nil
}

func (m *memAppointments) CountActiveByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	times, _ := m.FindActiveTimes(ctx, doctorID, date)
	return len(times), nil
}

func (m *memAppointments) filter(keep func(*entity.Appointment) bool, less func(a, b *entity.Appointment) bool) []*entity.Appointment {
	var out []*entity.Appointment
	for _, a := range m.all() {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func page(items []*entity.Appointment, limit, offset int) []*entity.Appointment {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (m *memAppointments) pendingFor(doctorID uuid.UUID) []*entity.Appointment {
	return m.filter(
		func(a *entity.Appointment) bool {
			return a.DoctorID == doctorID && a.Status == entity.AppointmentStatusPending
		},
		func(a, b *entity.Appointment) bool { return a.StartsAt().Before(b.StartsAt()) },
	)
}

func (m *memAppointments) FindPendingByDoctorID(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*entity.Appointment, error) {
	return page(m.pendingFor(doctorID), limit, offset), nil
}

func (m *memAppointments) CountPendingByDoctorID(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	return int64(len(m.pendingFor(doctorID))), nil
}

func (m *memAppointments) byPatient(patientID uuid.UUID) []*entity.Appointment {
	return m.filter(
		func(a *entity.Appointment) bool { return a.PatientID == patientID },
		func(a, b *entity.Appointment) bool { return a.CreatedAt.After(b.CreatedAt) },
	)
}

func (m *memAppointments) FindByPatientID(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*entity.Appointment, error) {
	return page(m.byPatient(patientID), limit, offset), nil
}

func (m *memAppointments) CountByPatientID(ctx context.Context, patientID uuid.UUID) (int64, error) {
	return int64(len(m.byPatient(patientID))), nil
}

func (m *memAppointments) Transition(ctx context.Context, id uuid.UUID, from []entity.AppointmentStatus, to entity.AppointmentStatus) (*entity.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	for _, st := range from {
		if a.Status == st {
			a.Status = to
			return clone(a), nil
		}
	}
	return nil, nil
}

func (m *memAppointments) SaveResponse(ctx context.Context, id uuid.UUID, response string, consultation *entity.Consultation, at time.Time) (*entity.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok || (a.Status != entity.AppointmentStatusPending && a.Status != entity.AppointmentStatusCompleted) {
		return nil, nil
	}
	a.Status = entity.AppointmentStatusCompleted
	a.DoctorResponse = &response
	a.RespondedAt = &at
	if consultation != nil {
		c := *consultation
		c.AppointmentID = id
		c.CreatedAt = at
		if a.Consultation != nil {
			c.CreatedAt = a.Consultation.CreatedAt
		}
		c.UpdatedAt = at
		a.Consultation = &c
	}
	return clone(a), nil
}

func (m *memAppointments) FindRecentConsultations(ctx context.Context, doctorID uuid.UUID, limit int) ([]*entity.Appointment, error) {
	out := m.filter(
		func(a *entity.Appointment) bool { return a.DoctorID == doctorID && a.Consultation != nil },
		func(a, b *entity.Appointment) bool { return a.Consultation.UpdatedAt.After(b.Consultation.UpdatedAt) },
	)
	return page(out, limit, 0), nil
}

func (m *memAppointments) MarkNoShows(ctx context.Context, cutoff time.Time) ([]*entity.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var marked []*entity.Appointment
	for _, a := range m.rows {
		if a.Status == entity.AppointmentStatusPending && a.StartsAt().Before(cutoff) {
			a.Status = entity.AppointmentStatusNoShow
			marked = append(marked, clone(a))
		}
	}
	return marked, nil
}

func (m *memAppointments) WithSlotLock(ctx context.Context, doctorID uuid.UUID, date time.Time, fn func(repo repository.AppointmentRepository) error) error {
	key := doctorID.String() + "/" + date.Format(entity.DateLayout)

	m.locksMu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.locksMu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(m)
}

type memDoctors struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*entity.Doctor
}

func newMemDoctors(doctors ...*entity.Doctor) *memDoctors {
	m := &memDoctors{doctors: make(map[uuid.UUID]*entity.Doctor)}
	for _, d := range doctors {
		m.doctors[d.ID] = d
	}
	return m
}

func (m *memDoctors) FindByID(ctx context.Context, id uuid.UUID) (*entity.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.doctors[id]; ok {
		c := *d
		return &c, nil
	}
	return nil, nil
}

func (m *memDoctors) UpdateProfile(ctx context.Context, doctor *entity.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[doctor.ID]; !ok {
		return fmt.Errorf("doctor %s not found", doctor.ID)
	}
	c := *doctor
	m.doctors[doctor.ID] = &c
	return nil
}

type recordedEvent struct {
	key   string
	event AppointmentEvent
}

type memPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *memPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	ev, _ := v.(AppointmentEvent)
	p.events = append(p.events, recordedEvent{key: key, event: ev})
	return nil
}

func (p *memPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.key
	}
	return out
}

type fixture struct {
	svc          *appointmentService
	appointments *memAppointments
	doctors      *memDoctors
	events       *memPublisher
	doctor       *entity.Doctor
	patientID    uuid.UUID
	date         time.Time
}

func newFixture(policy SlotPolicy) *fixture {
	doctor := &entity.Doctor{
		Base:      entity.Base{ID: uuid.New()},
		UserID:    uuid.New(),
		FirstName: "Ana",
		LastName:  "Ruiz",
	}
	appointments := newMemAppointments()
	doctors := newMemDoctors(doctor)
	events := &memPublisher{}

	repo := &repository.Repository{Doctor: doctors, Appointment: appointments}
	svc := NewAppointmentService(repo, policy, time.Hour, events, zap.NewNop()).(*appointmentService)

	return &fixture{
		svc:          svc,
		appointments: appointments,
		doctors:      doctors,
		events:       events,
		doctor:       doctor,
		patientID:    uuid.New(),
		date:         time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func defaultPolicy() SlotPolicy {
	return SlotPolicy{DayStart: 9 * 60, Length: 30, MaxPerDay: 16}
}

func patient(name string) entity.PatientInfo {
	return entity.PatientInfo{Name: name, Email: "patient@example.com", Reason: "checkup"}
}
