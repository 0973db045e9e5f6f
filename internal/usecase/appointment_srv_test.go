package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"

	"github.com/google/uuid"
)

func mustTime(t *testing.T, s string) entity.TimeOfDay {
	t.Helper()
	tod, err := entity.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tod
}

func TestBookNextAvailable_SequentialSlots(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()

	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00"}
	for k, w := range want {
		a, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("p"))
		if err != nil {
			t.Fatalf("booking %d: unexpected error: %v", k, err)
		}
		if a.Time.String() != w {
			t.Errorf("booking %d: expected %s, got %s", k, w, a.Time)
		}
		if a.Status != entity.AppointmentStatusPending {
			t.Errorf("booking %d: expected pending, got %s", k, a.Status)
		}
		if a.Reference == "" {
			t.Errorf("booking %d: expected a reference", k)
		}
	}
}

func TestBookNextAvailable_SkipsOccupiedSlots(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()

	if _, err := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "09:30"), f.patientID, patient("a")); err != nil {
		t.Fatalf("explicit booking: %v", err)
	}

	// one active booking, so the candidate is 09:30 which is taken
	a, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Time.String() != "10:00" {
		t.Errorf("expected 10:00, got %s", a.Time)
	}

	b, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Time.String() != "10:30" {
		t.Errorf("expected 10:30, got %s", b.Time)
	}
}

func TestBookNextAvailable_DayFull(t *testing.T) {
	tests := []struct {
		name   string
		policy SlotPolicy
		fits   int
	}{
		{"daily cap", SlotPolicy{DayStart: 9 * 60, Length: 30, MaxPerDay: 2}, 2},
		{"midnight", SlotPolicy{DayStart: 23 * 60, Length: 30, MaxPerDay: 0}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.policy)
			ctx := context.Background()

			for i := 0; i < tt.fits; i++ {
				if _, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("p")); err != nil {
					t.Fatalf("booking %d: unexpected error: %v", i, err)
				}
			}

			_, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("late"))
			if !errors.Is(err, ErrDayFull) {
				t.Fatalf("expected ErrDayFull, got %v", err)
			}
			if !errors.Is(err, ErrConflict) {
				t.Errorf("expected ErrDayFull to match ErrConflict")
			}
			if got := len(f.appointments.all()); got != tt.fits {
				t.Errorf("expected %d rows, got %d", tt.fits, got)
			}
		})
	}
}

func TestBookNextAvailable_RetriesOnceAfterRace(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()

	raced := false
	f.appointments.beforeCreate = func(a *entity.Appointment) {
		if raced {
			return
		}
		raced = true
		// another writer takes the slot outside the lock
		rival := *a
		rival.ID = uuid.New()
		rival.PatientID = uuid.New()
		rival.Reference = a.Reference + "-R"
		f.appointments.insert(&rival)
	}

	a, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("p"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Time.String() != "09:30" {
		t.Errorf("expected retry to land on 09:30, got %s", a.Time)
	}
	if got := len(f.appointments.all()); got != 2 {
		t.Errorf("expected 2 rows, got %d", got)
	}
}

func TestBookNextAvailable_ConflictAfterRetry(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()

	f.appointments.beforeCreate = func(a *entity.Appointment) {
		rival := *a
		rival.ID = uuid.New()
		rival.PatientID = uuid.New()
		rival.Reference = a.Reference + "-R"
		f.appointments.insert(&rival)
	}

	_, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("p"))
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}
	if conflict.Time.String() != "09:30" {
		t.Errorf("expected conflict on second candidate 09:30, got %s", conflict.Time)
	}
	for _, a := range f.appointments.all() {
		if a.PatientID == f.patientID {
			t.Errorf("no row should be stored for the rejected booking")
		}
	}
}

func TestBookExplicit_ConflictOnTakenSlot(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()
	at := mustTime(t, "10:00")

	first, err := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, at, f.patientID, patient("a"))
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, err = f.svc.BookExplicit(ctx, f.doctor.ID, f.date, at, uuid.New(), patient("b"))
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected error to match ErrConflict")
	}
	if conflict.ExistingID != first.ID {
		t.Errorf("expected existing ID %s, got %s", first.ID, conflict.ExistingID)
	}
	if conflict.Time != at || conflict.DoctorID != f.doctor.ID {
		t.Errorf("unexpected conflict details %+v", conflict)
	}
	if got := len(f.appointments.all()); got != 1 {
		t.Errorf("expected exactly 1 row, got %d", got)
	}
}

func TestBookExplicit_SameTimeOtherDoctorOrDay(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()
	other := &entity.Doctor{Base: entity.Base{ID: uuid.New()}, UserID: uuid.New()}
	f.doctors.doctors[other.ID] = other
	at := mustTime(t, "10:00")

	if _, err := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, at, f.patientID, patient("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.BookExplicit(ctx, other.ID, f.date, at, f.patientID, patient("b")); err != nil {
		t.Errorf("other doctor, same slot: %v", err)
	}
	if _, err := f.svc.BookExplicit(ctx, f.doctor.ID, f.date.AddDate(0, 0, 1), at, f.patientID, patient("c")); err != nil {
		t.Errorf("same doctor, next day: %v", err)
	}
}

func TestBookExplicit_InvalidInput(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()

	tests := []struct {
		name      string
		doctorID  uuid.UUID
		at        entity.TimeOfDay
		patientID uuid.UUID
		want      error
	}{
		{"unknown doctor", uuid.New(), 600, f.patientID, ErrDoctorNotFound},
		{"time out of range", f.doctor.ID, entity.MinutesPerDay, f.patientID, ErrInvalidInput},
		{"missing patient", f.doctor.ID, 600, uuid.Nil, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.BookExplicit(ctx, tt.doctorID, f.date, tt.at, tt.patientID, patient("p"))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := f.svc.BookExplicit(ctx, uuid.New(), f.date, 600, f.patientID, patient("p")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected unknown doctor to match ErrNotFound, got %v", err)
	}
	if got := len(f.appointments.all()); got != 0 {
		t.Errorf("expected no rows, got %d", got)
	}
}

func TestBookExplicit_CancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()
	at := mustTime(t, "11:00")

	first, err := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, at, f.patientID, patient("a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, first.ID, f.patientID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	second, err := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, at, uuid.New(), patient("b"))
	if err != nil {
		t.Fatalf("rebooking cancelled slot: %v", err)
	}
	if second.ID == first.ID {
		t.Errorf("expected a new appointment")
	}
}

func TestBookExplicit_ConcurrentSameSlot(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()
	at := mustTime(t, "14:00")

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, at, uuid.New(), patient("p"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Errorf("expected 1 success and %d conflicts, got %d and %d", workers-1, successes, conflicts)
	}
}

func TestBookNextAvailable_ConcurrentBookingsGetDistinctSlots(t *testing.T) {
	f := newFixture(SlotPolicy{DayStart: 8 * 60, Length: 20, MaxPerDay: 0})
	ctx := context.Background()

	const workers = 20
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		times = make(map[entity.TimeOfDay]int)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, uuid.New(), patient("p"))
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			times[a.Time]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(times) != workers {
		t.Fatalf("expected %d distinct slots, got %d", workers, len(times))
	}
	for k := 0; k < workers; k++ {
		want := entity.TimeOfDay(8*60 + k*20)
		if times[want] != 1 {
			t.Errorf("slot %s assigned %d times", want, times[want])
		}
	}
}

func TestRecordResponse(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()
	respondedAt := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return respondedAt }

	a, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("p"))
	if err != nil {
		t.Fatalf("booking: %v", err)
	}

	done, err := f.svc.RecordResponse(ctx, a.ID, "Rest and fluids", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Status != entity.AppointmentStatusCompleted {
		t.Errorf("expected completed, got %s", done.Status)
	}
	if done.DoctorResponse == nil || *done.DoctorResponse != "Rest and fluids" {
		t.Errorf("unexpected response %v", done.DoctorResponse)
	}
	if done.RespondedAt == nil || !done.RespondedAt.Equal(respondedAt) {
		t.Errorf("unexpected responded_at %v", done.RespondedAt)
	}

	again, err := f.svc.RecordResponse(ctx, a.ID, "Follow up in a week", nil)
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if *again.DoctorResponse != "Follow up in a week" {
		t.Errorf("expected overwritten response, got %q", *again.DoctorResponse)
	}

	keys := f.events.keys()
	if len(keys) != 3 || keys[1] != EventAppointmentCompleted || keys[2] != EventAppointmentCompleted {
		t.Errorf("unexpected events %v", keys)
	}
}

func TestRecordResponse_Rejections(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()

	cancelled, _ := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("a"))
	if _, err := f.svc.Cancel(ctx, cancelled.ID, f.patientID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	noShow := &entity.Appointment{
		Base:     entity.Base{ID: uuid.New()},
		DoctorID: f.doctor.ID,
		Date:     f.date,
		Time:     mustTime(t, "15:00"),
		Status:   entity.AppointmentStatusNoShow,
	}
	f.appointments.insert(noShow)

	pending, _ := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("b"))

	sameDay := f.date
	tests := []struct {
		name         string
		id           uuid.UUID
		text         string
		consultation *entity.Consultation
		want         error
	}{
		{"unknown", uuid.New(), "ok", nil, ErrNotFound},
		{"unknown with blank text", uuid.New(), "", nil, ErrNotFound},
		{"cancelled", cancelled.ID, "ok", nil, ErrInvalidTransition},
		{"no show", noShow.ID, "ok", nil, ErrInvalidTransition},
		{"blank response", pending.ID, "   ", nil, ErrInvalidInput},
		{"consultation without diagnosis", pending.ID, "ok",
			&entity.Consultation{TreatmentPlan: "rest"}, ErrInvalidInput},
		{"follow-up date not required", pending.ID, "ok",
			&entity.Consultation{Diagnosis: "flu", TreatmentPlan: "rest", FollowUpDate: ptr(f.date.AddDate(0, 0, 7))}, ErrInvalidInput},
		{"follow-up on the visit day", pending.ID, "ok",
			&entity.Consultation{Diagnosis: "flu", TreatmentPlan: "rest", FollowUpRequired: true, FollowUpDate: &sameDay}, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.RecordResponse(ctx, tt.id, tt.text, tt.consultation); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	stored, _ := f.appointments.FindByID(ctx, pending.ID)
	if stored.Status != entity.AppointmentStatusPending || stored.Consultation != nil {
		t.Errorf("rejected responses must not touch the appointment, got %+v", stored)
	}
}

func ptr[T any](v T) *T { return &v }

func TestRecordResponse_Consultation(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()

	a, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("p"))
	if err != nil {
		t.Fatalf("booking: %v", err)
	}

	first := &entity.Consultation{
		Diagnosis:        "Seasonal flu",
		TreatmentPlan:    "Rest and fluids",
		Prescription:     ptr("Paracetamol 500mg"),
		FollowUpRequired: true,
		FollowUpDate:     ptr(f.date.AddDate(0, 0, 7)),
	}
	done, err := f.svc.RecordResponse(ctx, a.ID, "See notes", first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Consultation == nil || done.Consultation.Diagnosis != "Seasonal flu" || done.Consultation.AppointmentID != a.ID {
		t.Fatalf("unexpected consultation %+v", done.Consultation)
	}

	second := &entity.Consultation{Diagnosis: "Bronchitis", TreatmentPlan: "Antibiotics"}
	again, err := f.svc.RecordResponse(ctx, a.ID, "Updated", second)
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	c := again.Consultation
	if c == nil || c.Diagnosis != "Bronchitis" || c.Prescription != nil || c.FollowUpRequired {
		t.Errorf("expected the consultation to be replaced, got %+v", c)
	}

	// a response without a consultation keeps the stored one
	kept, err := f.svc.RecordResponse(ctx, a.ID, "Just a note", nil)
	if err != nil {
		t.Fatalf("response only: %v", err)
	}
	if kept.Consultation == nil || kept.Consultation.Diagnosis != "Bronchitis" {
		t.Errorf("expected consultation kept, got %+v", kept.Consultation)
	}
}

func TestRecentConsultations(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()
	clock := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return clock }

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		a, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("p"))
		if err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
		ids = append(ids, a.ID)
	}
	// the middle one stays without a consultation
	for _, id := range []uuid.UUID{ids[0], ids[2]} {
		clock = clock.Add(time.Minute)
		if _, err := f.svc.RecordResponse(ctx, id, "ok", &entity.Consultation{Diagnosis: "d", TreatmentPlan: "t"}); err != nil {
			t.Fatalf("respond: %v", err)
		}
	}

	recent, err := f.svc.RecentConsultations(ctx, f.doctor.ID, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != ids[2] || recent[1].ID != ids[0] {
		t.Errorf("expected newest consultation first, got %d rows", len(recent))
	}

	if _, err := f.svc.RecentConsultations(ctx, uuid.New(), 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown doctor, got %v", err)
	}
}

func TestBookExplicit_ReferenceCollisionDrawsNewReference(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()

	f.appointments.insert(&entity.Appointment{
		Base:      entity.Base{ID: uuid.New()},
		Reference: "APT-TAKEN",
		DoctorID:  uuid.New(),
		Date:      f.date,
		Time:      mustTime(t, "09:00"),
		Status:    entity.AppointmentStatusPending,
	})

	refs := []string{"APT-TAKEN", "APT-FRESH"}
	f.svc.reference = func(time.Time) string {
		r := refs[0]
		if len(refs) > 1 {
			refs = refs[1:]
		}
		return r
	}

	a, err := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "10:00"), f.patientID, patient("p"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Reference != "APT-FRESH" {
		t.Errorf("expected a fresh reference, got %s", a.Reference)
	}

	// a second collision is not retried again
	f.svc.reference = func(time.Time) string { return "APT-TAKEN" }
	_, err = f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "10:30"), f.patientID, patient("p"))
	if !errors.Is(err, repository.ErrReferenceTaken) || errors.Is(err, ErrConflict) {
		t.Errorf("expected a reference error that is not a slot conflict, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()

	book := func() *entity.Appointment {
		a, err := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("p"))
		if err != nil {
			t.Fatalf("booking: %v", err)
		}
		return a
	}

	t.Run("patient", func(t *testing.T) {
		a, err := f.svc.Cancel(ctx, book().ID, f.patientID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Status != entity.AppointmentStatusCancelled {
			t.Errorf("expected cancelled, got %s", a.Status)
		}
	})

	t.Run("doctor", func(t *testing.T) {
		if _, err := f.svc.Cancel(ctx, book().ID, f.doctor.UserID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("stranger", func(t *testing.T) {
		a := book()
		if _, err := f.svc.Cancel(ctx, a.ID, uuid.New()); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := f.svc.Cancel(ctx, a.ID, uuid.Nil); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized for missing identity, got %v", err)
		}
		stored, _ := f.appointments.FindByID(ctx, a.ID)
		if stored.Status != entity.AppointmentStatusPending {
			t.Errorf("expected appointment to stay pending, got %s", stored.Status)
		}
	})

	t.Run("completed", func(t *testing.T) {
		a := book()
		if _, err := f.svc.RecordResponse(ctx, a.ID, "done", nil); err != nil {
			t.Fatalf("respond: %v", err)
		}
		if _, err := f.svc.Cancel(ctx, a.ID, f.patientID); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("twice", func(t *testing.T) {
		a := book()
		if _, err := f.svc.Cancel(ctx, a.ID, f.patientID); err != nil {
			t.Fatalf("first cancel: %v", err)
		}
		if _, err := f.svc.Cancel(ctx, a.ID, f.patientID); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := f.svc.Cancel(ctx, uuid.New(), f.patientID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMarkNoShows(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()

	early, _ := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "09:00"), f.patientID, patient("a"))
	late, _ := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "11:30"), f.patientID, patient("b"))
	answered, _ := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "08:00"), f.patientID, patient("c"))
	if _, err := f.svc.RecordResponse(ctx, answered.ID, "seen", nil); err != nil {
		t.Fatalf("respond: %v", err)
	}

	// grace is one hour, so only slots before 11:00 are swept
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	n, err := f.svc.MarkNoShows(ctx, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 no-show, got %d", n)
	}

	got, _ := f.appointments.FindByID(ctx, early.ID)
	if got.Status != entity.AppointmentStatusNoShow {
		t.Errorf("expected no_show, got %s", got.Status)
	}
	got, _ = f.appointments.FindByID(ctx, late.ID)
	if got.Status != entity.AppointmentStatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	got, _ = f.appointments.FindByID(ctx, answered.ID)
	if got.Status != entity.AppointmentStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}

	keys := f.events.keys()
	if keys[len(keys)-1] != EventAppointmentNoShow {
		t.Errorf("expected last event %s, got %s", EventAppointmentNoShow, keys[len(keys)-1])
	}

	// no_show keeps its slot
	if _, err := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "09:00"), uuid.New(), patient("d")); !errors.Is(err, ErrConflict) {
		t.Errorf("expected no_show slot to stay taken, got %v", err)
	}
}

func TestPublishFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.events.err = errors.New("broker down")

	if _, err := f.svc.BookNextAvailable(context.Background(), f.doctor.ID, f.date, f.patientID, patient("p")); err != nil {
		t.Fatalf("expected booking to succeed, got %v", err)
	}
	if got := len(f.appointments.all()); got != 1 {
		t.Errorf("expected 1 row, got %d", got)
	}
}

func TestBookingPublishesCreatedEvent(t *testing.T) {
	f := newFixture(defaultPolicy())

	a, err := f.svc.BookNextAvailable(context.Background(), f.doctor.ID, f.date, f.patientID, patient("p"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.events.events))
	}
	ev := f.events.events[0]
	if ev.key != EventAppointmentCreated {
		t.Errorf("expected key %s, got %s", EventAppointmentCreated, ev.key)
	}
	if ev.event.AppointmentID != a.ID.String() || ev.event.Date != "2026-03-02" || ev.event.Time != "09:00" {
		t.Errorf("unexpected event payload %+v", ev.event)
	}
}

func TestListings(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, _ := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "13:00"), f.patientID, patient("a"))
	second, _ := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "09:00"), f.patientID, patient("b"))
	third, _ := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "10:00"), uuid.New(), patient("c"))
	if _, err := f.svc.Cancel(ctx, third.ID, f.doctor.UserID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	pending, total, err := f.svc.ListPendingForDoctor(ctx, f.doctor.ID, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d (total %d)", len(pending), total)
	}
	if pending[0].ID != second.ID || pending[1].ID != first.ID {
		t.Errorf("expected pending ordered by slot time")
	}

	if _, _, err := f.svc.ListPendingForDoctor(ctx, uuid.New(), 10, 0); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}

	mine, total, err := f.svc.ListForPatient(ctx, f.patientID, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(mine) != 1 {
		t.Fatalf("expected page of 1 out of 2, got %d of %d", len(mine), total)
	}
	if mine[0].ID != second.ID {
		t.Errorf("expected newest booking first")
	}
}

func TestGetAppointment(t *testing.T) {
	f := newFixture(defaultPolicy())
	ctx := context.Background()

	a, _ := f.svc.BookNextAvailable(ctx, f.doctor.ID, f.date, f.patientID, patient("p"))
	got, err := f.svc.GetAppointment(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Reference != a.Reference {
		t.Errorf("expected reference %s, got %s", a.Reference, got.Reference)
	}

	if _, err := f.svc.GetAppointment(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDaySlots(t *testing.T) {
	f := newFixture(SlotPolicy{DayStart: 9 * 60, Length: 60, MaxPerDay: 3})
	ctx := context.Background()

	if _, err := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "10:00"), f.patientID, patient("a")); err != nil {
		t.Fatalf("booking: %v", err)
	}
	if _, err := f.svc.BookExplicit(ctx, f.doctor.ID, f.date, mustTime(t, "10:15"), f.patientID, patient("b")); err != nil {
		t.Fatalf("booking: %v", err)
	}

	slots, err := f.svc.DaySlots(ctx, f.doctor.ID, f.date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []DaySlot{
		{Time: 9 * 60, Available: true},
		{Time: 10 * 60, Available: false},
		{Time: 10*60 + 15, Available: false},
		{Time: 11 * 60, Available: true},
	}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %v", len(want), slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Errorf("slot %d: expected %+v, got %+v", i, want[i], slots[i])
		}
	}
}
