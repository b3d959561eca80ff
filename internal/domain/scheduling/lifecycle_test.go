package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/platform/apperr"
)

func TestCancel_CutoffExamples(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wantErr   bool
		remaining int
	}{
		{"25 hours before", time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC), false, 0},
		{"22 hours before", time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC), true, 22},
		{"exactly 24 hours before", time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC), true, 24},
		{"one minute past cutoff", time.Date(2025, 3, 9, 10, 1, 0, 0, time.UTC), true, 24},
		{"after the start", time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, ModeTemplate)
			a := f.book(t, "2025-03-10", "10:00")
			f.clock.Set(tt.now)

			got, err := f.svc.Cancel(context.Background(), f.patientUserID, a.ID)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Status != StatusCancelled || got.CancelledAt == nil {
					t.Errorf("appointment not cancelled: %+v", got)
				}
				return
			}
			e := expectCode(t, err, apperr.KindForbidden, "CANCELLATION_TOO_LATE")
			if e.Details["hoursRemaining"] != tt.remaining {
				t.Errorf("hoursRemaining = %v, want %d", e.Details["hoursRemaining"], tt.remaining)
			}
			stored, _ := f.appts.GetByID(context.Background(), a.ID)
			if stored.Status != StatusPending {
				t.Errorf("status changed to %s", stored.Status)
			}
		})
	}
}

func TestCancel_ClinicTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skip("tzdata not available")
	}
	f := newFixture(t, ModeTemplate)
	f.svc = NewService(f.schedules, f.appts, f.dir, f.clock, f.rec, Config{Location: loc})
	a := f.book(t, "2025-03-10", "10:00")

	// 10:00 IST is 04:30 UTC; 24.5h before is 04:00 UTC the day before.
	f.clock.Set(time.Date(2025, 3, 9, 4, 0, 0, 0, time.UTC))
	if _, err := f.svc.Cancel(context.Background(), f.patientUserID, a.ID); err != nil {
		t.Fatalf("cancel 24.5h ahead should succeed: %v", err)
	}
}

func TestReschedule_Cutoff(t *testing.T) {
	f := newFixture(t, ModeTemplate)
	a := f.book(t, "2025-03-10", "10:00")
	f.clock.Set(time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC))

	_, err := f.svc.Reschedule(context.Background(), f.patientUserID, a.ID, RescheduleRequest{AppointmentDate: "2025-03-12", TimeSlot: "10:00"})
	e := expectCode(t, err, apperr.KindForbidden, "UPDATE_TOO_LATE")
	if e.Details["hoursRemaining"] != 22 {
		t.Errorf("hoursRemaining = %v", e.Details["hoursRemaining"])
	}
}

func TestReschedule_MovesAndResets(t *testing.T) {
	f := newFixture(t, ModeTemplate)
	ctx := context.Background()
	a := f.book(t, "2025-03-10", "10:00")
	if _, err := f.svc.Lifecycle().Confirm(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	_, otherDoctor := f.dir.addDoctor(320)
	moved, err := f.svc.Reschedule(ctx, f.patientUserID, a.ID, RescheduleRequest{DoctorID: &otherDoctor, AppointmentDate: "2025-03-12", TimeSlot: "15:30"})
	if err != nil {
		t.Fatal(err)
	}
	if moved.Status != StatusPending || moved.DoctorID != otherDoctor || moved.Amount != 320 {
		t.Errorf("unexpected result %+v", moved)
	}
	if moved.AppointmentDate != "2025-03-12" || moved.TimeSlot != "15:30" {
		t.Errorf("not moved: %+v", moved)
	}

	av, err := f.svc.GetAvailableSlots(ctx, f.doctorID, "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(av.BookedSlots) != 0 {
		t.Errorf("old slot still booked: %v", av.BookedSlots)
	}
	if f.rec.transitions["confirmed->pending"] != 1 {
		t.Errorf("transitions = %v", f.rec.transitions)
	}
}

func TestReschedule_SameSlotAndConflict(t *testing.T) {
	f := newFixture(t, ModeTemplate)
	ctx := context.Background()
	a := f.book(t, "2025-03-10", "10:00")
	f.book(t, "2025-03-10", "11:00")

	// Moving onto its own slot is not a conflict.
	if _, err := f.svc.Reschedule(ctx, f.patientUserID, a.ID, RescheduleRequest{AppointmentDate: "2025-03-10", TimeSlot: "10:00"}); err != nil {
		t.Fatalf("same slot: %v", err)
	}
	_, err := f.svc.Reschedule(ctx, f.patientUserID, a.ID, RescheduleRequest{AppointmentDate: "2025-03-10", TimeSlot: "11:00"})
	expectCode(t, err, apperr.KindConflict, "SLOT_ALREADY_BOOKED")

	_, err = f.svc.Reschedule(ctx, f.patientUserID, a.ID, RescheduleRequest{AppointmentDate: "2025-03-10", TimeSlot: "18:00"})
	expectCode(t, err, apperr.KindInvalidArgument, "SLOT_NOT_OFFERED")
}

func TestLifecycle_OtherPatientSeesNotFound(t *testing.T) {
	f := newFixture(t, ModeTemplate)
	ctx := context.Background()
	a := f.book(t, "2025-03-10", "10:00")
	intruder, _ := f.dir.addPatient()

	_, err := f.svc.Cancel(ctx, intruder, a.ID)
	expectCode(t, err, apperr.KindNotFound, "")
	_, err = f.svc.Reschedule(ctx, intruder, a.ID, RescheduleRequest{AppointmentDate: "2025-03-11", TimeSlot: "10:00"})
	expectCode(t, err, apperr.KindNotFound, "")
	_, err = f.svc.Cancel(ctx, f.patientUserID, uuid.New())
	expectCode(t, err, apperr.KindNotFound, "")
}

func TestLifecycle_TerminalStatesRejectEverything(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusCancelled} {
		t.Run(string(terminal), func(t *testing.T) {
			f := newFixture(t, ModeTemplate)
			ctx := context.Background()
			lc := f.svc.Lifecycle()
			a := f.appts.put(&Appointment{PatientID: f.patientID, DoctorID: f.doctorID, AppointmentDate: "2025-03-20", TimeSlot: "10:00", Status: terminal, Amount: 200})

			ops := map[string]func() error{
				"confirm":    func() error { _, err := lc.Confirm(ctx, a.ID); return err },
				"complete":   func() error { _, err := lc.Complete(ctx, a.ID); return err },
				"refund":     func() error { _, err := lc.CancelForRefund(ctx, a.ID); return err },
				"cancel":     func() error { _, err := lc.Cancel(ctx, f.patientUserID, a.ID); return err },
				"reschedule": func() error {
					_, err := lc.Reschedule(ctx, f.patientUserID, a.ID, RescheduleRequest{AppointmentDate: "2025-03-21", TimeSlot: "10:00"})
					return err
				},
			}
			for name, op := range ops {
				expectCode(t, op(), apperr.KindConflict, "INVALID_TRANSITION")
				stored, _ := f.appts.GetByID(ctx, a.ID)
				if stored.Status != terminal {
					t.Fatalf("%s changed status to %s", name, stored.Status)
				}
			}
		})
	}
}

func TestLifecycle_Transitions(t *testing.T) {
	f := newFixture(t, ModeTemplate)
	ctx := context.Background()
	lc := f.svc.Lifecycle()

	a := f.book(t, "2025-03-10", "10:00")
	got, err := lc.Confirm(ctx, a.ID)
	if err != nil || got.Status != StatusConfirmed {
		t.Fatalf("confirm: %+v, %v", got, err)
	}
	_, err = lc.Confirm(ctx, a.ID)
	expectCode(t, err, apperr.KindConflict, "INVALID_TRANSITION")

	got, err = lc.Complete(ctx, a.ID)
	if err != nil || got.Status != StatusCompleted {
		t.Fatalf("complete: %+v, %v", got, err)
	}

	b := f.book(t, "2025-03-10", "11:00")
	if got, err := lc.Complete(ctx, b.ID); err != nil || got.Status != StatusCompleted {
		t.Fatalf("complete from pending: %+v, %v", got, err)
	}

	c := f.book(t, "2025-03-10", "12:00")
	// Refund cancellation ignores the cutoff.
	f.clock.Set(time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC))
	if got, err := lc.CancelForRefund(ctx, c.ID); err != nil || got.Status != StatusCancelled {
		t.Fatalf("refund cancel: %+v, %v", got, err)
	}

	_, err = lc.Confirm(ctx, uuid.New())
	expectCode(t, err, apperr.KindNotFound, "")
}

func TestLifecycle_CompareAndSet(t *testing.T) {
	f := newFixture(t, ModeTemplate)
	ctx := context.Background()
	a := f.book(t, "2025-03-10", "10:00")

	// Another writer completes the appointment between our read and write.
	f.appts.beforeWrite = func(stored *Appointment) { stored.Status = StatusCompleted }

	_, err := f.svc.Cancel(ctx, f.patientUserID, a.ID)
	e := expectCode(t, err, apperr.KindConflict, "INVALID_TRANSITION")
	if e.Details["from"] != string(StatusCompleted) {
		t.Errorf("details = %v", e.Details)
	}
	stored, _ := f.appts.GetByID(ctx, a.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("concurrent completion overwritten: %s", stored.Status)
	}
}

func TestHoursRemaining(t *testing.T) {
	cases := map[float64]int{22: 22, 22.4: 22, 22.5: 23, 0.2: 0, -3: 0, -0.6: 0}
	for in, want := range cases {
		if got := HoursRemaining(in); got != want {
			t.Errorf("HoursRemaining(%v) = %d, want %d", in, got, want)
		}
	}
}
