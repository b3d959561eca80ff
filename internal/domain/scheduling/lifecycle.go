package scheduling

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/clock"
	"github.com/clinicbook/clinic/internal/platform/validate"
)

// DefaultCutoff is how long before the appointment patients may still
// cancel or reschedule.
const DefaultCutoff = 24 * time.Hour

// Lifecycle owns every status change of an appointment.
//
//	pending   -> confirmed  Confirm (payment completed)
//	pending   -> completed  Complete (medical record attached)
//	confirmed -> completed  Complete
//	pending   -> cancelled  Cancel (patient, before cutoff), CancelForRefund
//	confirmed -> cancelled  Cancel, CancelForRefund
//	pending   -> pending    Reschedule (patient, before cutoff)
//	confirmed -> pending    Reschedule
//
// completed and cancelled are terminal.
type Lifecycle struct {
	appointments AppointmentRepository
	directory    Directory
	booking      *BookingService
	clock        clock.Clock
	cutoff       time.Duration
	recorder     Recorder
}

func NewLifecycle(appts AppointmentRepository, dir Directory, booking *BookingService, clk clock.Clock, cutoff time.Duration, rec Recorder) *Lifecycle {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Lifecycle{appointments: appts, directory: dir, booking: booking, clock: clk, cutoff: cutoff, recorder: rec}
}

func invalidTransition(from, to Status) *apperr.Error {
	return apperr.Conflict("INVALID_TRANSITION",
		fmt.Sprintf("cannot move appointment from %s to %s", from, to)).
		WithDetail("from", string(from)).
		WithDetail("to", string(to))
}

func allowed(s Status, from []Status) bool {
	for _, f := range from {
		if s == f {
			return true
		}
	}
	return false
}

// transition applies a compare-and-set status change. When the row changed
// under us the fresh status decides the error.
func (l *Lifecycle) transition(ctx context.Context, a *Appointment, from []Status, to Status) (*Appointment, error) {
	if !allowed(a.Status, from) {
		return nil, invalidTransition(a.Status, to)
	}
	updated, ok, err := l.appointments.TransitionStatus(ctx, a.ID, from, to, l.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := l.appointments.GetByID(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		return nil, invalidTransition(current.Status, to)
	}
	l.recorder.Transition(string(a.Status), string(to))
	return updated, nil
}

// Confirm marks a pending appointment as paid.
func (l *Lifecycle) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := l.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.transition(ctx, a, []Status{StatusPending}, StatusConfirmed)
}

// Complete closes an active appointment once its medical record exists.
func (l *Lifecycle) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := l.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.transition(ctx, a, activeStatuses, StatusCompleted)
}

// CancelForRefund cancels an active appointment without the cutoff check.
func (l *Lifecycle) CancelForRefund(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := l.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.transition(ctx, a, activeStatuses, StatusCancelled)
}

// Cancel is the patient cancelling their own appointment.
func (l *Lifecycle) Cancel(ctx context.Context, patientUserID, id uuid.UUID) (*Appointment, error) {
	a, err := l.ownAppointment(ctx, patientUserID, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.Active() {
		return nil, invalidTransition(a.Status, StatusCancelled)
	}
	if err := l.checkCutoff(a, "CANCELLATION_TOO_LATE", "appointments can only be cancelled more than %d hours in advance"); err != nil {
		return nil, err
	}
	return l.transition(ctx, a, activeStatuses, StatusCancelled)
}

// Reschedule moves the patient's appointment to another slot, optionally
// with another doctor. The fee is re-read and the status returns to pending.
func (l *Lifecycle) Reschedule(ctx context.Context, patientUserID, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	a, err := l.ownAppointment(ctx, patientUserID, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.Active() {
		return nil, invalidTransition(a.Status, StatusPending)
	}
	if err := l.checkCutoff(a, "UPDATE_TOO_LATE", "appointments can only be changed more than %d hours in advance"); err != nil {
		return nil, err
	}

	doctorID := a.DoctorID
	if req.DoctorID != nil && *req.DoctorID != uuid.Nil {
		doctorID = *req.DoctorID
	}
	fee, err := l.directory.DoctorFee(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if err := l.booking.checkSlot(ctx, doctorID, req.AppointmentDate, req.TimeSlot, a.ID); err != nil {
		return nil, err
	}

	target := Appointment{DoctorID: doctorID, AppointmentDate: req.AppointmentDate, TimeSlot: req.TimeSlot, Amount: fee}
	moved, ok, err := l.appointments.Move(ctx, a.ID, activeStatuses, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := l.appointments.GetByID(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		return nil, invalidTransition(current.Status, StatusPending)
	}
	l.recorder.Transition(string(a.Status), string(StatusPending))
	return moved, nil
}

// ownAppointment loads id and hides appointments of other patients.
func (l *Lifecycle) ownAppointment(ctx context.Context, patientUserID, id uuid.UUID) (*Appointment, error) {
	patientID, err := l.directory.PatientIDForUser(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	a, err := l.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, apperr.NotFound("appointment")
	}
	return a, nil
}

// checkCutoff fails unless the appointment starts more than the cutoff from
// now. hoursRemaining is the rounded time left, never negative.
func (l *Lifecycle) checkCutoff(a *Appointment, code, format string) error {
	start, err := AppointmentTime(a.AppointmentDate, a.TimeSlot, l.booking.engine.loc)
	if err != nil {
		return err
	}
	hoursDiff := start.Sub(l.clock.Now()).Hours()
	if hoursDiff > l.cutoff.Hours() {
		return nil
	}
	return apperr.Forbidden(code, fmt.Sprintf(format, int(l.cutoff.Hours()))).
		WithDetail("hoursRemaining", HoursRemaining(hoursDiff))
}

// HoursRemaining rounds a signed hour difference to a non-negative integer.
func HoursRemaining(hoursDiff float64) int {
	return int(math.Max(0, math.Round(hoursDiff)))
}
