package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ScheduleRepository interface {
	// Upsert replaces the doctor's template for t.DayOfWeek.
	Upsert(ctx context.Context, t *ScheduleTemplate) error
	GetForDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*ScheduleTemplate, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleTemplate, error)
}

type AppointmentRepository interface {
	// Create inserts a pending appointment. A competing active appointment
	// for the same doctor, date and slot yields Conflict SLOT_ALREADY_BOOKED.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetView(ctx context.Context, id uuid.UUID) (*AppointmentView, error)
	// ActiveSlots lists the slots held on date, ascending.
	ActiveSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)
	// SlotHeld reports whether an active appointment other than exclude holds
	// the slot.
	SlotHeld(ctx context.Context, doctorID uuid.UUID, date, slot string, exclude uuid.UUID) (bool, error)
	// TransitionStatus moves the appointment to `to` only if its current
	// status is one of from. ok is false when no row matched.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, at time.Time) (a *Appointment, ok bool, err error)
	// Move rebooks the appointment onto a new doctor, date and slot and resets
	// it to pending, under the same compare-and-set rule.
	Move(ctx context.Context, id uuid.UUID, from []Status, target Appointment) (a *Appointment, ok bool, err error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, f AppointmentFilter, limit, offset int) ([]*AppointmentView, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, f AppointmentFilter, limit, offset int) ([]*AppointmentView, int, error)
	DoctorStatistics(ctx context.Context, doctorID uuid.UUID, today string) (*DoctorStatistics, error)
}

// Directory resolves identities owned by the accounts side. Missing
// profiles are reported as NotFound.
type Directory interface {
	DoctorFee(ctx context.Context, doctorID uuid.UUID) (float64, error)
	DoctorIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// Recorder observes booking outcomes and status transitions.
type Recorder interface {
	BookingOutcome(outcome string)
	Transition(from, to string)
}

type nopRecorder struct{}

func (nopRecorder) BookingOutcome(string)     {}
func (nopRecorder) Transition(string, string) {}
