package scheduling

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/clock"
	"github.com/clinicbook/clinic/internal/platform/validate"
)

// Booking outcome labels reported to the Recorder.
const (
	outcomeCreated  = "created"
	outcomeConflict = "conflict"
	outcomeRejected = "rejected"
)

type BookingService struct {
	engine       *AvailabilityEngine
	appointments AppointmentRepository
	directory    Directory
	clock        clock.Clock
	recorder     Recorder
}

func NewBookingService(engine *AvailabilityEngine, appts AppointmentRepository, dir Directory, clk clock.Clock, rec Recorder) *BookingService {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &BookingService{engine: engine, appointments: appts, directory: dir, clock: clk, recorder: rec}
}

// Book creates a pending appointment for the patient behind patientUserID.
// The amount is the doctor's fee at this moment.
func (s *BookingService) Book(ctx context.Context, patientUserID uuid.UUID, req BookRequest) (*Appointment, error) {
	a, err := s.book(ctx, patientUserID, req)
	switch {
	case err == nil:
		s.recorder.BookingOutcome(outcomeCreated)
	case apperr.Is(err, apperr.KindConflict):
		s.recorder.BookingOutcome(outcomeConflict)
	default:
		s.recorder.BookingOutcome(outcomeRejected)
	}
	return a, err
}

func (s *BookingService) book(ctx context.Context, patientUserID uuid.UUID, req BookRequest) (*Appointment, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	patientID, err := s.directory.PatientIDForUser(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	fee, err := s.directory.DoctorFee(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if err := s.checkSlot(ctx, req.DoctorID, req.AppointmentDate, req.TimeSlot, uuid.Nil); err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:       patientID,
		DoctorID:        req.DoctorID,
		AppointmentDate: req.AppointmentDate,
		TimeSlot:        req.TimeSlot,
		Status:          StatusPending,
		Amount:          fee,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// checkSlot validates that slot is offered on date, lies in the future and
// is not held by an active appointment other than exclude. The held check is
// advisory; the store's unique index makes the final decision.
func (s *BookingService) checkSlot(ctx context.Context, doctorID uuid.UUID, date, slot string, exclude uuid.UUID) error {
	day, err := ParseDate(date, s.engine.loc)
	if err != nil {
		return err
	}
	start, err := AppointmentTime(date, slot, s.engine.loc)
	if err != nil {
		return err
	}

	universe, err := s.engine.Universe(ctx, doctorID, day)
	if err != nil {
		return err
	}
	if !slices.Contains(universe, slot) {
		return apperr.InvalidArgument("SLOT_NOT_OFFERED", "the doctor does not offer this time slot on that date").
			WithDetail("timeSlot", slot)
	}
	if !start.After(s.clock.Now()) {
		return apperr.InvalidArgument("APPOINTMENT_IN_PAST", "appointments must be booked for a future time")
	}

	held, err := s.appointments.SlotHeld(ctx, doctorID, date, slot, exclude)
	if err != nil {
		return err
	}
	if held {
		return errSlotBooked()
	}
	return nil
}
