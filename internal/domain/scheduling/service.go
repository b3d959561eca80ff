package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/clock"
	"github.com/clinicbook/clinic/internal/platform/validate"
)

type Config struct {
	Mode     Mode
	Location *time.Location
	Cutoff   time.Duration
}

// Service is the entry point for the scheduling handlers. It wires the
// availability engine, booking and lifecycle over the same repositories.
type Service struct {
	schedules    ScheduleRepository
	appointments AppointmentRepository
	directory    Directory
	clock        clock.Clock

	engine    *AvailabilityEngine
	booking   *BookingService
	lifecycle *Lifecycle
}

func NewService(sched ScheduleRepository, appts AppointmentRepository, dir Directory, clk clock.Clock, rec Recorder, cfg Config) *Service {
	if cfg.Cutoff <= 0 {
		cfg.Cutoff = DefaultCutoff
	}
	engine := NewAvailabilityEngine(dir, sched, appts, cfg.Mode, cfg.Location)
	booking := NewBookingService(engine, appts, dir, clk, rec)
	return &Service{
		schedules:    sched,
		appointments: appts,
		directory:    dir,
		clock:        clk,
		engine:       engine,
		booking:      booking,
		lifecycle:    NewLifecycle(appts, dir, booking, clk, cfg.Cutoff, rec),
	}
}

func (s *Service) Lifecycle() *Lifecycle { return s.lifecycle }

func (s *Service) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) (*Availability, error) {
	return s.engine.GetAvailableSlots(ctx, doctorID, date)
}

func (s *Service) Book(ctx context.Context, patientUserID uuid.UUID, req BookRequest) (*Appointment, error) {
	return s.booking.Book(ctx, patientUserID, req)
}

func (s *Service) Cancel(ctx context.Context, patientUserID, id uuid.UUID) (*Appointment, error) {
	return s.lifecycle.Cancel(ctx, patientUserID, id)
}

func (s *Service) Reschedule(ctx context.Context, patientUserID, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	return s.lifecycle.Reschedule(ctx, patientUserID, id, req)
}

// -- Schedules --

func (s *Service) ManageSchedule(ctx context.Context, doctorUserID uuid.UUID, req ScheduleRequest) (*ScheduleTemplate, error) {
	doctorID, err := s.directory.DoctorIDForUser(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	slots, err := normalizeSlots(req.Slots)
	if err != nil {
		return nil, err
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	t := &ScheduleTemplate{DoctorID: doctorID, DayOfWeek: req.DayOfWeek, Slots: slots, IsAvailable: available}
	if err := s.schedules.Upsert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) ListSchedules(ctx context.Context, doctorUserID uuid.UUID) ([]*ScheduleTemplate, error) {
	doctorID, err := s.directory.DoctorIDForUser(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}
	return s.schedules.ListByDoctor(ctx, doctorID)
}

// -- Appointments --

func (s *Service) validateFilter(f AppointmentFilter) error {
	if f.Status != "" && !f.Status.Valid() {
		return apperr.Validation("invalid status %q", f.Status)
	}
	for _, d := range []string{f.Date, f.StartDate, f.EndDate} {
		if d == "" {
			continue
		}
		if _, err := ParseDate(d, s.engine.loc); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) DoctorAppointments(ctx context.Context, doctorUserID uuid.UUID, f AppointmentFilter, limit, offset int) ([]*AppointmentView, int, error) {
	if err := s.validateFilter(f); err != nil {
		return nil, 0, err
	}
	doctorID, err := s.directory.DoctorIDForUser(ctx, doctorUserID)
	if err != nil {
		return nil, 0, err
	}
	return s.appointments.ListByDoctor(ctx, doctorID, f, limit, offset)
}

func (s *Service) PatientAppointments(ctx context.Context, patientUserID uuid.UUID, f AppointmentFilter, limit, offset int) ([]*AppointmentView, int, error) {
	if err := s.validateFilter(f); err != nil {
		return nil, 0, err
	}
	patientID, err := s.directory.PatientIDForUser(ctx, patientUserID)
	if err != nil {
		return nil, 0, err
	}
	return s.appointments.ListByPatient(ctx, patientID, f, limit, offset)
}

// GetAppointment is visible to its patient, its doctor and admins.
func (s *Service) GetAppointment(ctx context.Context, p auth.Principal, id uuid.UUID) (*AppointmentView, error) {
	v, err := s.appointments.GetView(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Role == auth.RoleAdmin || v.PatientUserID == p.UserID || v.DoctorUserID == p.UserID {
		return v, nil
	}
	return nil, apperr.NotFound("appointment")
}

func (s *Service) DoctorStatistics(ctx context.Context, doctorUserID uuid.UUID) (*DoctorStatistics, error) {
	doctorID, err := s.directory.DoctorIDForUser(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}
	today := s.clock.Now().In(s.engine.loc).Format(dateLayout)
	return s.appointments.DoctorStatistics(ctx, doctorID, today)
}
