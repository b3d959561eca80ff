package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/platform/apperr"
)

// Mode selects how the daily slot universe is built.
type Mode string

const (
	// ModeTemplate restricts the grid to the doctor's weekly template when
	// one exists for the weekday.
	ModeTemplate Mode = "template"
	// ModeGrid always offers the full 09:00-17:00 grid.
	ModeGrid Mode = "grid"
)

// AvailabilityEngine computes which slots a doctor can still be booked for.
type AvailabilityEngine struct {
	directory    Directory
	schedules    ScheduleRepository
	appointments AppointmentRepository
	mode         Mode
	loc          *time.Location
}

func NewAvailabilityEngine(dir Directory, sched ScheduleRepository, appts AppointmentRepository, mode Mode, loc *time.Location) *AvailabilityEngine {
	if mode != ModeGrid {
		mode = ModeTemplate
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityEngine{directory: dir, schedules: sched, appointments: appts, mode: mode, loc: loc}
}

// Universe returns the slots the doctor offers on day. The caller has
// already verified the doctor exists.
func (e *AvailabilityEngine) Universe(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]string, error) {
	if e.mode == ModeGrid {
		return GridUniverse(), nil
	}

	tmpl, err := e.schedules.GetForDay(ctx, doctorID, int(day.Weekday()))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return GridUniverse(), nil
		}
		return nil, err
	}
	if !tmpl.IsAvailable {
		return []string{}, nil
	}

	// A grid slot survives when it fits inside an available template slot.
	out := []string{}
	for _, g := range gridUniverse {
		start, _ := parseClock(g)
		end := start + slotDuration
		for _, s := range tmpl.Slots {
			if !s.IsAvailable {
				continue
			}
			ts, err1 := parseClock(s.StartTime)
			te, err2 := parseClock(s.EndTime)
			if err1 != nil || err2 != nil {
				continue
			}
			if start >= ts && end <= te {
				out = append(out, g)
				break
			}
		}
	}
	return out, nil
}

// GetAvailableSlots splits the day's universe into free and held slots.
func (e *AvailabilityEngine) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) (*Availability, error) {
	// DoctorFee doubles as the existence check.
	if _, err := e.directory.DoctorFee(ctx, doctorID); err != nil {
		return nil, err
	}
	day, err := ParseDate(date, e.loc)
	if err != nil {
		return nil, err
	}

	universe, err := e.Universe(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	held, err := e.appointments.ActiveSlots(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	heldSet := make(map[string]bool, len(held))
	for _, s := range held {
		heldSet[s] = true
	}

	av := &Availability{DoctorID: doctorID, Date: date, AvailableSlots: []string{}, BookedSlots: []string{}}
	for _, s := range universe {
		if heldSet[s] {
			av.BookedSlots = append(av.BookedSlots, s)
		} else {
			av.AvailableSlots = append(av.AvailableSlots, s)
		}
	}
	return av, nil
}
