package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/clinicbook/clinic/internal/platform/apperr"
)

const (
	dateLayout = "2006-01-02"

	gridStart    = 9 * 60
	gridEnd      = 17 * 60
	slotDuration = 30
)

// gridUniverse is the half-hour grid 09:00..16:30.
var gridUniverse = func() []string {
	var out []string
	for m := gridStart; m < gridEnd; m += slotDuration {
		out = append(out, formatClock(m))
	}
	return out
}()

// GridUniverse returns a copy of the default daily slot grid.
func GridUniverse() []string {
	return append([]string(nil), gridUniverse...)
}

// parseClock turns "HH:MM" into minutes since midnight. Only the zero-padded
// form is accepted.
func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("time %q is not HH:MM", s)
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("time %q is out of range", s)
	}
	return h*60 + m, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses a YYYY-MM-DD calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, apperr.InvalidArgument("INVALID_DATE", fmt.Sprintf("date %q must be YYYY-MM-DD", s))
	}
	return d, nil
}

// AppointmentTime combines a calendar date and slot start into an instant in
// the clinic's zone.
func AppointmentTime(date, slot string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	m, err := parseClock(slot)
	if err != nil {
		return time.Time{}, apperr.InvalidArgument("INVALID_TIME_SLOT", err.Error())
	}
	return time.Date(d.Year(), d.Month(), d.Day(), m/60, m%60, 0, 0, loc), nil
}

// normalizeSlots validates a template's slots and returns them sorted by
// start time. Overlapping or inverted slots are rejected.
func normalizeSlots(slots []SlotRequest) ([]Slot, error) {
	type span struct {
		slot       Slot
		start, end int
	}
	spans := make([]span, 0, len(slots))
	for _, s := range slots {
		start, err := parseClock(s.StartTime)
		if err != nil {
			return nil, apperr.InvalidArgument("INVALID_SLOT", err.Error())
		}
		end, err := parseClock(s.EndTime)
		if err != nil {
			return nil, apperr.InvalidArgument("INVALID_SLOT", err.Error())
		}
		if end <= start {
			return nil, apperr.InvalidArgument("INVALID_SLOT",
				fmt.Sprintf("slot %s-%s ends before it starts", s.StartTime, s.EndTime))
		}
		open := s.IsAvailable == nil || *s.IsAvailable
		spans = append(spans, span{slot: Slot{StartTime: s.StartTime, EndTime: s.EndTime, IsAvailable: open}, start: start, end: end})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	out := make([]Slot, len(spans))
	for i, sp := range spans {
		if i > 0 && sp.start < spans[i-1].end {
			return nil, apperr.InvalidArgument("OVERLAPPING_SLOTS",
				fmt.Sprintf("slot %s-%s overlaps %s-%s",
					sp.slot.StartTime, sp.slot.EndTime, spans[i-1].slot.StartTime, spans[i-1].slot.EndTime))
		}
		out[i] = sp.slot
	}
	return out, nil
}
