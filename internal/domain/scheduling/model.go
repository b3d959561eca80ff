package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// activeStatuses hold a slot. At most one appointment per doctor, date and
// slot may be in one of them.
var activeStatuses = []Status{StatusPending, StatusConfirmed}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Slot struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsAvailable bool   `json:"isAvailable"`
}

// ScheduleTemplate is a doctor's working pattern for one weekday
// (0 = Sunday).
type ScheduleTemplate struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctorId"`
	DayOfWeek   int       `json:"dayOfWeek"`
	Slots       []Slot    `json:"slots"`
	IsAvailable bool      `json:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Appointment is the stored booking. AppointmentDate is a calendar date
// formatted YYYY-MM-DD and TimeSlot the slot start formatted HH:MM.
type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patientId"`
	DoctorID        uuid.UUID  `json:"doctorId"`
	AppointmentDate string     `json:"appointmentDate"`
	TimeSlot        string     `json:"timeSlot"`
	Status          Status     `json:"status"`
	Amount          float64    `json:"amount"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// AppointmentView is an appointment with its participants resolved.
type AppointmentView struct {
	Appointment
	DoctorUserID    uuid.UUID `json:"doctorUserId"`
	DoctorName      string    `json:"doctorName"`
	DoctorSpecialty string    `json:"doctorSpecialty"`
	DoctorLocation  string    `json:"doctorLocation"`
	PatientUserID   uuid.UUID `json:"patientUserId"`
	PatientName     string    `json:"patientName"`
	PatientEmail    string    `json:"patientEmail"`
	PatientPhone    string    `json:"patientPhone"`
}

// Availability is the answer to a slot lookup. Both lists are sorted and
// together make up the slot universe for the day.
type Availability struct {
	DoctorID       uuid.UUID `json:"doctorId"`
	Date           string    `json:"date"`
	AvailableSlots []string  `json:"availableSlots"`
	BookedSlots    []string  `json:"bookedSlots"`
}

type BookRequest struct {
	DoctorID        uuid.UUID `json:"doctorId" validate:"required"`
	AppointmentDate string    `json:"appointmentDate" validate:"required"`
	TimeSlot        string    `json:"timeSlot" validate:"required"`
}

// RescheduleRequest moves an appointment. A nil DoctorID keeps the current
// doctor.
type RescheduleRequest struct {
	DoctorID        *uuid.UUID `json:"doctorId,omitempty"`
	AppointmentDate string     `json:"appointmentDate" validate:"required"`
	TimeSlot        string     `json:"timeSlot" validate:"required"`
}

// SlotRequest is a slot as sent by the doctor. A missing isAvailable means
// the slot is open.
type SlotRequest struct {
	StartTime   string `json:"startTime" validate:"required,clock"`
	EndTime     string `json:"endTime" validate:"required,clock"`
	IsAvailable *bool  `json:"isAvailable"`
}

type ScheduleRequest struct {
	DayOfWeek   int           `json:"dayOfWeek" validate:"min=0,max=6"`
	Slots       []SlotRequest `json:"slots" validate:"max=48,dive"`
	IsAvailable *bool         `json:"isAvailable"`
}

type AppointmentFilter struct {
	Status    Status
	Date      string
	StartDate string
	EndDate   string
}

type DoctorStatistics struct {
	TotalAppointments     int     `json:"totalAppointments"`
	PendingAppointments   int     `json:"pendingAppointments"`
	ConfirmedAppointments int     `json:"confirmedAppointments"`
	CompletedAppointments int     `json:"completedAppointments"`
	CancelledAppointments int     `json:"cancelledAppointments"`
	TodayAppointments     int     `json:"todayAppointments"`
	TotalRevenue          float64 `json:"totalRevenue"`
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
