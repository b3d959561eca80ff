package billing

import (
	"time"

	"github.com/google/uuid"
)

// Method is how the patient settles the fee. All methods are handled at
// the clinic; no gateway is involved.
type Method string

const (
	MethodCash         Method = "cash"
	MethodCardAtClinic Method = "card_at_clinic"
	MethodBankTransfer Method = "bank_transfer"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Payment records the fee for one appointment. An appointment has at most
// one payment that is not failed.
type Payment struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointmentId"`
	Amount        float64    `json:"amount"`
	Method        Method     `json:"paymentMethod"`
	Status        Status     `json:"status"`
	PaymentDate   *time.Time `json:"paymentDate,omitempty"`
	RefundReason  string     `json:"refundReason,omitempty"`
	RefundDate    *time.Time `json:"refundDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// PaymentView adds the appointment context shown in admin listings.
type PaymentView struct {
	Payment
	AppointmentDate string `json:"appointmentDate"`
	TimeSlot        string `json:"timeSlot"`
	DoctorName      string `json:"doctorName"`
	PatientName     string `json:"patientName"`
}

type PaymentFilter struct {
	Status Status
}

type CreateRequest struct {
	AppointmentID uuid.UUID `json:"appointmentId" validate:"required"`
	Method        Method    `json:"paymentMethod" validate:"omitempty,oneof=cash card_at_clinic bank_transfer"`
}

type ConfirmRequest struct {
	PaymentID uuid.UUID `json:"paymentId" validate:"required"`
}

type RefundRequest struct {
	PaymentID uuid.UUID `json:"paymentId" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=1000"`
}
