package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/domain/scheduling"
)

type PaymentRepository interface {
	// Create inserts a pending payment. A live payment for the same
	// appointment yields Conflict PAYMENT_EXISTS.
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// Complete moves a pending payment to completed. ok is false when the
	// payment was no longer pending.
	Complete(ctx context.Context, id uuid.UUID, at time.Time) (p *Payment, ok bool, err error)
	// Refund moves a completed payment to refunded, under the same rule.
	Refund(ctx context.Context, id uuid.UUID, reason string, at time.Time) (p *Payment, ok bool, err error)
	List(ctx context.Context, f PaymentFilter, limit, offset int) ([]*PaymentView, int, error)
}

type Appointments interface {
	GetView(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentView, error)
}

// Lifecycle is the slice of the appointment state machine billing drives.
type Lifecycle interface {
	Confirm(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	CancelForRefund(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}
