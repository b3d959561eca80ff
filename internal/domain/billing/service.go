package billing

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinic/internal/domain/scheduling"
	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/clock"
	"github.com/clinicbook/clinic/internal/platform/db"
	"github.com/clinicbook/clinic/internal/platform/validate"
)

type Service struct {
	payments     PaymentRepository
	appointments Appointments
	lifecycle    Lifecycle
	tx           db.TxManager
	clock        clock.Clock
}

func NewService(payments PaymentRepository, appts Appointments, lifecycle Lifecycle, tx db.TxManager, clk clock.Clock) *Service {
	return &Service{payments: payments, appointments: appts, lifecycle: lifecycle, tx: tx, clock: clk}
}

func isAdmin(p auth.Principal) bool { return p.Role == auth.RoleAdmin }

// CreatePayment opens a pending payment for an active appointment. Only the
// patient who booked it, or an admin, may do so.
func (s *Service) CreatePayment(ctx context.Context, p auth.Principal, req CreateRequest) (*Payment, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Method == "" {
		req.Method = MethodCash
	}

	var pay *Payment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		v, err := s.appointments.GetView(ctx, req.AppointmentID)
		if err != nil {
			return err
		}
		if !isAdmin(p) && v.PatientUserID != p.UserID {
			return apperr.NotFound("appointment")
		}
		if !v.Status.Active() {
			return apperr.Conflict("APPOINTMENT_NOT_PAYABLE", "appointment is "+string(v.Status))
		}
		pay = &Payment{
			AppointmentID: v.ID,
			Amount:        v.Amount,
			Method:        req.Method,
			Status:        StatusPending,
		}
		return s.payments.Create(ctx, pay)
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("payment_id", pay.ID.String()).Str("appointment_id", pay.AppointmentID.String()).
		Str("method", string(pay.Method)).Msg("payment created")
	return pay, nil
}

// ConfirmPayment completes a pending payment and confirms its appointment if
// that is still pending. The appointment's doctor or an admin may confirm.
func (s *Service) ConfirmPayment(ctx context.Context, p auth.Principal, req ConfirmRequest) (*Payment, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var pay *Payment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.payments.GetByID(ctx, req.PaymentID)
		if err != nil {
			return err
		}
		v, err := s.appointments.GetView(ctx, cur.AppointmentID)
		if err != nil {
			return err
		}
		if !isAdmin(p) && v.DoctorUserID != p.UserID {
			return apperr.NotFound("payment")
		}
		if v.Status == scheduling.StatusCancelled {
			return apperr.Conflict("APPOINTMENT_CANCELLED", "appointment is cancelled")
		}
		updated, ok, err := s.payments.Complete(ctx, cur.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("PAYMENT_NOT_PENDING", "payment is not pending")
		}
		if v.Status == scheduling.StatusPending {
			if _, err := s.lifecycle.Confirm(ctx, v.ID); err != nil {
				return err
			}
		}
		pay = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("payment_id", pay.ID.String()).Msg("payment confirmed")
	return pay, nil
}

// RefundPayment marks a completed payment refunded and cancels the
// appointment when it has not already reached a terminal state.
func (s *Service) RefundPayment(ctx context.Context, req RefundRequest) (*Payment, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperr.Validation("refund reason is required")
	}

	var pay *Payment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.payments.GetByID(ctx, req.PaymentID)
		if err != nil {
			return err
		}
		updated, ok, err := s.payments.Refund(ctx, cur.ID, reason, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidArgument("PAYMENT_NOT_REFUNDABLE", "only completed payments can be refunded")
		}
		v, err := s.appointments.GetView(ctx, cur.AppointmentID)
		if err != nil {
			return err
		}
		if v.Status.Active() {
			if _, err := s.lifecycle.CancelForRefund(ctx, v.ID); err != nil {
				return err
			}
		}
		pay = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("payment_id", pay.ID.String()).Msg("payment refunded")
	return pay, nil
}

// GetPayment returns a payment to either participant of its appointment or
// to an admin.
func (s *Service) GetPayment(ctx context.Context, p auth.Principal, id uuid.UUID) (*Payment, error) {
	pay, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if isAdmin(p) {
		return pay, nil
	}
	v, err := s.appointments.GetView(ctx, pay.AppointmentID)
	if err != nil {
		return nil, err
	}
	if v.PatientUserID != p.UserID && v.DoctorUserID != p.UserID {
		return nil, apperr.NotFound("payment")
	}
	return pay, nil
}

func (s *Service) ListPayments(ctx context.Context, f PaymentFilter, limit, offset int) ([]*PaymentView, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.InvalidArgument("INVALID_STATUS", "unknown payment status "+string(f.Status))
	}
	items, total, err := s.payments.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*PaymentView{}
	}
	return items, total, nil
}
