package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/db"
)

const activePaymentConstraint = "payment_active_appointment_key"

func errPaymentExists() *apperr.Error {
	return apperr.Conflict("PAYMENT_EXISTS", "a payment already exists for this appointment")
}

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const paymentCols = `pm.id, pm.appointment_id, pm.amount, pm.method, pm.status, pm.payment_date,
	COALESCE(pm.refund_reason, ''), pm.refund_date, pm.created_at, pm.updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.AppointmentID, &p.Amount, &p.Method, &p.Status, &p.PaymentDate,
		&p.RefundReason, &p.RefundDate, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payment (id, appointment_id, amount, method, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		p.ID, p.AppointmentID, p.Amount, p.Method, p.Status)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err, activePaymentConstraint) {
			return errPaymentExists().WithCause(err)
		}
		if db.IsForeignKeyViolation(err) {
			return apperr.NotFound("appointment")
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, `SELECT `+paymentCols+` FROM payment pm WHERE pm.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("payment")
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// transition runs a compare-and-set update and reports whether it matched.
func (r *paymentRepoPG) transition(ctx context.Context, query string, args ...interface{}) (*Payment, bool, error) {
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, query+` RETURNING `+paymentCols, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("update payment: %w", err)
	}
	return p, true, nil
}

func (r *paymentRepoPG) Complete(ctx context.Context, id uuid.UUID, at time.Time) (*Payment, bool, error) {
	return r.transition(ctx, `
		UPDATE payment pm SET status = $2, payment_date = $3, updated_at = $3
		WHERE pm.id = $1 AND pm.status = $4`,
		id, StatusCompleted, at, StatusPending)
}

func (r *paymentRepoPG) Refund(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Payment, bool, error) {
	return r.transition(ctx, `
		UPDATE payment pm SET status = $2, refund_reason = $3, refund_date = $4, updated_at = $4
		WHERE pm.id = $1 AND pm.status = $5`,
		id, StatusRefunded, reason, at, StatusCompleted)
}

func (r *paymentRepoPG) List(ctx context.Context, f PaymentFilter, limit, offset int) ([]*PaymentView, int, error) {
	where := ` WHERE ($1 = '' OR pm.status = $1)`
	from := ` FROM payment pm
		JOIN appointment a ON a.id = pm.appointment_id
		JOIN doctor d ON d.id = a.doctor_id
		JOIN users du ON du.id = d.user_id
		JOIN patient p ON p.id = a.patient_id
		JOIN users pu ON pu.id = p.user_id`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+from+where, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+paymentCols+`, to_char(a.appointment_date, 'YYYY-MM-DD'), a.time_slot, du.name, pu.name`+
		from+where+`
		ORDER BY pm.created_at DESC
		LIMIT $2 OFFSET $3`,
		string(f.Status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*PaymentView, error) {
		var v PaymentView
		p := &v.Payment
		err := row.Scan(&p.ID, &p.AppointmentID, &p.Amount, &p.Method, &p.Status, &p.PaymentDate,
			&p.RefundReason, &p.RefundDate, &p.CreatedAt, &p.UpdatedAt,
			&v.AppointmentDate, &v.TimeSlot, &v.DoctorName, &v.PatientName)
		return &v, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	return items, total, nil
}
