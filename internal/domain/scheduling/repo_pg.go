package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/db"
)

const activeSlotConstraint = "appointment_active_slot_key"

func errSlotBooked() *apperr.Error {
	return apperr.Conflict("SLOT_ALREADY_BOOKED", "this time slot is already booked")
}

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const templateCols = `id, doctor_id, day_of_week, slots, is_available, created_at, updated_at`

func (r *scheduleRepoPG) scanTemplate(row pgx.Row) (*ScheduleTemplate, error) {
	var t ScheduleTemplate
	var raw []byte
	if err := row.Scan(&t.ID, &t.DoctorID, &t.DayOfWeek, &raw, &t.IsAvailable, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &t.Slots); err != nil {
		return nil, fmt.Errorf("decode schedule slots: %w", err)
	}
	return &t, nil
}

func (r *scheduleRepoPG) Upsert(ctx context.Context, t *ScheduleTemplate) error {
	raw, err := json.Marshal(t.Slots)
	if err != nil {
		return fmt.Errorf("encode schedule slots: %w", err)
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule_template (id, doctor_id, day_of_week, slots, is_available)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (doctor_id, day_of_week) DO UPDATE
			SET slots = EXCLUDED.slots, is_available = EXCLUDED.is_available, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		t.ID, t.DoctorID, t.DayOfWeek, raw, t.IsAvailable)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if db.IsForeignKeyViolation(err) {
			return apperr.NotFound("doctor")
		}
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepoPG) GetForDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*ScheduleTemplate, error) {
	t, err := r.scanTemplate(r.conn(ctx).QueryRow(ctx,
		`SELECT `+templateCols+` FROM schedule_template WHERE doctor_id = $1 AND day_of_week = $2`,
		doctorID, dayOfWeek))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("schedule")
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return t, nil
}

func (r *scheduleRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleTemplate, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+templateCols+` FROM schedule_template WHERE doctor_id = $1 ORDER BY day_of_week`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	var items []*ScheduleTemplate
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `a.id, a.patient_id, a.doctor_id, to_char(a.appointment_date, 'YYYY-MM-DD'), a.time_slot,
	a.status, a.amount, a.cancelled_at, a.created_at, a.updated_at`

const viewCols = apptCols + `,
	d.user_id, du.name, d.specialty, d.location,
	p.user_id, pu.name, pu.email, pu.phone`

const viewFrom = ` FROM appointment a
	JOIN doctor d ON d.id = a.doctor_id
	JOIN users du ON du.id = d.user_id
	JOIN patient p ON p.id = a.patient_id
	JOIN users pu ON pu.id = p.user_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.TimeSlot,
		&a.Status, &a.Amount, &a.CancelledAt, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func scanView(row pgx.Row) (*AppointmentView, error) {
	var v AppointmentView
	a := &v.Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.TimeSlot,
		&a.Status, &a.Amount, &a.CancelledAt, &a.CreatedAt, &a.UpdatedAt,
		&v.DoctorUserID, &v.DoctorName, &v.DoctorSpecialty, &v.DoctorLocation,
		&v.PatientUserID, &v.PatientName, &v.PatientEmail, &v.PatientPhone)
	return &v, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, appointment_date, time_slot, status, amount)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.AppointmentDate, a.TimeSlot, a.Status, a.Amount)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err, activeSlotConstraint) {
			return errSlotBooked().WithCause(err)
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment a WHERE a.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("appointment")
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) GetView(ctx context.Context, id uuid.UUID) (*AppointmentView, error) {
	v, err := scanView(r.conn(ctx).QueryRow(ctx, `SELECT `+viewCols+viewFrom+` WHERE a.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("appointment")
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return v, nil
}

func (r *appointmentRepoPG) ActiveSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT time_slot FROM appointment
		WHERE doctor_id = $1 AND appointment_date = $2::date AND status = ANY($3)
		ORDER BY time_slot`,
		doctorID, date, statusStrings(activeStatuses))
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *appointmentRepoPG) SlotHeld(ctx context.Context, doctorID uuid.UUID, date, slot string, exclude uuid.UUID) (bool, error) {
	var held bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE doctor_id = $1 AND appointment_date = $2::date AND time_slot = $3
				AND status = ANY($4) AND id <> $5)`,
		doctorID, date, slot, statusStrings(activeStatuses), exclude).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return held, nil
}

func (r *appointmentRepoPG) TransitionStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, at time.Time) (*Appointment, bool, error) {
	var cancelledAt *time.Time
	if to == StatusCancelled {
		cancelledAt = &at
	}
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment a
		SET status = $2, cancelled_at = COALESCE($4, a.cancelled_at), updated_at = $5
		WHERE a.id = $1 AND a.status = ANY($3)
		RETURNING `+apptCols,
		id, to, statusStrings(from), cancelledAt, at))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("update appointment status: %w", err)
	}
	return a, true, nil
}

func (r *appointmentRepoPG) Move(ctx context.Context, id uuid.UUID, from []Status, target Appointment) (*Appointment, bool, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment a
		SET doctor_id = $2, appointment_date = $3::date, time_slot = $4, amount = $5,
			status = 'pending', updated_at = NOW()
		WHERE a.id = $1 AND a.status = ANY($6)
		RETURNING `+apptCols,
		id, target.DoctorID, target.AppointmentDate, target.TimeSlot, target.Amount, statusStrings(from)))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, false, nil
		}
		if db.IsUniqueViolation(err, activeSlotConstraint) {
			return nil, false, errSlotBooked().WithCause(err)
		}
		return nil, false, fmt.Errorf("reschedule appointment: %w", err)
	}
	return a, true, nil
}

// filterClause appends the filter's conditions to a WHERE clause that already
// binds n arguments.
func filterClause(f AppointmentFilter, args []interface{}) (string, []interface{}) {
	clause := ""
	add := func(cond string, v interface{}) {
		args = append(args, v)
		clause += fmt.Sprintf(cond, len(args))
	}
	if f.Status != "" {
		add(` AND a.status = $%d`, string(f.Status))
	}
	if f.Date != "" {
		add(` AND a.appointment_date = $%d::date`, f.Date)
	}
	if f.StartDate != "" {
		add(` AND a.appointment_date >= $%d::date`, f.StartDate)
	}
	if f.EndDate != "" {
		add(` AND a.appointment_date <= $%d::date`, f.EndDate)
	}
	return clause, args
}

func (r *appointmentRepoPG) list(ctx context.Context, owner string, ownerID uuid.UUID, f AppointmentFilter, order string, limit, offset int) ([]*AppointmentView, int, error) {
	where, args := filterClause(f, []interface{}{ownerID})
	where = ` WHERE a.` + owner + ` = $1` + where

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + viewCols + viewFrom + where +
		fmt.Sprintf(` ORDER BY %s LIMIT $%d OFFSET $%d`, order, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()
	var items []*AppointmentView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, f AppointmentFilter, limit, offset int) ([]*AppointmentView, int, error) {
	return r.list(ctx, "patient_id", patientID, f, "a.appointment_date DESC, a.time_slot DESC", limit, offset)
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, f AppointmentFilter, limit, offset int) ([]*AppointmentView, int, error) {
	return r.list(ctx, "doctor_id", doctorID, f, "a.appointment_date ASC, a.time_slot ASC", limit, offset)
}

func (r *appointmentRepoPG) DoctorStatistics(ctx context.Context, doctorID uuid.UUID, today string) (*DoctorStatistics, error) {
	var s DoctorStatistics
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE appointment_date = $2::date AND status <> 'cancelled'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0)::float8
		FROM appointment WHERE doctor_id = $1`, doctorID, today).
		Scan(&s.TotalAppointments, &s.PendingAppointments, &s.ConfirmedAppointments,
			&s.CompletedAppointments, &s.CancelledAppointments, &s.TodayAppointments, &s.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("doctor statistics: %w", err)
	}
	return &s, nil
}
