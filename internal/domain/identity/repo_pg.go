package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/db"
)

const (
	emailConstraint     = "users_email_key"
	specialtyConstraint = "specialty_name_key"
)

func errEmailTaken() *apperr.Error {
	return apperr.Conflict("EMAIL_TAKEN", "a user with this email already exists")
}

func errSpecialtyExists() *apperr.Error {
	return apperr.Conflict("SPECIALTY_EXISTS", "a specialty with this name already exists")
}

// likePattern turns user input into an ILIKE substring pattern.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

type pgRepo struct{ pool *pgxpool.Pool }

func (r pgRepo) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// =========== User Repository ===========

type userRepoPG struct{ pgRepo }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pgRepo{pool}} }

const userCols = `id, email, password_hash, name, phone, role, is_email_verified,
	otp_hash, otp_purpose, otp_expires_at, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Role, &u.IsEmailVerified,
		&u.OTPHash, &u.OTPPurpose, &u.OTPExpiresAt, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, phone, role, is_email_verified,
			otp_hash, otp_purpose, otp_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Phone, u.Role, u.IsEmailVerified,
		u.OTPHash, u.OTPPurpose, u.OTPExpiresAt)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err, emailConstraint) {
			return errEmailTaken().WithCause(err)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepoPG) get(ctx context.Context, where string, arg interface{}) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE `+where, arg))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, `LOWER(email) = LOWER($1)`, email)
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET name = $2, phone = $3, password_hash = $4, is_email_verified = $5,
			otp_hash = $6, otp_purpose = $7, otp_expires_at = $8, last_login = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Name, u.Phone, u.PasswordHash, u.IsEmailVerified,
		u.OTPHash, u.OTPPurpose, u.OTPExpiresAt, u.LastLogin)
	if err := row.Scan(&u.UpdatedAt); err != nil {
		if db.IsNoRows(err) {
			return apperr.NotFound("user")
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, f UserFilter, limit, offset int) ([]*User, int, error) {
	var args []interface{}
	var conds []string
	if f.Role != "" {
		args = append(args, f.Role)
		conds = append(conds, fmt.Sprintf(`role = $%d`, len(args)))
	}
	if f.Search != "" {
		args = append(args, likePattern(f.Search))
		conds = append(conds, fmt.Sprintf(`(name ILIKE $%d OR email ILIKE $%d)`, len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, ` AND `)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userCols + ` FROM users` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	items, err := r.query(ctx, query, args...)
	return items, total, err
}

func (r *userRepoPG) ListByRole(ctx context.Context, role string) ([]*User, error) {
	return r.query(ctx, `SELECT `+userCols+` FROM users WHERE role = $1 ORDER BY created_at`, role)
}

func (r *userRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*User, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pgRepo }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pgRepo{pool}} }

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, user_id, address, date_of_birth)
		VALUES ($1, $2, $3, $4::date)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Address, p.DateOfBirth)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, user_id, address, to_char(date_of_birth, 'YYYY-MM-DD'), created_at, updated_at
		FROM patient WHERE user_id = $1`, userID).
		Scan(&p.ID, &p.UserID, &p.Address, &p.DateOfBirth, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("patient profile")
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &p, nil
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pgRepo }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pgRepo{pool}} }

const doctorViewCols = `d.id, d.user_id, d.specialty, d.location, d.fee, d.photo_url,
	d.clinic_name, d.clinic_address, d.clinic_phone, d.clinic_description, d.clinic_images,
	d.clinic_status, d.clinic_submitted_at, d.clinic_reviewed_by, d.clinic_reviewed_at,
	d.clinic_rejection_reason, d.created_at, d.updated_at, u.name, u.email, u.phone`

const doctorViewFrom = ` FROM doctor d JOIN users u ON u.id = d.user_id`

func scanDoctorView(row pgx.Row) (*DoctorView, error) {
	var v DoctorView
	var (
		photo, name, address, phone, desc, status, reason *string
		images                                            []string
		submitted, reviewed                               *time.Time
		reviewer                                          *uuid.UUID
	)
	err := row.Scan(&v.ID, &v.UserID, &v.Specialty, &v.Location, &v.Fee, &photo,
		&name, &address, &phone, &desc, &images,
		&status, &submitted, &reviewer, &reviewed,
		&reason, &v.CreatedAt, &v.UpdatedAt, &v.Name, &v.Email, &v.Phone)
	if err != nil {
		return nil, err
	}
	v.PhotoURL = deref(photo)
	if status != nil {
		v.Clinic = &Clinic{
			Name:            deref(name),
			Address:         deref(address),
			Phone:           deref(phone),
			Description:     deref(desc),
			Images:          images,
			Status:          ClinicStatus(*status),
			SubmittedAt:     submitted,
			ReviewedBy:      reviewer,
			ReviewedAt:      reviewed,
			RejectionReason: deref(reason),
		}
	}
	return &v, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (id, user_id, specialty, location, fee, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.Specialty, d.Location, d.Fee, nullable(d.PhotoURL))
	if err := row.Scan(&d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepoPG) get(ctx context.Context, where string, arg interface{}) (*DoctorView, error) {
	v, err := scanDoctorView(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorViewCols+doctorViewFrom+` WHERE `+where, arg))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("doctor")
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return v, nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DoctorView, error) {
	return r.get(ctx, `d.id = $1`, id)
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*DoctorView, error) {
	return r.get(ctx, `d.user_id = $1`, userID)
}

func (r *doctorRepoPG) UpdateProfile(ctx context.Context, d *Doctor) error {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor SET specialty = $2, location = $3, fee = $4, photo_url = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Specialty, d.Location, d.Fee, nullable(d.PhotoURL))
	if err := row.Scan(&d.UpdatedAt); err != nil {
		if db.IsNoRows(err) {
			return apperr.NotFound("doctor")
		}
		return fmt.Errorf("update doctor: %w", err)
	}
	return nil
}

func (r *doctorRepoPG) UpdateClinic(ctx context.Context, doctorID uuid.UUID, c *Clinic) error {
	images := c.Images
	if images == nil {
		images = []string{}
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor SET clinic_name = $2, clinic_address = $3, clinic_phone = $4,
			clinic_description = $5, clinic_images = $6, clinic_status = $7,
			clinic_submitted_at = $8, clinic_reviewed_by = $9, clinic_reviewed_at = $10,
			clinic_rejection_reason = $11, updated_at = NOW()
		WHERE id = $1`,
		doctorID, nullable(c.Name), nullable(c.Address), nullable(c.Phone), nullable(c.Description),
		images, string(c.Status), c.SubmittedAt, c.ReviewedBy, c.ReviewedAt, nullable(c.RejectionReason))
	if err != nil {
		return fmt.Errorf("update clinic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("doctor")
	}
	return nil
}

func (r *doctorRepoPG) ReviewClinic(ctx context.Context, doctorID uuid.UUID, to ClinicStatus, reviewer uuid.UUID, reason string, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor SET clinic_status = $2, clinic_reviewed_by = $3, clinic_reviewed_at = $4,
			clinic_rejection_reason = $5, updated_at = $4
		WHERE id = $1 AND clinic_status = 'pending'`,
		doctorID, string(to), reviewer, at, nullable(reason))
	if err != nil {
		return false, fmt.Errorf("review clinic: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctor WHERE id = $1)`, doctorID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check doctor: %w", err)
	}
	if !exists {
		return false, apperr.NotFound("doctor")
	}
	return false, nil
}

func (r *doctorRepoPG) Search(ctx context.Context, q DoctorSearch, limit, offset int) ([]*DoctorView, int, error) {
	var args []interface{}
	where := ` WHERE TRUE`
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, likePattern(v))
		where += fmt.Sprintf(` AND %s ILIKE $%d`, col, len(args))
	}
	add("d.specialty", q.Specialty)
	add("d.location", q.Location)
	add("u.name", q.Name)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+doctorViewFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	query := `SELECT ` + doctorViewCols + doctorViewFrom + where +
		fmt.Sprintf(` ORDER BY u.name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	items, err := r.query(ctx, query, args...)
	return items, total, err
}

func (r *doctorRepoPG) PendingClinics(ctx context.Context) ([]*DoctorView, error) {
	return r.query(ctx, `SELECT `+doctorViewCols+doctorViewFrom+
		` WHERE d.clinic_status = 'pending' ORDER BY d.clinic_submitted_at NULLS LAST`)
}

func (r *doctorRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*DoctorView, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()
	var items []*DoctorView
	for rows.Next() {
		v, err := scanDoctorView(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *doctorRepoPG) ClinicStatistics(ctx context.Context) (*ClinicStatistics, error) {
	var s ClinicStatistics
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE clinic_status IS NOT NULL),
			COUNT(*) FILTER (WHERE clinic_status = 'pending'),
			COUNT(*) FILTER (WHERE clinic_status = 'approved'),
			COUNT(*) FILTER (WHERE clinic_status = 'rejected')
		FROM doctor`).Scan(&s.Total, &s.Pending, &s.Approved, &s.Rejected)
	if err != nil {
		return nil, fmt.Errorf("clinic statistics: %w", err)
	}
	return &s, nil
}

// =========== Specialty Repository ===========

type specialtyRepoPG struct{ pgRepo }

func NewSpecialtyRepoPG(pool *pgxpool.Pool) SpecialtyRepository { return &specialtyRepoPG{pgRepo{pool}} }

const specialtyCols = `id, name, COALESCE(description, ''), created_at, updated_at`

func scanSpecialty(row pgx.Row) (*Specialty, error) {
	var s Specialty
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *specialtyRepoPG) Create(ctx context.Context, s *Specialty) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO specialty (id, name, description) VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, nullable(s.Description))
	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err, specialtyConstraint) {
			return errSpecialtyExists().WithCause(err)
		}
		return fmt.Errorf("create specialty: %w", err)
	}
	return nil
}

func (r *specialtyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	s, err := scanSpecialty(r.conn(ctx).QueryRow(ctx, `SELECT `+specialtyCols+` FROM specialty WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("specialty")
		}
		return nil, fmt.Errorf("get specialty: %w", err)
	}
	return s, nil
}

func (r *specialtyRepoPG) Update(ctx context.Context, s *Specialty) error {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE specialty SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		s.ID, s.Name, nullable(s.Description))
	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		if db.IsNoRows(err) {
			return apperr.NotFound("specialty")
		}
		if db.IsUniqueViolation(err, specialtyConstraint) {
			return errSpecialtyExists().WithCause(err)
		}
		return fmt.Errorf("update specialty: %w", err)
	}
	return nil
}

func (r *specialtyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM specialty WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete specialty: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("specialty")
	}
	return nil
}

func (r *specialtyRepoPG) List(ctx context.Context) ([]*Specialty, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+specialtyCols+` FROM specialty ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	defer rows.Close()
	var items []*Specialty
	for rows.Next() {
		s, err := scanSpecialty(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
