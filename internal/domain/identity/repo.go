package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/platform/auth"
)

type UserRepository interface {
	// Create inserts u. A taken email yields Conflict EMAIL_TAKEN.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Update writes every mutable column of u, including OTP state.
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f UserFilter, limit, offset int) ([]*User, int, error)
	ListByRole(ctx context.Context, role string) ([]*User, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*DoctorView, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*DoctorView, error)
	UpdateProfile(ctx context.Context, d *Doctor) error
	// UpdateClinic replaces the clinic sub-record.
	UpdateClinic(ctx context.Context, doctorID uuid.UUID, c *Clinic) error
	// ReviewClinic moves a pending clinic to approved or rejected. ok is false
	// when the clinic was not pending.
	ReviewClinic(ctx context.Context, doctorID uuid.UUID, to ClinicStatus, reviewer uuid.UUID, reason string, at time.Time) (ok bool, err error)
	Search(ctx context.Context, q DoctorSearch, limit, offset int) ([]*DoctorView, int, error)
	PendingClinics(ctx context.Context) ([]*DoctorView, error)
	ClinicStatistics(ctx context.Context) (*ClinicStatistics, error)
}

type SpecialtyRepository interface {
	// Create and Update yield Conflict SPECIALTY_EXISTS for a duplicate name.
	Create(ctx context.Context, s *Specialty) error
	GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error)
	Update(ctx context.Context, s *Specialty) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Specialty, error)
}

// Hasher hashes passwords and one-time codes.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(userID uuid.UUID, role string) (*auth.Token, error)
}

// Revoker invalidates issued tokens.
type Revoker interface {
	Revoke(jti string, expiresAt time.Time)
	RevokeUser(userID string, at time.Time)
}
