package identity

import (
	"time"

	"github.com/google/uuid"
)

// OTPPurpose separates email verification codes from password reset codes.
// A user holds at most one live code.
type OTPPurpose string

const (
	PurposeVerifyEmail   OTPPurpose = "verify_email"
	PurposeResetPassword OTPPurpose = "reset_password"
)

type User struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone"`
	Role            string     `json:"role"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	PasswordHash string      `json:"-"`
	OTPHash      *string     `json:"-"`
	OTPPurpose   *OTPPurpose `json:"-"`
	OTPExpiresAt *time.Time  `json:"-"`
}

func (u *User) clearOTP() {
	u.OTPHash = nil
	u.OTPPurpose = nil
	u.OTPExpiresAt = nil
}

type Patient struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Address     string    `json:"address"`
	DateOfBirth *string   `json:"dateOfBirth,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ClinicStatus string

const (
	ClinicPending  ClinicStatus = "pending"
	ClinicApproved ClinicStatus = "approved"
	ClinicRejected ClinicStatus = "rejected"
)

// MaxClinicImages caps the images attached to one clinic.
const MaxClinicImages = 5

type Clinic struct {
	Name            string       `json:"name"`
	Address         string       `json:"address"`
	Phone           string       `json:"phone"`
	Description     string       `json:"description"`
	Images          []string     `json:"images"`
	Status          ClinicStatus `json:"status"`
	SubmittedAt     *time.Time   `json:"submittedAt,omitempty"`
	ReviewedBy      *uuid.UUID   `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time   `json:"reviewedAt,omitempty"`
	RejectionReason string       `json:"rejectionReason,omitempty"`
}

type Doctor struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Specialty string    `json:"specialty"`
	Location  string    `json:"location"`
	Fee       float64   `json:"fee"`
	PhotoURL  string    `json:"photo,omitempty"`
	Clinic    *Clinic   `json:"clinic,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DoctorView is a doctor joined with the contact fields of its user.
type DoctorView struct {
	Doctor
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// public hides clinics that have not been approved.
func (v *DoctorView) public() *DoctorView {
	out := *v
	if out.Clinic != nil && out.Clinic.Status != ClinicApproved {
		out.Clinic = nil
	}
	return &out
}

type Specialty struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ClinicStatistics struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// DoctorSearch matches case-insensitive substrings. Empty fields match all.
type DoctorSearch struct {
	Specialty string
	Location  string
	Name      string
}

type UserFilter struct {
	Role   string
	Search string
}

// -- Requests --

// UserRequest creates an account with its role profile. Patients need an
// address and date of birth; doctors a specialty, location and fee.
type UserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,max=255"`
	Phone    string `json:"phone" validate:"required,max=50"`
	Role     string `json:"role" validate:"required,oneof=patient doctor admin"`

	Address     string `json:"address" validate:"required_if=Role patient"`
	DateOfBirth string `json:"dateOfBirth" validate:"required_if=Role patient,omitempty,datetime=2006-01-02"`

	Specialty string  `json:"specialty" validate:"required_if=Role doctor"`
	Location  string  `json:"location" validate:"required_if=Role doctor"`
	Fee       float64 `json:"fee" validate:"required_if=Role doctor,gte=0"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type UpdateUserRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=255"`
	Phone           *string `json:"phone" validate:"omitempty,max=50"`
	IsEmailVerified *bool   `json:"isEmailVerified"`
}

type DoctorProfileRequest struct {
	Specialty *string  `json:"specialty" validate:"omitempty,min=1"`
	Location  *string  `json:"location" validate:"omitempty,min=1"`
	Fee       *float64 `json:"fee" validate:"omitempty,gt=0"`
}

type ClinicRequest struct {
	Name        string `json:"name" validate:"max=255"`
	Address     string `json:"address" validate:"max=500"`
	Phone       string `json:"phone" validate:"max=50"`
	Description string `json:"description" validate:"max=2000"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type SpecialtyRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1000"`
}

// -- Results --

type RegisterResult struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
}

type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}
