package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/clock"
	"github.com/clinicbook/clinic/internal/platform/db"
	"github.com/clinicbook/clinic/internal/platform/notification"
	"github.com/clinicbook/clinic/internal/platform/validate"
)

// DefaultOTPTTL is how long a one-time code stays valid.
const DefaultOTPTTL = 10 * time.Minute

// GenerateOTP returns a uniformly random 6-digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

type AuthConfig struct {
	OTPTTL time.Duration
	// TokenTTL bounds how long a revoked token id must be remembered.
	TokenTTL time.Duration
	// GenerateOTP overrides the code generator in tests.
	GenerateOTP func() (string, error)
}

// AuthService owns registration, email verification, login and password
// reset.
type AuthService struct {
	users    UserRepository
	patients PatientRepository
	doctors  DoctorRepository
	tx       db.TxManager
	hasher   Hasher
	tokens   TokenIssuer
	revoker  Revoker
	notifier notification.Notifier
	clock    clock.Clock
	cfg      AuthConfig
}

func NewAuthService(users UserRepository, patients PatientRepository, doctors DoctorRepository, tx db.TxManager,
	hasher Hasher, tokens TokenIssuer, revoker Revoker, notifier notification.Notifier, clk clock.Clock, cfg AuthConfig) *AuthService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = DefaultOTPTTL
	}
	if cfg.GenerateOTP == nil {
		cfg.GenerateOTP = GenerateOTP
	}
	return &AuthService{
		users: users, patients: patients, doctors: doctors, tx: tx,
		hasher: hasher, tokens: tokens, revoker: revoker, notifier: notifier,
		clock: clk, cfg: cfg,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func errInvalidOTP() *apperr.Error {
	return apperr.InvalidArgument("INVALID_OTP", "invalid or expired code")
}

// notify queues an email. Delivery problems never fail the request.
func notify(ctx context.Context, n notification.Notifier, templateID, to string, data map[string]string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, templateID, to, data); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("template", templateID).Msg("email not queued")
	}
}

// issueOTP stores a fresh hashed code for purpose on u and returns the
// plain code. The caller persists u.
func (s *AuthService) issueOTP(u *User, purpose OTPPurpose) (string, error) {
	code, err := s.cfg.GenerateOTP()
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", err
	}
	exp := s.clock.Now().Add(s.cfg.OTPTTL)
	u.OTPHash = &hash
	u.OTPPurpose = &purpose
	u.OTPExpiresAt = &exp
	return code, nil
}

// checkOTP reports whether code is the live code for purpose.
func (s *AuthService) checkOTP(u *User, purpose OTPPurpose, code string) bool {
	if u.OTPHash == nil || u.OTPPurpose == nil || *u.OTPPurpose != purpose || u.OTPExpiresAt == nil {
		return false
	}
	if !s.clock.Now().Before(*u.OTPExpiresAt) {
		return false
	}
	return s.hasher.Compare(*u.OTPHash, code)
}

func (s *AuthService) otpData(u *User, code string) map[string]string {
	return map[string]string{
		"name":        u.Name,
		"otp":         code,
		"ttl_minutes": strconv.Itoa(int(s.cfg.OTPTTL.Minutes())),
	}
}

// createAccount inserts the user and its role profile in one transaction.
func createAccount(ctx context.Context, tx db.TxManager, users UserRepository, patients PatientRepository, doctors DoctorRepository, u *User, req UserRequest) error {
	return tx.WithTx(ctx, func(ctx context.Context) error {
		if err := users.Create(ctx, u); err != nil {
			return err
		}
		switch u.Role {
		case auth.RolePatient:
			p := &Patient{UserID: u.ID, Address: strings.TrimSpace(req.Address)}
			if req.DateOfBirth != "" {
				dob := req.DateOfBirth
				p.DateOfBirth = &dob
			}
			return patients.Create(ctx, p)
		case auth.RoleDoctor:
			return doctors.Create(ctx, &Doctor{
				UserID:    u.ID,
				Specialty: strings.TrimSpace(req.Specialty),
				Location:  strings.TrimSpace(req.Location),
				Fee:       req.Fee,
			})
		}
		return nil
	})
}

// Register creates an unverified patient or doctor account and emails a
// verification code.
func (s *AuthService) Register(ctx context.Context, req UserRequest) (*RegisterResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Role == auth.RoleAdmin {
		return nil, apperr.InvalidArgument("INVALID_ROLE", "role must be patient or doctor")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         req.Role,
		PasswordHash: hash,
	}
	code, err := s.issueOTP(u, PurposeVerifyEmail)
	if err != nil {
		return nil, err
	}
	if err := createAccount(ctx, s.tx, s.users, s.patients, s.doctors, u, req); err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, notification.TemplateVerifyEmail, u.Email, s.otpData(u, code))
	return &RegisterResult{UserID: u.ID, Email: u.Email}, nil
}

func (s *AuthService) session(u *User) (*AuthResult, error) {
	tok, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt, User: u}, nil
}

// VerifyEmail consumes the verification code and signs the user in.
func (s *AuthService) VerifyEmail(ctx context.Context, req OTPRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if u.IsEmailVerified {
		return nil, apperr.InvalidArgument("ALREADY_VERIFIED", "email already verified")
	}
	if !s.checkOTP(u, PurposeVerifyEmail, req.OTP) {
		return nil, errInvalidOTP()
	}

	now := s.clock.Now()
	u.IsEmailVerified = true
	u.LastLogin = &now
	u.clearOTP()
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *AuthService) ResendOTP(ctx context.Context, req EmailRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if u.IsEmailVerified {
		return apperr.InvalidArgument("ALREADY_VERIFIED", "email already verified")
	}
	code, err := s.issueOTP(u, PurposeVerifyEmail)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	notify(ctx, s.notifier, notification.TemplateResendOTP, u.Email, s.otpData(u, code))
	return nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	badCredentials := apperr.Unauthenticated("INVALID_CREDENTIALS", "invalid email or password")

	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, badCredentials
		}
		return nil, err
	}
	if !s.hasher.Compare(u.PasswordHash, req.Password) {
		return nil, badCredentials
	}
	if !u.IsEmailVerified {
		return nil, apperr.Unauthenticated("EMAIL_NOT_VERIFIED", "please verify your email first")
	}

	now := s.clock.Now()
	u.LastLogin = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return s.session(u)
}

// ForgotPassword emails a reset code. Unknown addresses succeed silently so
// the endpoint cannot be used to probe for accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, req EmailRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	code, err := s.issueOTP(u, PurposeResetPassword)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	notify(ctx, s.notifier, notification.TemplatePasswordResetOTP, u.Email, s.otpData(u, code))
	return nil
}

// VerifyResetOTP checks a reset code without consuming it.
func (s *AuthService) VerifyResetOTP(ctx context.Context, req OTPRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return errInvalidOTP()
		}
		return err
	}
	if !s.checkOTP(u, PurposeResetPassword, req.OTP) {
		return errInvalidOTP()
	}
	return nil
}

// ResetPassword sets a new password and ends every existing session.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return errInvalidOTP()
		}
		return err
	}
	if !s.checkOTP(u, PurposeResetPassword, req.OTP) {
		return errInvalidOTP()
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.clearOTP()
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	if s.revoker != nil {
		s.revoker.RevokeUser(u.ID.String(), s.clock.Now())
	}
	notify(ctx, s.notifier, notification.TemplatePasswordResetDone, u.Email, map[string]string{"name": u.Name})
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, userID)
}

// Logout revokes the presented token.
func (s *AuthService) Logout(p auth.Principal) {
	if s.revoker == nil || p.TokenID == "" {
		return
	}
	ttl := s.cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s.revoker.Revoke(p.TokenID, s.clock.Now().Add(ttl))
}
