package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/blobstore"
	"github.com/clinicbook/clinic/internal/platform/clock"
	"github.com/clinicbook/clinic/internal/platform/db"
	"github.com/clinicbook/clinic/internal/platform/validate"
)

// Service covers doctor profiles and search, specialties and admin user
// management.
type Service struct {
	users       UserRepository
	patients    PatientRepository
	doctors     DoctorRepository
	specialties SpecialtyRepository
	tx          db.TxManager
	hasher      Hasher
	revoker     Revoker
	store       blobstore.Store
	clock       clock.Clock
}

func NewService(users UserRepository, patients PatientRepository, doctors DoctorRepository, specialties SpecialtyRepository,
	tx db.TxManager, hasher Hasher, revoker Revoker, store blobstore.Store, clk clock.Clock) *Service {
	return &Service{
		users: users, patients: patients, doctors: doctors, specialties: specialties,
		tx: tx, hasher: hasher, revoker: revoker, store: store, clock: clk,
	}
}

// -- Doctor profile --

func (s *Service) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*DoctorView, error) {
	return s.doctors.GetByUserID(ctx, userID)
}

// UpdateDoctorProfile applies the set fields and, when photo is given,
// stores it under doctors/ as the new profile photo.
func (s *Service) UpdateDoctorProfile(ctx context.Context, userID uuid.UUID, req DoctorProfileRequest, photo *blobstore.Upload) (*DoctorView, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	v, err := s.doctors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	d := v.Doctor
	if req.Specialty != nil {
		d.Specialty = strings.TrimSpace(*req.Specialty)
	}
	if req.Location != nil {
		d.Location = strings.TrimSpace(*req.Location)
	}
	if req.Fee != nil {
		d.Fee = *req.Fee
	}

	var previous string
	if photo != nil {
		obj, err := s.store.Save(ctx, blobstore.CategoryDoctors, *photo)
		if err != nil {
			return nil, blobstore.AppError(err)
		}
		previous, d.PhotoURL = d.PhotoURL, obj.URL
	}
	if err := s.doctors.UpdateProfile(ctx, &d); err != nil {
		return nil, err
	}
	if previous != "" {
		removeUploads(ctx, s.store, previous)
	}
	v.Doctor = d
	return v, nil
}

// removeUploads deletes replaced or abandoned uploads. Failures leave an
// orphan file and are only logged.
func removeUploads(ctx context.Context, store blobstore.Store, urls ...string) {
	for _, url := range urls {
		if err := store.DeleteURL(ctx, url); err != nil && !errors.Is(err, blobstore.ErrObjectNotFound) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("file", url).Msg("remove upload")
		}
	}
}

// -- Doctor directory --

func (s *Service) SearchDoctors(ctx context.Context, q DoctorSearch, limit, offset int) ([]*DoctorView, int, error) {
	items, total, err := s.doctors.Search(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*DoctorView, 0, len(items))
	for _, v := range items {
		out = append(out, v.public())
	}
	return out, total, nil
}

// GetDoctorDetails is the public doctor page. Unapproved clinics are hidden.
func (s *Service) GetDoctorDetails(ctx context.Context, doctorID uuid.UUID) (*DoctorView, error) {
	v, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return v.public(), nil
}

// -- Specialties --

func (s *Service) ListSpecialties(ctx context.Context) ([]*Specialty, error) {
	return s.specialties.List(ctx)
}

func (s *Service) CreateSpecialty(ctx context.Context, req SpecialtyRequest) (*Specialty, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	sp := &Specialty{Name: strings.TrimSpace(req.Name), Description: strings.TrimSpace(req.Description)}
	if err := s.specialties.Create(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) UpdateSpecialty(ctx context.Context, id uuid.UUID, req SpecialtyRequest) (*Specialty, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	sp := &Specialty{ID: id, Name: strings.TrimSpace(req.Name), Description: strings.TrimSpace(req.Description)}
	if err := s.specialties.Update(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) DeleteSpecialty(ctx context.Context, id uuid.UUID) error {
	return s.specialties.Delete(ctx, id)
}

// -- Admin users --

func (s *Service) ListUsers(ctx context.Context, f UserFilter, limit, offset int) ([]*User, int, error) {
	if f.Role != "" && !auth.ValidRole(f.Role) {
		return nil, 0, apperr.Validation("invalid role %q", f.Role)
	}
	return s.users.List(ctx, f, limit, offset)
}

// CreateUser adds a pre-verified account of any role.
func (s *Service) CreateUser(ctx context.Context, req UserRequest) (*User, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:           req.Email,
		Name:            strings.TrimSpace(req.Name),
		Phone:           strings.TrimSpace(req.Phone),
		Role:            req.Role,
		PasswordHash:    hash,
		IsEmailVerified: true,
	}
	if err := createAccount(ctx, s.tx, s.users, s.patients, s.doctors, u, req); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		u.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.IsEmailVerified != nil {
		u.IsEmailVerified = *req.IsEmailVerified
		if u.IsEmailVerified {
			u.clearOTP()
		}
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes the account with its profile and ends its sessions.
// Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor auth.Principal, id uuid.UUID) error {
	if actor.UserID == id {
		return apperr.InvalidArgument("CANNOT_DELETE_SELF", "you cannot delete your own account")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	if s.revoker != nil {
		s.revoker.RevokeUser(id.String(), s.clock.Now())
	}
	return nil
}
