package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinic/internal/domain/identity"
	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/clock"
	"github.com/clinicbook/clinic/internal/platform/db"
)

var defaultSpecialties = []identity.SpecialtyRequest{
	{Name: "Cardiology", Description: "Heart and blood vessel disorders"},
	{Name: "Dermatology", Description: "Skin, hair, and nail conditions"},
	{Name: "Pediatrics", Description: "Medical care for infants, children, and adolescents"},
	{Name: "Orthopedics", Description: "Musculoskeletal system disorders"},
	{Name: "Psychiatry", Description: "Mental health and behavioral disorders"},
	{Name: "Ophthalmology", Description: "Eye and vision care"},
	{Name: "General Practice", Description: "Primary healthcare and routine checkups"},
	{Name: "Neurology", Description: "Nervous system disorders"},
}

type seedAdmin struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

type seeder interface {
	CreateSpecialty(ctx context.Context, req identity.SpecialtyRequest) (*identity.Specialty, error)
	CreateUser(ctx context.Context, req identity.UserRequest) (*identity.User, error)
}

func newSeeder(pool *pgxpool.Pool) seeder {
	return identity.NewService(
		identity.NewUserRepoPG(pool), identity.NewPatientRepoPG(pool), identity.NewDoctorRepoPG(pool),
		identity.NewSpecialtyRepoPG(pool), db.NewTxManager(pool), auth.NewBcryptHasher(bcryptCost),
		nil, nil, clock.Real{})
}

// seed is idempotent: rows that already exist are left alone.
func seed(ctx context.Context, s seeder, admin seedAdmin) error {
	log := zerolog.Ctx(ctx)
	if admin.Password == "" {
		return fmt.Errorf("--admin-password is required")
	}

	created := 0
	for _, sp := range defaultSpecialties {
		if _, err := s.CreateSpecialty(ctx, sp); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				continue
			}
			return fmt.Errorf("seed specialty %s: %w", sp.Name, err)
		}
		created++
	}
	log.Info().Int("created", created).Int("total", len(defaultSpecialties)).Msg("specialties seeded")

	_, err := s.CreateUser(ctx, identity.UserRequest{
		Email: admin.Email, Password: admin.Password, Name: admin.Name, Phone: admin.Phone, Role: auth.RoleAdmin,
	})
	switch {
	case apperr.HasCode(err, "EMAIL_TAKEN"):
		log.Info().Str("email", admin.Email).Msg("admin already exists")
	case err != nil:
		return fmt.Errorf("seed admin: %w", err)
	default:
		log.Info().Str("email", admin.Email).Msg("admin created")
	}
	return nil
}
