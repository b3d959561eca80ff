package identity

import (
	"context"

	"github.com/google/uuid"
)

// Directory resolves doctor and patient profiles for the scheduling,
// records and billing services.
type Directory struct {
	doctors  DoctorRepository
	patients PatientRepository
}

func NewDirectory(doctors DoctorRepository, patients PatientRepository) *Directory {
	return &Directory{doctors: doctors, patients: patients}
}

// DoctorFee returns the doctor's current fee. It doubles as the existence
// check for doctor ids.
func (d *Directory) DoctorFee(ctx context.Context, doctorID uuid.UUID) (float64, error) {
	v, err := d.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return 0, err
	}
	return v.Fee, nil
}

func (d *Directory) DoctorIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	v, err := d.doctors.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return v.ID, nil
}

func (d *Directory) PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	p, err := d.patients.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}
