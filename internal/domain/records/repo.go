package records

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/domain/scheduling"
)

type RecordRepository interface {
	// Create inserts r. A second record for the same appointment yields
	// Conflict RECORD_EXISTS.
	Create(ctx context.Context, r *MedicalRecord) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*RecordView, error)
}

type ReportRepository interface {
	// Create inserts r. An unknown patient yields NotFound.
	Create(ctx context.Context, r *Report) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ReportView, error)
}

// Appointments reads appointments with their participants.
type Appointments interface {
	GetView(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentView, error)
}

// Completer closes an appointment once its record exists.
type Completer interface {
	Complete(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

// Directory maps users to their doctor and patient profiles.
type Directory interface {
	DoctorIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}
