package records

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/blobstore"
	"github.com/clinicbook/clinic/internal/platform/db"
	"github.com/clinicbook/clinic/internal/platform/validate"
)

type Service struct {
	records      RecordRepository
	reports      ReportRepository
	appointments Appointments
	completer    Completer
	directory    Directory
	tx           db.TxManager
	store        blobstore.Store
}

func NewService(records RecordRepository, reports ReportRepository, appts Appointments, completer Completer,
	dir Directory, tx db.TxManager, store blobstore.Store) *Service {
	return &Service{
		records: records, reports: reports, appointments: appts, completer: completer,
		directory: dir, tx: tx, store: store,
	}
}

// AddMedicalRecord writes the visit outcome and completes the appointment in
// the same transaction. Only the appointment's doctor may add it.
func (s *Service) AddMedicalRecord(ctx context.Context, doctorUserID uuid.UUID, req RecordRequest) (*MedicalRecord, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	doctorID, err := s.directory.DoctorIDForUser(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}

	var rec *MedicalRecord
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		v, err := s.appointments.GetView(ctx, req.AppointmentID)
		if err != nil {
			return err
		}
		if v.DoctorID != doctorID {
			return apperr.NotFound("appointment")
		}
		rec = &MedicalRecord{
			PatientID:     v.PatientID,
			DoctorID:      doctorID,
			AppointmentID: v.ID,
			Diagnosis:     strings.TrimSpace(req.Diagnosis),
			Prescription:  strings.TrimSpace(req.Prescription),
			Notes:         strings.TrimSpace(req.Notes),
			VisitDate:     v.AppointmentDate,
		}
		if err := s.records.Create(ctx, rec); err != nil {
			return err
		}
		_, err = s.completer.Complete(ctx, v.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UploadReport stores file under reports/ and attaches it to the patient.
// When an appointment is named it must be between this doctor and that
// patient.
func (s *Service) UploadReport(ctx context.Context, doctorUserID uuid.UUID, req ReportRequest, file *blobstore.Upload) (*Report, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if file == nil {
		return nil, apperr.InvalidArgument("FILE_REQUIRED", "no file uploaded")
	}
	doctorID, err := s.directory.DoctorIDForUser(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}
	if req.AppointmentID != nil && *req.AppointmentID != uuid.Nil {
		v, err := s.appointments.GetView(ctx, *req.AppointmentID)
		if err != nil {
			return nil, err
		}
		if v.DoctorID != doctorID {
			return nil, apperr.NotFound("appointment")
		}
		if v.PatientID != req.PatientID {
			return nil, apperr.InvalidArgument("APPOINTMENT_MISMATCH", "the appointment belongs to another patient")
		}
	} else {
		req.AppointmentID = nil
	}

	obj, err := s.store.Save(ctx, blobstore.CategoryReports, *file)
	if err != nil {
		return nil, blobstore.AppError(err)
	}
	rep := &Report{
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		UploadedBy:    doctorID,
		ReportType:    strings.TrimSpace(req.ReportType),
		Description:   strings.TrimSpace(req.Description),
		FileURL:       obj.URL,
		FileName:      obj.FileName,
		ContentType:   obj.ContentType,
		Size:          obj.Size,
	}
	if err := s.reports.Create(ctx, rep); err != nil {
		if derr := s.store.Delete(ctx, obj.Key); derr != nil && !errors.Is(derr, blobstore.ErrObjectNotFound) {
			zerolog.Ctx(ctx).Warn().Err(derr).Str("file", obj.URL).Msg("remove orphan report")
		}
		return nil, err
	}
	return rep, nil
}

// MedicalHistory returns the calling patient's records and reports.
func (s *Service) MedicalHistory(ctx context.Context, patientUserID uuid.UUID) (*MedicalHistory, error) {
	patientID, err := s.directory.PatientIDForUser(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	recs, err := s.records.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	reps, err := s.reports.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*RecordView{}
	}
	if reps == nil {
		reps = []*ReportView{}
	}
	return &MedicalHistory{MedicalRecords: recs, Reports: reps}, nil
}
