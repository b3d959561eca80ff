package records

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/db"
)

const recordAppointmentConstraint = "medical_record_appointment_id_key"

func errRecordExists() *apperr.Error {
	return apperr.Conflict("RECORD_EXISTS", "a medical record already exists for this appointment")
}

type pgRepo struct{ pool *pgxpool.Pool }

func (r pgRepo) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// =========== Medical Record Repository ===========

type recordRepoPG struct{ pgRepo }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pgRepo{pool: pool}}
}

func (r *recordRepoPG) Create(ctx context.Context, rec *MedicalRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_record (id, patient_id, doctor_id, appointment_id, diagnosis, prescription, notes, visit_date)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8::date)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.AppointmentID, rec.Diagnosis, rec.Prescription, rec.Notes, rec.VisitDate)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err, recordAppointmentConstraint) {
			return errRecordExists().WithCause(err)
		}
		if db.IsForeignKeyViolation(err) {
			return apperr.NotFound("appointment")
		}
		return fmt.Errorf("create medical record: %w", err)
	}
	return nil
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*RecordView, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT m.id, m.patient_id, m.doctor_id, m.appointment_id, m.diagnosis,
			COALESCE(m.prescription, ''), COALESCE(m.notes, ''), to_char(m.visit_date, 'YYYY-MM-DD'),
			m.created_at, m.updated_at, u.name, d.specialty
		FROM medical_record m
		JOIN doctor d ON d.id = m.doctor_id
		JOIN users u ON u.id = d.user_id
		WHERE m.patient_id = $1
		ORDER BY m.visit_date DESC, m.created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list medical records: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*RecordView, error) {
		var v RecordView
		m := &v.MedicalRecord
		err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.AppointmentID, &m.Diagnosis,
			&m.Prescription, &m.Notes, &m.VisitDate, &m.CreatedAt, &m.UpdatedAt,
			&v.DoctorName, &v.DoctorSpecialty)
		return &v, err
	})
}

// =========== Report Repository ===========

type reportRepoPG struct{ pgRepo }

func NewReportRepoPG(pool *pgxpool.Pool) ReportRepository {
	return &reportRepoPG{pgRepo{pool: pool}}
}

func (r *reportRepoPG) Create(ctx context.Context, rep *Report) error {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO report (id, patient_id, appointment_id, uploaded_by, report_type, description,
			file_url, file_name, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
		RETURNING uploaded_at`,
		rep.ID, rep.PatientID, rep.AppointmentID, rep.UploadedBy, rep.ReportType, rep.Description,
		rep.FileURL, rep.FileName, rep.ContentType, rep.Size)
	if err := row.Scan(&rep.UploadedAt); err != nil {
		if db.IsForeignKeyViolation(err) {
			return apperr.NotFound("patient")
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (r *reportRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ReportView, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT rp.id, rp.patient_id, rp.appointment_id, rp.uploaded_by, rp.report_type,
			COALESCE(rp.description, ''), rp.file_url, rp.file_name, rp.content_type, rp.size_bytes,
			rp.uploaded_at, u.name
		FROM report rp
		JOIN doctor d ON d.id = rp.uploaded_by
		JOIN users u ON u.id = d.user_id
		WHERE rp.patient_id = $1
		ORDER BY rp.uploaded_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*ReportView, error) {
		var v ReportView
		rp := &v.Report
		err := row.Scan(&rp.ID, &rp.PatientID, &rp.AppointmentID, &rp.UploadedBy, &rp.ReportType,
			&rp.Description, &rp.FileURL, &rp.FileName, &rp.ContentType, &rp.Size,
			&rp.UploadedAt, &v.DoctorName)
		return &v, err
	})
}
