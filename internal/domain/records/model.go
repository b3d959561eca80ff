package records

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord is the outcome of one visit. Each appointment has at most
// one record and VisitDate is the appointment date (YYYY-MM-DD).
type MedicalRecord struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patientId"`
	DoctorID      uuid.UUID `json:"doctorId"`
	AppointmentID uuid.UUID `json:"appointmentId"`
	Diagnosis     string    `json:"diagnosis"`
	Prescription  string    `json:"prescription,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	VisitDate     string    `json:"visitDate"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type RecordView struct {
	MedicalRecord
	DoctorName      string `json:"doctorName"`
	DoctorSpecialty string `json:"doctorSpecialty"`
}

// Report is a file a doctor attached to a patient's history.
type Report struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patientId"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	UploadedBy    uuid.UUID  `json:"uploadedBy"`
	ReportType    string     `json:"reportType"`
	Description   string     `json:"description,omitempty"`
	FileURL       string     `json:"fileUrl"`
	FileName      string     `json:"fileName"`
	ContentType   string     `json:"contentType"`
	Size          int64      `json:"size"`
	UploadedAt    time.Time  `json:"uploadDate"`
}

type ReportView struct {
	Report
	DoctorName string `json:"doctorName"`
}

// MedicalHistory lists records by visit date and reports by upload time,
// newest first.
type MedicalHistory struct {
	MedicalRecords []*RecordView `json:"medicalRecords"`
	Reports        []*ReportView `json:"reports"`
}

type RecordRequest struct {
	AppointmentID uuid.UUID `json:"appointmentId" validate:"required"`
	Diagnosis     string    `json:"diagnosis" validate:"required,max=5000"`
	Prescription  string    `json:"prescription" validate:"max=5000"`
	Notes         string    `json:"notes" validate:"max=5000"`
}

type ReportRequest struct {
	PatientID     uuid.UUID  `json:"patientId" validate:"required"`
	AppointmentID *uuid.UUID `json:"appointmentId"`
	ReportType    string     `json:"reportType" validate:"required,max=100"`
	Description   string     `json:"description" validate:"max=2000"`
}
