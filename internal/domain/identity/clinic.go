package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/blobstore"
	"github.com/clinicbook/clinic/internal/platform/clock"
	"github.com/clinicbook/clinic/internal/platform/notification"
	"github.com/clinicbook/clinic/internal/platform/validate"
)

// ClinicService runs the clinic approval workflow: doctors edit and submit
// their clinic, admins approve or reject it. Every edit sends the clinic
// back to pending.
type ClinicService struct {
	doctors  DoctorRepository
	users    UserRepository
	store    blobstore.Store
	notifier notification.Notifier
	clock    clock.Clock
}

func NewClinicService(doctors DoctorRepository, users UserRepository, store blobstore.Store, notifier notification.Notifier, clk clock.Clock) *ClinicService {
	return &ClinicService{doctors: doctors, users: users, store: store, notifier: notifier, clock: clk}
}

func merge(c *Clinic, req ClinicRequest) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.Name, req.Name)
	set(&c.Address, req.Address)
	set(&c.Phone, req.Phone)
	set(&c.Description, req.Description)
}

// resetForReview returns the clinic to pending and clears the last review.
func resetForReview(c *Clinic) {
	c.Status = ClinicPending
	c.ReviewedBy = nil
	c.ReviewedAt = nil
	c.RejectionReason = ""
}

// UpdateClinic edits the doctor's clinic. New images replace the stored
// ones; at most MaxClinicImages are accepted.
func (s *ClinicService) UpdateClinic(ctx context.Context, doctorUserID uuid.UUID, req ClinicRequest, images []blobstore.Upload) (*Clinic, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if len(images) > MaxClinicImages {
		return nil, apperr.InvalidArgument("TOO_MANY_IMAGES", "a clinic can have at most 5 images").
			WithDetail("max", MaxClinicImages)
	}
	v, err := s.doctors.GetByUserID(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}

	c := &Clinic{}
	if v.Clinic != nil {
		cp := *v.Clinic
		c = &cp
	}
	merge(c, req)

	var replaced []string
	if len(images) > 0 {
		urls := make([]string, 0, len(images))
		for _, up := range images {
			obj, err := s.store.Save(ctx, blobstore.CategoryClinics, up)
			if err != nil {
				removeUploads(ctx, s.store, urls...)
				return nil, blobstore.AppError(err)
			}
			urls = append(urls, obj.URL)
		}
		replaced, c.Images = c.Images, urls
	}
	resetForReview(c)

	if err := s.doctors.UpdateClinic(ctx, v.ID, c); err != nil {
		return nil, err
	}
	removeUploads(ctx, s.store, replaced...)
	return c, nil
}

// SubmitClinic asks for review. Name and address must be set, either
// already or in req. Every admin is notified.
func (s *ClinicService) SubmitClinic(ctx context.Context, doctorUserID uuid.UUID, req ClinicRequest) (*Clinic, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	v, err := s.doctors.GetByUserID(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}
	c := &Clinic{}
	if v.Clinic != nil {
		cp := *v.Clinic
		c = &cp
	}
	merge(c, req)
	if c.Name == "" || c.Address == "" {
		return nil, apperr.InvalidArgument("CLINIC_INCOMPLETE", "clinic name and address are required")
	}

	now := s.clock.Now()
	resetForReview(c)
	c.SubmittedAt = &now
	if err := s.doctors.UpdateClinic(ctx, v.ID, c); err != nil {
		return nil, err
	}

	admins, err := s.users.ListByRole(ctx, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	data := map[string]string{"doctor_name": v.Name, "clinic_name": c.Name, "clinic_address": c.Address}
	for _, a := range admins {
		notify(ctx, s.notifier, notification.TemplateClinicPending, a.Email, data)
	}
	return c, nil
}

func (s *ClinicService) ClinicStatus(ctx context.Context, doctorUserID uuid.UUID) (*Clinic, error) {
	v, err := s.doctors.GetByUserID(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}
	if v.Clinic == nil {
		return nil, apperr.NotFound("clinic")
	}
	return v.Clinic, nil
}

func (s *ClinicService) PendingClinics(ctx context.Context) ([]*DoctorView, error) {
	return s.doctors.PendingClinics(ctx)
}

func (s *ClinicService) Approve(ctx context.Context, admin auth.Principal, doctorID uuid.UUID) (*DoctorView, error) {
	return s.review(ctx, admin, doctorID, ClinicApproved, "")
}

func (s *ClinicService) Reject(ctx context.Context, admin auth.Principal, doctorID uuid.UUID, req RejectRequest) (*DoctorView, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.review(ctx, admin, doctorID, ClinicRejected, strings.TrimSpace(req.Reason))
}

func (s *ClinicService) review(ctx context.Context, admin auth.Principal, doctorID uuid.UUID, to ClinicStatus, reason string) (*DoctorView, error) {
	ok, err := s.doctors.ReviewClinic(ctx, doctorID, to, admin.UserID, reason, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidArgument("NO_PENDING_CLINIC", "no pending clinic approval found")
	}
	v, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	data := map[string]string{"doctor_name": v.Name}
	if v.Clinic != nil {
		data["clinic_name"] = v.Clinic.Name
	}
	templateID := notification.TemplateClinicApproved
	if to == ClinicRejected {
		templateID = notification.TemplateClinicRejected
		data["reason"] = reason
	}
	notify(ctx, s.notifier, templateID, v.Email, data)
	return v, nil
}

func (s *ClinicService) ClinicStatistics(ctx context.Context) (*ClinicStatistics, error) {
	return s.doctors.ClinicStatistics(ctx)
}
