package identity

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/blobstore"
	"github.com/clinicbook/clinic/internal/platform/notification"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func pngUpload(name string) blobstore.Upload {
	return blobstore.Upload{FileName: name, ContentType: "image/png", Content: bytes.NewReader(pngHeader)}
}

func TestClinic_SubmitAndApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	doc := f.verified(t, doctorRequest("ada@example.com"))

	_, err := f.clinics.SubmitClinic(ctx, doc.User.ID, ClinicRequest{Name: "Heart Care"})
	if !apperr.HasCode(err, "CLINIC_INCOMPLETE") {
		t.Fatalf("expected CLINIC_INCOMPLETE, got %v", err)
	}

	c, err := f.clinics.SubmitClinic(ctx, doc.User.ID, ClinicRequest{Name: "Heart Care", Address: "5 Nile St"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != ClinicPending || c.SubmittedAt == nil || !c.SubmittedAt.Equal(testNow) {
		t.Errorf("unexpected clinic %+v", c)
	}
	m := f.notifier.last(t)
	if m.template != notification.TemplateClinicPending || m.to != admin.Email || m.data["clinic_name"] != "Heart Care" {
		t.Errorf("unexpected admin email %+v", m)
	}

	details, err := f.svc.GetDoctorDetails(ctx, mustDoctorID(t, f, doc))
	if err != nil {
		t.Fatal(err)
	}
	if details.Clinic != nil {
		t.Error("pending clinic must not be public")
	}

	pending, _ := f.clinics.PendingClinics(ctx)
	if len(pending) != 1 || pending[0].Email != "ada@example.com" {
		t.Fatalf("unexpected pending list %+v", pending)
	}

	adminP := auth.Principal{UserID: admin.ID, Role: auth.RoleAdmin}
	v, err := f.clinics.Approve(ctx, adminP, pending[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Clinic.Status != ClinicApproved || v.Clinic.ReviewedBy == nil || *v.Clinic.ReviewedBy != admin.ID {
		t.Errorf("unexpected review %+v", v.Clinic)
	}
	if m := f.notifier.last(t); m.template != notification.TemplateClinicApproved || m.to != "ada@example.com" {
		t.Errorf("unexpected doctor email %+v", m)
	}

	details, _ = f.svc.GetDoctorDetails(ctx, v.ID)
	if details.Clinic == nil || details.Clinic.Name != "Heart Care" {
		t.Error("approved clinic should be public")
	}

	_, err = f.clinics.Approve(ctx, adminP, v.ID)
	if !apperr.HasCode(err, "NO_PENDING_CLINIC") {
		t.Errorf("second review should fail, got %v", err)
	}
}

func mustDoctorID(t *testing.T, f *fixture, res *AuthResult) uuid.UUID {
	t.Helper()
	v, err := f.doctors.GetByUserID(context.Background(), res.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	return v.ID
}

func TestClinic_RejectNeedsReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	doc := f.verified(t, doctorRequest("ada@example.com"))
	if _, err := f.clinics.SubmitClinic(ctx, doc.User.ID, ClinicRequest{Name: "Heart Care", Address: "5 Nile St"}); err != nil {
		t.Fatal(err)
	}
	id := mustDoctorID(t, f, doc)
	adminP := auth.Principal{UserID: admin.ID, Role: auth.RoleAdmin}

	if _, err := f.clinics.Reject(ctx, adminP, id, RejectRequest{}); !apperr.HasCode(err, "VALIDATION_FAILED") {
		t.Fatalf("expected validation error, got %v", err)
	}
	v, err := f.clinics.Reject(ctx, adminP, id, RejectRequest{Reason: "  missing license  "})
	if err != nil {
		t.Fatal(err)
	}
	if v.Clinic.Status != ClinicRejected || v.Clinic.RejectionReason != "missing license" {
		t.Errorf("unexpected clinic %+v", v.Clinic)
	}
	if m := f.notifier.last(t); m.template != notification.TemplateClinicRejected || m.data["reason"] != "missing license" {
		t.Errorf("unexpected email %+v", m)
	}

	// Editing a rejected clinic sends it back for review.
	c, err := f.clinics.UpdateClinic(ctx, doc.User.ID, ClinicRequest{Phone: "555-0300"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != ClinicPending || c.ReviewedBy != nil || c.RejectionReason != "" || c.Name != "Heart Care" {
		t.Errorf("unexpected clinic after edit %+v", c)
	}
}

func TestClinic_ReviewWithoutClinic(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	doc := f.verified(t, doctorRequest("ada@example.com"))
	_, err := f.clinics.Approve(context.Background(), auth.Principal{UserID: admin.ID}, mustDoctorID(t, f, doc))
	if !apperr.HasCode(err, "NO_PENDING_CLINIC") {
		t.Errorf("expected NO_PENDING_CLINIC, got %v", err)
	}
}

func TestClinic_UpdateImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.verified(t, doctorRequest("ada@example.com"))

	c, err := f.clinics.UpdateClinic(ctx, doc.User.ID, ClinicRequest{Name: "Heart Care"},
		[]blobstore.Upload{pngUpload("a.png"), pngUpload("b.png")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Images) != 2 {
		t.Fatalf("expected 2 images, got %v", c.Images)
	}
	first := c.Images

	c, err = f.clinics.UpdateClinic(ctx, doc.User.ID, ClinicRequest{}, []blobstore.Upload{pngUpload("c.png")})
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Images) != 1 {
		t.Fatalf("new images should replace old ones, got %v", c.Images)
	}
	for _, url := range first {
		key, _ := blobstore.KeyFromURL("/uploads", url)
		if _, ok := f.store.Get(key); ok {
			t.Errorf("replaced image %s should be deleted", url)
		}
	}

	six := make([]blobstore.Upload, MaxClinicImages+1)
	for i := range six {
		six[i] = pngUpload("x.png")
	}
	_, err = f.clinics.UpdateClinic(ctx, doc.User.ID, ClinicRequest{}, six)
	if !apperr.HasCode(err, "TOO_MANY_IMAGES") {
		t.Errorf("expected TOO_MANY_IMAGES, got %v", err)
	}

	bad := blobstore.Upload{FileName: "doc.txt", ContentType: "text/plain", Content: bytes.NewReader([]byte("hello"))}
	_, err = f.clinics.UpdateClinic(ctx, doc.User.ID, ClinicRequest{}, []blobstore.Upload{bad})
	if !apperr.HasCode(err, "INVALID_FILE_TYPE") {
		t.Errorf("expected INVALID_FILE_TYPE, got %v", err)
	}
}

func TestClinic_Status(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.verified(t, doctorRequest("ada@example.com"))

	if _, err := f.clinics.ClinicStatus(ctx, doc.User.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.clinics.SubmitClinic(ctx, doc.User.ID, ClinicRequest{Name: "Heart Care", Address: "5 Nile St"}); err != nil {
		t.Fatal(err)
	}
	c, err := f.clinics.ClinicStatus(ctx, doc.User.ID)
	if err != nil || c.Status != ClinicPending {
		t.Fatalf("unexpected status %+v, %v", c, err)
	}

	st, _ := f.clinics.ClinicStatistics(ctx)
	if st.Total != 1 || st.Pending != 1 {
		t.Errorf("unexpected statistics %+v", st)
	}
}
