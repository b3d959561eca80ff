package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/blobstore"
	"github.com/clinicbook/clinic/internal/platform/clock"
	"github.com/clinicbook/clinic/internal/platform/db"
)

// -- Users --

type fakeUserRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{items: make(map[uuid.UUID]*User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.items {
		if strings.EqualFold(x.Email, u.Email) {
			return apperr.Conflict("EMAIL_TAKEN", "email already registered")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.items[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.items {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (r *fakeUserRepo) Update(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[u.ID]; !ok {
		return apperr.NotFound("user")
	}
	cp := *u
	r.items[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperr.NotFound("user")
	}
	delete(r.items, id)
	return nil
}

func (r *fakeUserRepo) List(_ context.Context, f UserFilter, limit, offset int) ([]*User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*User
	for _, u := range r.items {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), strings.ToLower(f.Search)) {
			continue
		}
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *fakeUserRepo) ListByRole(ctx context.Context, role string) ([]*User, error) {
	items, _, err := r.List(ctx, UserFilter{Role: role}, 1000, 0)
	return items, err
}

func (r *fakeUserRepo) get(t *testing.T, email string) *User {
	t.Helper()
	u, err := r.GetByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("user %s: %v", email, err)
	}
	return u
}

// -- Patients --

type fakePatientRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Patient // userID -> patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{items: make(map[uuid.UUID]*Patient)}
}

func (r *fakePatientRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	cp := *p
	r.items[p.UserID] = &cp
	return nil
}

func (r *fakePatientRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[userID]
	if !ok {
		return nil, apperr.NotFound("patient profile")
	}
	cp := *p
	return &cp, nil
}

// -- Doctors --

type fakeDoctorRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Doctor
	users *fakeUserRepo
}

func newFakeDoctorRepo(users *fakeUserRepo) *fakeDoctorRepo {
	return &fakeDoctorRepo{items: make(map[uuid.UUID]*Doctor), users: users}
}

func copyDoctor(d *Doctor) Doctor {
	cp := *d
	if d.Clinic != nil {
		c := *d.Clinic
		c.Images = append([]string(nil), d.Clinic.Images...)
		cp.Clinic = &c
	}
	return cp
}

func (r *fakeDoctorRepo) view(d *Doctor) *DoctorView {
	v := &DoctorView{Doctor: copyDoctor(d)}
	if u, err := r.users.GetByID(context.Background(), d.UserID); err == nil {
		v.Name, v.Email, v.Phone = u.Name, u.Email, u.Phone
	}
	return v
}

func (r *fakeDoctorRepo) Create(_ context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = uuid.New()
	cp := copyDoctor(d)
	r.items[d.ID] = &cp
	return nil
}

func (r *fakeDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*DoctorView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("doctor")
	}
	return r.view(d), nil
}

func (r *fakeDoctorRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*DoctorView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.items {
		if d.UserID == userID {
			return r.view(d), nil
		}
	}
	return nil, apperr.NotFound("doctor profile")
}

func (r *fakeDoctorRepo) UpdateProfile(_ context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[d.ID]
	if !ok {
		return apperr.NotFound("doctor")
	}
	cur.Specialty, cur.Location, cur.Fee, cur.PhotoURL = d.Specialty, d.Location, d.Fee, d.PhotoURL
	return nil
}

func (r *fakeDoctorRepo) UpdateClinic(_ context.Context, doctorID uuid.UUID, c *Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[doctorID]
	if !ok {
		return apperr.NotFound("doctor")
	}
	cp := *c
	cp.Images = append([]string(nil), c.Images...)
	cur.Clinic = &cp
	return nil
}

func (r *fakeDoctorRepo) ReviewClinic(_ context.Context, doctorID uuid.UUID, to ClinicStatus, reviewer uuid.UUID, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[doctorID]
	if !ok {
		return false, apperr.NotFound("doctor")
	}
	if d.Clinic == nil || d.Clinic.Status != ClinicPending {
		return false, nil
	}
	d.Clinic.Status = to
	d.Clinic.ReviewedBy = &reviewer
	d.Clinic.ReviewedAt = &at
	d.Clinic.RejectionReason = reason
	return true, nil
}

func (r *fakeDoctorRepo) all(match func(*DoctorView) bool) []*DoctorView {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*DoctorView
	for _, d := range r.items {
		if v := r.view(d); match(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (r *fakeDoctorRepo) Search(_ context.Context, q DoctorSearch, limit, offset int) ([]*DoctorView, int, error) {
	all := r.all(func(v *DoctorView) bool {
		return contains(v.Specialty, q.Specialty) && contains(v.Location, q.Location) && contains(v.Name, q.Name)
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *fakeDoctorRepo) PendingClinics(context.Context) ([]*DoctorView, error) {
	return r.all(func(v *DoctorView) bool { return v.Clinic != nil && v.Clinic.Status == ClinicPending }), nil
}

func (r *fakeDoctorRepo) ClinicStatistics(context.Context) (*ClinicStatistics, error) {
	st := &ClinicStatistics{}
	for _, v := range r.all(func(v *DoctorView) bool { return v.Clinic != nil }) {
		st.Total++
		switch v.Clinic.Status {
		case ClinicPending:
			st.Pending++
		case ClinicApproved:
			st.Approved++
		case ClinicRejected:
			st.Rejected++
		}
	}
	return st, nil
}

// -- Specialties --

type fakeSpecialtyRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Specialty
}

func newFakeSpecialtyRepo() *fakeSpecialtyRepo {
	return &fakeSpecialtyRepo{items: make(map[uuid.UUID]*Specialty)}
}

func (r *fakeSpecialtyRepo) nameTakenLocked(name string, except uuid.UUID) bool {
	for _, s := range r.items {
		if s.ID != except && strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

func (r *fakeSpecialtyRepo) Create(_ context.Context, s *Specialty) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTakenLocked(s.Name, uuid.Nil) {
		return errSpecialtyExists()
	}
	s.ID = uuid.New()
	cp := *s
	r.items[s.ID] = &cp
	return nil
}

func (r *fakeSpecialtyRepo) GetByID(_ context.Context, id uuid.UUID) (*Specialty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("specialty")
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSpecialtyRepo) Update(_ context.Context, s *Specialty) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID]; !ok {
		return apperr.NotFound("specialty")
	}
	if r.nameTakenLocked(s.Name, s.ID) {
		return errSpecialtyExists()
	}
	cp := *s
	r.items[s.ID] = &cp
	return nil
}

func (r *fakeSpecialtyRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperr.NotFound("specialty")
	}
	delete(r.items, id)
	return nil
}

func (r *fakeSpecialtyRepo) List(context.Context) ([]*Specialty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Specialty
	for _, s := range r.items {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// -- Collaborators --

type sentMail struct {
	template string
	to       string
	data     map[string]string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *fakeNotifier) Notify(_ context.Context, templateID, to string, data map[string]string) error {
	n.mu.Lock()
	n.sent = append(n.sent, sentMail{template: templateID, to: to, data: data})
	n.mu.Unlock()
	return nil
}

func (n *fakeNotifier) last(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("no email sent")
	}
	return n.sent[len(n.sent)-1]
}

func (n *fakeNotifier) count(templateID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.template == templateID {
			c++
		}
	}
	return c
}

type fakeRevoker struct {
	mu    sync.Mutex
	jtis  []string
	users []string
}

func (r *fakeRevoker) Revoke(jti string, _ time.Time) {
	r.mu.Lock()
	r.jtis = append(r.jtis, jti)
	r.mu.Unlock()
}

func (r *fakeRevoker) RevokeUser(userID string, _ time.Time) {
	r.mu.Lock()
	r.users = append(r.users, userID)
	r.mu.Unlock()
}

// -- Fixture --

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	users       *fakeUserRepo
	patients    *fakePatientRepo
	doctors     *fakeDoctorRepo
	specialties *fakeSpecialtyRepo
	notifier    *fakeNotifier
	revoker     *fakeRevoker
	store       *blobstore.MemoryStore
	clock       *clock.Fixed
	otp         string

	auth    *AuthService
	svc     *Service
	clinics *ClinicService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := newFakeUserRepo()
	f := &fixture{
		users:       users,
		patients:    newFakePatientRepo(),
		doctors:     newFakeDoctorRepo(users),
		specialties: newFakeSpecialtyRepo(),
		notifier:    &fakeNotifier{},
		revoker:     &fakeRevoker{},
		store:       blobstore.NewMemoryStore("/uploads"),
		clock:       clock.NewFixed(testNow),
		otp:         "123456",
	}
	hasher := auth.NewBcryptHasher(4)
	tokens := auth.NewTokenIssuer([]byte("test-secret-key-of-sufficient-len"), "clinic-test", time.Hour, f.clock)
	f.auth = NewAuthService(f.users, f.patients, f.doctors, db.NoTx{}, hasher, tokens, f.revoker, f.notifier, f.clock,
		AuthConfig{GenerateOTP: func() (string, error) { return f.otp, nil }})
	f.svc = NewService(f.users, f.patients, f.doctors, f.specialties, db.NoTx{}, hasher, f.revoker, f.store, f.clock)
	f.clinics = NewClinicService(f.doctors, f.users, f.store, f.notifier, f.clock)
	return f
}

func patientRequest(email string) UserRequest {
	return UserRequest{
		Email: email, Password: "secret1", Name: "Pat Lee", Phone: "555-0100",
		Role: auth.RolePatient, Address: "1 Main St", DateOfBirth: "1990-05-01",
	}
}

func doctorRequest(email string) UserRequest {
	return UserRequest{
		Email: email, Password: "secret1", Name: "Dr Ada", Phone: "555-0200",
		Role: auth.RoleDoctor, Specialty: "Cardiology", Location: "Cairo", Fee: 250,
	}
}

// verified registers req and verifies the email.
func (f *fixture) verified(t *testing.T, req UserRequest) *AuthResult {
	t.Helper()
	ctx := context.Background()
	if _, err := f.auth.Register(ctx, req); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := f.auth.VerifyEmail(ctx, OTPRequest{Email: req.Email, OTP: f.otp})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return res
}

// admin creates an admin user directly.
func (f *fixture) admin(t *testing.T) *User {
	t.Helper()
	u := &User{Email: "admin@clinic.test", Name: "Admin", Role: auth.RoleAdmin, IsEmailVerified: true}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}
