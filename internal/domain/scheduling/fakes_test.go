package scheduling

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/platform/apperr"
	"github.com/clinicbook/clinic/internal/platform/clock"
)

// -- Directory --

type fakeDirectory struct {
	mu       sync.Mutex
	fees     map[uuid.UUID]float64   // doctorID -> fee
	doctors  map[uuid.UUID]uuid.UUID // userID -> doctorID
	patients map[uuid.UUID]uuid.UUID // userID -> patientID
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		fees:     make(map[uuid.UUID]float64),
		doctors:  make(map[uuid.UUID]uuid.UUID),
		patients: make(map[uuid.UUID]uuid.UUID),
	}
}

func (d *fakeDirectory) addDoctor(fee float64) (userID, doctorID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	userID, doctorID = uuid.New(), uuid.New()
	d.doctors[userID] = doctorID
	d.fees[doctorID] = fee
	return userID, doctorID
}

func (d *fakeDirectory) addPatient() (userID, patientID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	userID, patientID = uuid.New(), uuid.New()
	d.patients[userID] = patientID
	return userID, patientID
}

func (d *fakeDirectory) setFee(doctorID uuid.UUID, fee float64) {
	d.mu.Lock()
	d.fees[doctorID] = fee
	d.mu.Unlock()
}

func (d *fakeDirectory) DoctorFee(_ context.Context, doctorID uuid.UUID) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fee, ok := d.fees[doctorID]
	if !ok {
		return 0, apperr.NotFound("doctor")
	}
	return fee, nil
}

func (d *fakeDirectory) DoctorIDForUser(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.doctors[userID]
	if !ok {
		return uuid.Nil, apperr.NotFound("doctor profile")
	}
	return id, nil
}

func (d *fakeDirectory) PatientIDForUser(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.patients[userID]
	if !ok {
		return uuid.Nil, apperr.NotFound("patient profile")
	}
	return id, nil
}

func (d *fakeDirectory) userOf(m map[uuid.UUID]uuid.UUID, profileID uuid.UUID) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	for u, p := range m {
		if p == profileID {
			return u
		}
	}
	return uuid.Nil
}

// -- Schedules --

type fakeScheduleRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]map[int]*ScheduleTemplate
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{items: make(map[uuid.UUID]map[int]*ScheduleTemplate)}
}

func (r *fakeScheduleRepo) Upsert(_ context.Context, t *ScheduleTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	days, ok := r.items[t.DoctorID]
	if !ok {
		days = make(map[int]*ScheduleTemplate)
		r.items[t.DoctorID] = days
	}
	if existing, ok := days[t.DayOfWeek]; ok {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	} else {
		t.ID = uuid.New()
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = time.Now()
	cp := *t
	days[t.DayOfWeek] = &cp
	return nil
}

func (r *fakeScheduleRepo) GetForDay(_ context.Context, doctorID uuid.UUID, day int) (*ScheduleTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[doctorID][day]
	if !ok {
		return nil, apperr.NotFound("schedule")
	}
	cp := *t
	return &cp, nil
}

func (r *fakeScheduleRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*ScheduleTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ScheduleTemplate
	for _, t := range r.items[doctorID] {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

// -- Appointments --

// fakeAppointmentRepo enforces the active-slot uniqueness rule under its
// mutex, as the partial unique index does in PostgreSQL.
type fakeAppointmentRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Appointment
	dir   *fakeDirectory

	// beforeWrite runs inside TransitionStatus and Move before the compare,
	// letting tests simulate a concurrent writer.
	beforeWrite func(a *Appointment)
}

func newFakeAppointmentRepo(dir *fakeDirectory) *fakeAppointmentRepo {
	return &fakeAppointmentRepo{items: make(map[uuid.UUID]*Appointment), dir: dir}
}

func (r *fakeAppointmentRepo) heldLocked(doctorID uuid.UUID, date, slot string, exclude uuid.UUID) bool {
	for _, a := range r.items {
		if a.ID != exclude && a.DoctorID == doctorID && a.AppointmentDate == date && a.TimeSlot == slot && a.Status.Active() {
			return true
		}
	}
	return false
}

func (r *fakeAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Status.Active() && r.heldLocked(a.DoctorID, a.AppointmentDate, a.TimeSlot, uuid.Nil) {
		return errSlotBooked()
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

// put stores a directly, bypassing the uniqueness check.
func (r *fakeAppointmentRepo) put(a *Appointment) *Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	r.items[a.ID] = &cp
	return a
}

func (r *fakeAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("appointment")
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAppointmentRepo) view(a *Appointment) *AppointmentView {
	return &AppointmentView{
		Appointment:   *a,
		DoctorUserID:  r.dir.userOf(r.dir.doctors, a.DoctorID),
		PatientUserID: r.dir.userOf(r.dir.patients, a.PatientID),
	}
}

func (r *fakeAppointmentRepo) GetView(ctx context.Context, id uuid.UUID) (*AppointmentView, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.view(a), nil
}

func (r *fakeAppointmentRepo) ActiveSlots(_ context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, a := range r.items {
		if a.DoctorID == doctorID && a.AppointmentDate == date && a.Status.Active() {
			out = append(out, a.TimeSlot)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeAppointmentRepo) SlotHeld(_ context.Context, doctorID uuid.UUID, date, slot string, exclude uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heldLocked(doctorID, date, slot, exclude), nil
}

func (r *fakeAppointmentRepo) TransitionStatus(_ context.Context, id uuid.UUID, from []Status, to Status, at time.Time) (*Appointment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, false, nil
	}
	if r.beforeWrite != nil {
		r.beforeWrite(a)
	}
	if !allowed(a.Status, from) {
		return nil, false, nil
	}
	a.Status = to
	if to == StatusCancelled {
		a.CancelledAt = &at
	}
	a.UpdatedAt = at
	cp := *a
	return &cp, true, nil
}

func (r *fakeAppointmentRepo) Move(_ context.Context, id uuid.UUID, from []Status, target Appointment) (*Appointment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, false, nil
	}
	if r.beforeWrite != nil {
		r.beforeWrite(a)
	}
	if !allowed(a.Status, from) {
		return nil, false, nil
	}
	if r.heldLocked(target.DoctorID, target.AppointmentDate, target.TimeSlot, id) {
		return nil, false, errSlotBooked()
	}
	a.DoctorID = target.DoctorID
	a.AppointmentDate = target.AppointmentDate
	a.TimeSlot = target.TimeSlot
	a.Amount = target.Amount
	a.Status = StatusPending
	cp := *a
	return &cp, true, nil
}

func (r *fakeAppointmentRepo) list(match func(*Appointment) bool, f AppointmentFilter, limit, offset int) ([]*AppointmentView, int, error) {
	r.mu.Lock()
	var all []*Appointment
	for _, a := range r.items {
		if !match(a) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Date != "" && a.AppointmentDate != f.Date {
			continue
		}
		if f.StartDate != "" && a.AppointmentDate < f.StartDate {
			continue
		}
		if f.EndDate != "" && a.AppointmentDate > f.EndDate {
			continue
		}
		cp := *a
		all = append(all, &cp)
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].AppointmentDate+all[i].TimeSlot < all[j].AppointmentDate+all[j].TimeSlot
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	var out []*AppointmentView
	for _, a := range all[offset:end] {
		out = append(out, r.view(a))
	}
	return out, total, nil
}

func (r *fakeAppointmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID, f AppointmentFilter, limit, offset int) ([]*AppointmentView, int, error) {
	return r.list(func(a *Appointment) bool { return a.PatientID == patientID }, f, limit, offset)
}

func (r *fakeAppointmentRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, f AppointmentFilter, limit, offset int) ([]*AppointmentView, int, error) {
	return r.list(func(a *Appointment) bool { return a.DoctorID == doctorID }, f, limit, offset)
}

func (r *fakeAppointmentRepo) DoctorStatistics(_ context.Context, doctorID uuid.UUID, today string) (*DoctorStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &DoctorStatistics{}
	for _, a := range r.items {
		if a.DoctorID != doctorID {
			continue
		}
		s.TotalAppointments++
		switch a.Status {
		case StatusPending:
			s.PendingAppointments++
		case StatusConfirmed:
			s.ConfirmedAppointments++
		case StatusCompleted:
			s.CompletedAppointments++
			s.TotalRevenue += a.Amount
		case StatusCancelled:
			s.CancelledAppointments++
		}
		if a.AppointmentDate == today && a.Status != StatusCancelled {
			s.TodayAppointments++
		}
	}
	return s, nil
}

// -- Recorder --

type fakeRecorder struct {
	mu          sync.Mutex
	outcomes    map[string]int
	transitions map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{outcomes: make(map[string]int), transitions: make(map[string]int)}
}

func (r *fakeRecorder) BookingOutcome(o string) {
	r.mu.Lock()
	r.outcomes[o]++
	r.mu.Unlock()
}

func (r *fakeRecorder) Transition(from, to string) {
	r.mu.Lock()
	r.transitions[from+"->"+to]++
	r.mu.Unlock()
}

// -- Fixture --

// testNow is a Saturday; 2025-03-10 is the following Monday.
var testNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	clock     *clock.Fixed
	dir       *fakeDirectory
	schedules *fakeScheduleRepo
	appts     *fakeAppointmentRepo
	rec       *fakeRecorder

	doctorUserID, doctorID   uuid.UUID
	patientUserID, patientID uuid.UUID
}

func newFixture(t *testing.T, mode Mode) *fixture {
	t.Helper()
	f := &fixture{
		clock:     clock.NewFixed(testNow),
		dir:       newFakeDirectory(),
		schedules: newFakeScheduleRepo(),
		rec:       newFakeRecorder(),
	}
	f.appts = newFakeAppointmentRepo(f.dir)
	f.doctorUserID, f.doctorID = f.dir.addDoctor(200)
	f.patientUserID, f.patientID = f.dir.addPatient()
	f.svc = NewService(f.schedules, f.appts, f.dir, f.clock, f.rec, Config{Mode: mode, Location: time.UTC, Cutoff: DefaultCutoff})
	return f
}

func (f *fixture) book(t *testing.T, date, slot string) *Appointment {
	t.Helper()
	a, err := f.svc.Book(context.Background(), f.patientUserID, BookRequest{DoctorID: f.doctorID, AppointmentDate: date, TimeSlot: slot})
	if err != nil {
		t.Fatalf("book %s %s: %v", date, slot, err)
	}
	return a
}

func expectCode(t *testing.T, err error, kind apperr.Kind, code string) *apperr.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s error, got nil", kind, code)
	}
	e, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T: %v", err, err)
	}
	if e.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, e.Kind, err)
	}
	if code != "" && e.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, e.Code, err)
	}
	return e
}
