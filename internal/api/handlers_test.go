package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totalsolutions/clinic-ops/internal/appointment"
	"github.com/totalsolutions/clinic-ops/internal/iep"
	"github.com/totalsolutions/clinic-ops/internal/report"
	"github.com/totalsolutions/clinic-ops/internal/slot"
)

// In-memory collaborators

type passLocker struct{ mu sync.Mutex }

func (l *passLocker) WithScheduleLock(ctx context.Context, doctorID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

type stubApptRepo struct {
	mu           sync.Mutex
	children     map[uuid.UUID]appointment.Child
	doctors      map[uuid.UUID]appointment.Doctor
	centres      map[uuid.UUID]appointment.Centre
	appointments map[uuid.UUID]appointment.Appointment
}

func newStubApptRepo() *stubApptRepo {
	return &stubApptRepo{
		children:     make(map[uuid.UUID]appointment.Child),
		doctors:      make(map[uuid.UUID]appointment.Doctor),
		centres:      make(map[uuid.UUID]appointment.Centre),
		appointments: make(map[uuid.UUID]appointment.Appointment),
	}
}

func (r *stubApptRepo) GetChildByID(ctx context.Context, id uuid.UUID) (*appointment.Child, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.children[id]
	if !ok {
		return nil, appointment.ErrChildNotFound
	}
	return &c, nil
}

func (r *stubApptRepo) GetDoctorByID(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, appointment.ErrDoctorNotFound
	}
	return &d, nil
}

func (r *stubApptRepo) GetCentreByID(ctx context.Context, id uuid.UUID) (*appointment.Centre, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.centres[id]
	if !ok {
		return nil, appointment.ErrCentreNotFound
	}
	return &c, nil
}

func (r *stubApptRepo) FindActiveByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.Status.Occupies() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *stubApptRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *stubApptRepo) ListByCentre(ctx context.Context, centreID uuid.UUID) ([]appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range r.appointments {
		if a.CentreID == centreID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *stubApptRepo) Insert(ctx context.Context, a *appointment.Appointment) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appointments {
		if existing.DoctorID == a.DoctorID && existing.Date.Equal(a.Date) &&
			existing.Slot == a.Slot && existing.Status.Occupies() {
			return nil, appointment.ErrSlotUnavailable
		}
	}
	stored := *a
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.appointments[stored.ID] = stored
	return &stored, nil
}

func (r *stubApptRepo) UpdateSchedule(ctx context.Context, id uuid.UUID, date time.Time, s slot.TimeSlot) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Date = date
	a.Slot = s
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *stubApptRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to appointment.Status) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *stubApptRepo) AttachPrescription(ctx context.Context, id uuid.UUID, ref string) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Prescription = &ref
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

type stubIEPRepo struct {
	mu          sync.Mutex
	assignments map[uuid.UUID]iep.TherapyAssignment
}

func newStubIEPRepo() *stubIEPRepo {
	return &stubIEPRepo{assignments: make(map[uuid.UUID]iep.TherapyAssignment)}
}

func (r *stubIEPRepo) InsertAssignment(ctx context.Context, a *iep.TherapyAssignment) (*iep.TherapyAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *a
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.assignments[stored.ID] = stored
	return &stored, nil
}

func (r *stubIEPRepo) GetAssignmentByID(ctx context.Context, id uuid.UUID) (*iep.TherapyAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return nil, iep.ErrAssignmentNotFound
	}
	return &a, nil
}

func (r *stubIEPRepo) ListByChild(ctx context.Context, childID uuid.UUID) ([]iep.TherapyAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []iep.TherapyAssignment
	for _, a := range r.assignments {
		if a.ChildID == childID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *stubIEPRepo) UpdateAssignment(ctx context.Context, a *iep.TherapyAssignment, expectedUpdatedAt time.Time) (*iep.TherapyAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.assignments[a.ID]
	if !ok {
		return nil, iep.ErrAssignmentNotFound
	}
	if !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return nil, iep.ErrStaleAssignment
	}
	updated := *a
	updated.UpdatedAt = time.Now()
	r.assignments[a.ID] = updated
	return &updated, nil
}

func (r *stubIEPRepo) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[id]; !ok {
		return iep.ErrAssignmentNotFound
	}
	delete(r.assignments, id)
	return nil
}

// Fixture

const testSecret = "test-secret"

type testEnv struct {
	server   *httptest.Server
	apptRepo *stubApptRepo
	iepRepo  *stubIEPRepo
	doctor   appointment.Doctor
	child    appointment.Child
	centre   appointment.Centre
	token    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	apptRepo := newStubApptRepo()
	iepRepo := newStubIEPRepo()

	centre := appointment.Centre{ID: uuid.New(), Name: "Barkatpura"}
	doctor := appointment.Doctor{ID: uuid.New(), Name: "Dr. Rao", CentreID: centre.ID}
	child := appointment.Child{ID: uuid.New(), Name: "Aarav"}
	apptRepo.centres[centre.ID] = centre
	apptRepo.doctors[doctor.ID] = doctor
	apptRepo.children[child.ID] = child

	router := NewRouter(RouterConfig{
		Appointments: appointment.NewService(apptRepo, &passLocker{}),
		Ledger:       iep.NewService(iepRepo),
		Renderer:     report.NewRenderer(),
		Verifier:     NewJWTVerifier(testSecret),
		Env:          "test",
		Version:      "test",
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	return &testEnv{
		server:   server,
		apptRepo: apptRepo,
		iepRepo:  iepRepo,
		doctor:   doctor,
		child:    child,
		centre:   centre,
		token:    token,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func futureDate() string {
	return time.Now().AddDate(0, 1, 0).Format(dateLayout)
}

// Tests

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/appointments/"+uuid.NewString(), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/appointments/"+uuid.NewString(), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthLiveNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthReadyReportsUnreachableDependencies(t *testing.T) {
	// The test router carries no real Postgres or Redis, so readiness must
	// degrade to an error report rather than fall over.
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	got := decode[ReadinessResponse](t, resp)
	assert.Equal(t, "error", got.Status)
	assert.Equal(t, "down", got.Dependencies["postgres"])
	assert.Equal(t, "down", got.Dependencies["redis"])
}

func TestAvailabilityEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet,
		fmt.Sprintf("/api/doctors/%s/slots?date=%s", env.doctor.ID, futureDate()), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[AvailabilityResponse](t, resp)
	assert.Equal(t, slot.Catalog(), got.AvailableSlots)
}

func TestAvailabilityUnknownDoctor(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet,
		fmt.Sprintf("/api/doctors/%s/slots?date=%s", uuid.New(), futureDate()), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBookAndConflict(t *testing.T) {
	env := newTestEnv(t)

	body := BookAppointmentRequest{
		ChildID:          env.child.ID.String(),
		DoctorID:         env.doctor.ID.String(),
		CentreID:         env.centre.ID.String(),
		Date:             futureDate(),
		Slot:             "2:00 PM",
		ConsultationType: "New Consultation",
	}

	resp := env.do(t, http.MethodPost, "/api/appointments", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "2:00 PM", created.Slot)

	// Same doctor/date/slot again conflicts.
	resp = env.do(t, http.MethodPost, "/api/appointments", body)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "slot_unavailable", decode[ErrorResponse](t, resp).Error)
}

func TestBookValidation(t *testing.T) {
	env := newTestEnv(t)

	body := BookAppointmentRequest{
		ChildID:  env.child.ID.String(),
		DoctorID: env.doctor.ID.String(),
		CentreID: env.centre.ID.String(),
		Date:     "01-06-2024",
		Slot:     "2:00 PM",
	}
	resp := env.do(t, http.MethodPost, "/api/appointments", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body.Date = futureDate()
	body.Slot = "6:45 PM"
	resp = env.do(t, http.MethodPost, "/api/appointments", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unknown_slot", decode[ErrorResponse](t, resp).Error)
}

func TestRescheduleEndpoint(t *testing.T) {
	env := newTestEnv(t)

	book := env.do(t, http.MethodPost, "/api/appointments", BookAppointmentRequest{
		ChildID:          env.child.ID.String(),
		DoctorID:         env.doctor.ID.String(),
		CentreID:         env.centre.ID.String(),
		Date:             futureDate(),
		Slot:             "10:30 AM",
		ConsultationType: "New Consultation",
	})
	require.Equal(t, http.StatusCreated, book.StatusCode)
	created := decode[AppointmentResponse](t, book)

	resp := env.do(t, http.MethodPut, "/api/appointments/"+created.ID.String()+"/schedule",
		RescheduleRequest{Date: futureDate(), Slot: "3:30 PM"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "3:30 PM", decode[AppointmentResponse](t, resp).Slot)

	resp = env.do(t, http.MethodPut, "/api/appointments/"+uuid.NewString()+"/schedule",
		RescheduleRequest{Date: futureDate(), Slot: "3:30 PM"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApproveEndpoint(t *testing.T) {
	env := newTestEnv(t)

	book := env.do(t, http.MethodPost, "/api/appointments", BookAppointmentRequest{
		ChildID:          env.child.ID.String(),
		DoctorID:         env.doctor.ID.String(),
		CentreID:         env.centre.ID.String(),
		Date:             futureDate(),
		Slot:             "11:30 AM",
		ConsultationType: "Assessment(IQ)",
	})
	created := decode[AppointmentResponse](t, book)

	resp := env.do(t, http.MethodPost, "/api/appointments/"+created.ID.String()+"/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", decode[AppointmentResponse](t, resp).Status)

	// Approving twice conflicts.
	resp = env.do(t, http.MethodPost, "/api/appointments/"+created.ID.String()+"/approve", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func validCreateAssignmentBody(env *testEnv) CreateAssignmentRequest {
	start := time.Now().AddDate(0, 1, 0)
	return CreateAssignmentRequest{
		DoctorID:      env.doctor.ID.String(),
		Therapy:       "Occupational Therapy",
		TherapistName: "Meera",
		Feedback:      "initial plan",
		StartingMonth: int(start.Month()),
		StartingYear:  start.Year(),
		MonthlyGoals: []GoalSeedRequest{
			{Target: "t1", Goals: []string{"g1"}},
			{Target: "t2", Goals: []string{"g2"}},
			{Target: "t3", Goals: []string{"g3"}},
		},
	}
}

func TestCreateAssignmentEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/children/"+env.child.ID.String()+"/ieps",
		validCreateAssignmentBody(env))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := decode[AssignmentResponse](t, resp)
	require.Len(t, got.MonthlyGoals, 3)
	assert.Empty(t, got.MonthlyGoals[0].History)
}

func TestCreateAssignmentValidationEndpoint(t *testing.T) {
	env := newTestEnv(t)

	body := validCreateAssignmentBody(env)
	body.MonthlyGoals = body.MonthlyGoals[:1]

	resp := env.do(t, http.MethodPost, "/api/children/"+env.child.ID.String()+"/ieps", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", decode[ErrorResponse](t, resp).Error)
}

func TestAmendAndFeedbackEndpoints(t *testing.T) {
	env := newTestEnv(t)

	create := env.do(t, http.MethodPost, "/api/children/"+env.child.ID.String()+"/ieps",
		validCreateAssignmentBody(env))
	require.Equal(t, http.StatusCreated, create.StatusCode)
	assignment := decode[AssignmentResponse](t, create)

	resp := env.do(t, http.MethodPut, "/api/ieps/"+assignment.ID.String()+"/months/0/goals",
		AmendGoalsRequest{Target: "revised", Goals: []string{"a", "b"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec := decode[MonthlyGoalRecordResponse](t, resp)
	assert.Equal(t, "revised", rec.Latest.Target)
	assert.Len(t, rec.History, 1)

	resp = env.do(t, http.MethodPut, "/api/ieps/"+assignment.ID.String()+"/months/0/feedback",
		FeedbackRequest{DoctorFeedback: "well done"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "well done", decode[iep.GoalSnapshot](t, resp).DoctorFeedback)

	resp = env.do(t, http.MethodPut, "/api/ieps/"+uuid.NewString()+"/months/0/goals",
		AmendGoalsRequest{Target: "x", Goals: []string{"y"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/ieps/"+assignment.ID.String()+"/months/7/goals",
		AmendGoalsRequest{Target: "x", Goals: []string{"y"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteAssignmentEndpoint(t *testing.T) {
	env := newTestEnv(t)

	create := env.do(t, http.MethodPost, "/api/children/"+env.child.ID.String()+"/ieps",
		validCreateAssignmentBody(env))
	assignment := decode[AssignmentResponse](t, create)

	resp := env.do(t, http.MethodDelete, "/api/ieps/"+assignment.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/ieps/"+assignment.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
