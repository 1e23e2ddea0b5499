package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appointmentHandler "github.com/jwalitptl/doctorconnect-api/internal/handler/appointment"
	doctorHandler "github.com/jwalitptl/doctorconnect-api/internal/handler/doctor"
	"github.com/jwalitptl/doctorconnect-api/internal/handler/health"
	promHandler "github.com/jwalitptl/doctorconnect-api/internal/handler/prometheus"
	reviewHandler "github.com/jwalitptl/doctorconnect-api/internal/handler/review"
	"github.com/jwalitptl/doctorconnect-api/internal/middleware"
	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/internal/repository"
	"github.com/jwalitptl/doctorconnect-api/internal/service/appointment"
	"github.com/jwalitptl/doctorconnect-api/internal/service/event"
	"github.com/jwalitptl/doctorconnect-api/internal/service/identity"
	"github.com/jwalitptl/doctorconnect-api/internal/service/rating"
	"github.com/jwalitptl/doctorconnect-api/internal/service/review"
	"github.com/jwalitptl/doctorconnect-api/internal/testutil"
	"github.com/jwalitptl/doctorconnect-api/pkg/auth"
	"github.com/jwalitptl/doctorconnect-api/pkg/metrics"
	"github.com/jwalitptl/doctorconnect-api/pkg/validator"
)

const (
	testSecret = "router-test-secret"
	testIssuer = "doctorconnect-test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	engine  *gin.Engine
	store   repository.Store
	jwt     auth.JWTService
	patient *model.User
	doctor  *model.User
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	store, _ := testutil.NewStore(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "test")
	resolver := identity.NewCachedResolver(identity.NewResolver(store.Users()), time.Minute, time.Minute)
	events := event.NewEventService(nil)
	v := validator.New()

	ratings := rating.NewService(store, resolver, events, m, nil)
	appointments := appointment.NewService(store, resolver, events, m, nil)
	reviews := review.NewService(store, ratings, resolver, events, m, nil)

	jwtService := auth.NewJWTService(testSecret, testIssuer, time.Hour)
	r := NewRouter(middleware.NewAuthMiddleware(jwtService), Handlers{
		Appointments: appointmentHandler.NewHandler(appointments, v),
		Reviews:      reviewHandler.NewHandler(reviews, v),
		Doctors:      doctorHandler.NewHandler(ratings),
		Health:       health.NewHandler(map[string]health.Pinger{"database": store}),
		Metrics:      promHandler.New(reg, m),
	}, RouterConfig{
		RequestTimeout: 5 * time.Second,
		MaxBodyBytes:   1 << 16,
		RateLimit:      1000,
		RateBurst:      1000,
	})
	r.Setup()

	return &apiFixture{
		engine:  r.Engine(),
		store:   store,
		jwt:     jwtService,
		patient: testutil.SeedPatient(t, store, "Pat Patient"),
		doctor:  testutil.SeedDoctor(t, store, "Dr Who"),
	}
}

func (f *apiFixture) token(t *testing.T, u *model.User) string {
	t.Helper()
	tok, err := f.jwt.GenerateToken(model.Principal{ID: u.ID, Role: u.Role})
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestAppointmentAndReviewFlow(t *testing.T) {
	f := newAPI(t)
	patientTok := f.token(t, f.patient)
	doctorTok := f.token(t, f.doctor)

	w, env := f.do(t, http.MethodPost, "/api/v1/appointments", patientTok, gin.H{
		"doctor_id": f.doctor.ID,
		"date":      "2026-03-01",
		"time":      "09:30",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var apt model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &apt))
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)
	assert.Equal(t, f.patient.ID, apt.PatientID)
	base := "/api/v1/appointments/" + apt.ID.String()

	// Only the doctor may confirm
	w, _ = f.do(t, http.MethodPut, base+"/confirm", patientTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, http.MethodPut, base+"/confirm", doctorTok, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// Confirmed cannot be confirmed again
	w, _ = f.do(t, http.MethodPut, base+"/confirm", doctorTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = f.do(t, http.MethodGet, "/api/v1/appointments/incoming/"+f.patient.ID.String(), patientTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var incoming []model.AppointmentView
	require.NoError(t, json.Unmarshal(env.Data, &incoming))
	require.Len(t, incoming, 1)
	assert.Equal(t, "Dr Who", incoming[0].DoctorName)

	// Review before completion is refused
	w, _ = f.do(t, http.MethodPost, "/api/v1/reviews", patientTok, gin.H{
		"appointment_id": apt.ID, "rating": 5, "comment": "early",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = f.do(t, http.MethodPut, base+"/complete", doctorTok, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w, env = f.do(t, http.MethodPost, "/api/v1/reviews", patientTok, gin.H{
		"appointment_id": apt.ID, "rating": 5, "comment": "great",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rv model.ReviewView
	require.NoError(t, json.Unmarshal(env.Data, &rv))
	assert.Equal(t, 5, rv.Rating)
	assert.Equal(t, "Pat Patient", rv.PatientName)
	assert.Equal(t, "Dr Who", rv.DoctorName)

	w, _ = f.do(t, http.MethodPost, "/api/v1/reviews", patientTok, gin.H{
		"appointment_id": apt.ID, "rating": 4,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = f.do(t, http.MethodGet, "/api/v1/appointments/history", patientTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []model.AppointmentView
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, model.AppointmentStatusCompleted, history[0].Status)

	w, env = f.do(t, http.MethodGet, "/api/v1/doctors/top", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var top []model.DoctorView
	require.NoError(t, json.Unmarshal(env.Data, &top))
	require.Len(t, top, 1)
	assert.Equal(t, f.doctor.ID, top[0].ID)
	assert.Equal(t, 1, top[0].RatingCount)
	assert.True(t, top[0].RatingAverage.Equal(decimal.NewFromInt(5)))

	w, env = f.do(t, http.MethodGet, "/api/v1/reviews/doctor/"+f.doctor.ID.String(), "", nil)
	// reviews listing sits behind authentication
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = f.do(t, http.MethodGet, "/api/v1/reviews/doctor/"+f.doctor.ID.String(), doctorTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reviews []model.ReviewView
	require.NoError(t, json.Unmarshal(env.Data, &reviews))
	assert.Len(t, reviews, 1)
}

func TestCreateAppointmentRequiresPatientRole(t *testing.T) {
	f := newAPI(t)

	w, _ := f.do(t, http.MethodPost, "/api/v1/appointments", f.token(t, f.doctor), gin.H{
		"doctor_id": f.doctor.ID,
		"date":      "2026-03-01",
		"time":      "09:30",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/v1/appointments", "", gin.H{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newAPI(t)
	tok := f.token(t, f.patient)

	w, env := f.do(t, http.MethodPost, "/api/v1/appointments", tok, gin.H{
		"doctor_id": f.doctor.ID,
		"date":      "01/03/2026",
		"time":      "09:30",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", env.Status)

	w, _ = f.do(t, http.MethodPost, "/api/v1/appointments", tok, gin.H{
		"doctor_id": uuid.New(),
		"date":      "2026-03-01",
		"time":      "09:30",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRoutesRequireSelf(t *testing.T) {
	f := newAPI(t)
	other := testutil.SeedPatient(t, f.store, "Other")

	w, _ := f.do(t, http.MethodGet, "/api/v1/appointments/patient/"+f.patient.ID.String(), f.token(t, other), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := f.do(t, http.MethodGet, "/api/v1/appointments/patient/"+f.patient.ID.String(), f.token(t, f.patient), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", env.Status)
	assert.JSONEq(t, "[]", string(env.Data))

	w, _ = f.do(t, http.MethodGet, "/api/v1/appointments/last", f.token(t, f.patient), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTopDoctorsLimit(t *testing.T) {
	f := newAPI(t)
	testutil.SeedRatedDoctor(t, f.store, "A", 1, "5.00")
	testutil.SeedRatedDoctor(t, f.store, "B", 100, "4.90")

	w, env := f.do(t, http.MethodGet, "/api/v1/doctors/top?limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var top []model.DoctorView
	require.NoError(t, json.Unmarshal(env.Data, &top))
	require.Len(t, top, 1)
	assert.Equal(t, "B", top[0].FullName)

	w, _ = f.do(t, http.MethodGet, "/api/v1/doctors/top?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPI(t)

	w, _ := f.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}
