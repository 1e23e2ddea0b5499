package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/internal/repository"
	"github.com/jwalitptl/doctorconnect-api/internal/repository/postgres"
	"github.com/jwalitptl/doctorconnect-api/internal/testutil"
	apperrors "github.com/jwalitptl/doctorconnect-api/pkg/errors"
)

func TestAppointmentRepositoryFlow(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewStore(t)
	patient := testutil.SeedPatient(t, store, "Ana Pop")
	doctor := testutil.SeedDoctor(t, store, "Ion Ionescu")

	// Create appointment
	apt := &model.Appointment{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		Date:      "2024-05-01",
		Time:      "10:00",
		Status:    model.AppointmentStatusPending,
	}
	require.NoError(t, store.Appointments().Create(ctx, apt))
	assert.NotEqual(t, uuid.Nil, apt.ID)

	// Get appointment
	got, err := store.Appointments().Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.ID, got.PatientID)
	assert.Equal(t, doctor.ID, got.DoctorID)
	assert.Equal(t, "2024-05-01", got.Date)
	assert.Equal(t, "10:00", got.Time)
	assert.Equal(t, model.AppointmentStatusPending, got.Status)

	// Compare-and-set status
	require.NoError(t, store.Appointments().UpdateStatus(ctx, apt.ID, model.AppointmentStatusPending, model.AppointmentStatusConfirmed))
	err = store.Appointments().UpdateStatus(ctx, apt.ID, model.AppointmentStatusPending, model.AppointmentStatusRejected)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransitionKind)

	got, err = store.Appointments().Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, got.Status)

	// Missing appointment
	_, err = store.Appointments().Get(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestAppointmentRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewStore(t)
	patient := testutil.SeedPatient(t, store, "Ana Pop")
	other := testutil.SeedPatient(t, store, "Dan Radu")
	doctor := testutil.SeedDoctor(t, store, "Ion Ionescu")

	early := testutil.SeedAppointment(t, store, patient.ID, doctor.ID, "2024-05-01", "09:00", model.AppointmentStatusCompleted)
	late := testutil.SeedAppointment(t, store, patient.ID, doctor.ID, "2024-05-01", "15:30", model.AppointmentStatusConfirmed)
	testutil.SeedAppointment(t, store, other.ID, doctor.ID, "2024-06-01", "08:00", model.AppointmentStatusPending)

	byPatient, err := store.Appointments().ListByPatient(ctx, patient.ID)
	require.NoError(t, err)
	assert.Len(t, byPatient, 2)

	byDoctor, err := store.Appointments().ListByDoctor(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Len(t, byDoctor, 3)

	completed, err := store.Appointments().ListByPatientAndStatus(ctx, patient.ID, model.AppointmentStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, early.ID, completed[0].ID)

	latest, err := store.Appointments().LatestByPatient(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, late.ID, latest.ID)

	_, err = store.Appointments().LatestByPatient(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFoundKind)

	empty, err := store.Appointments().ListByDoctor(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestReviewRepositoryUniqueness(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewStore(t)
	patient := testutil.SeedPatient(t, store, "Ana Pop")
	doctor := testutil.SeedDoctor(t, store, "Ion Ionescu")
	apt := testutil.SeedAppointment(t, store, patient.ID, doctor.ID, "2024-05-01", "09:00", model.AppointmentStatusCompleted)

	exists, err := store.Reviews().ExistsForAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	review := &model.Review{AppointmentID: apt.ID, PatientID: patient.ID, DoctorID: doctor.ID, Rating: 5, Comment: "great"}
	require.NoError(t, store.Reviews().Create(ctx, review))

	exists, err = store.Reviews().ExistsForAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	// The unique index rejects a second review for the appointment
	dup := &model.Review{AppointmentID: apt.ID, PatientID: patient.ID, DoctorID: doctor.ID, Rating: 1}
	assert.Error(t, store.Reviews().Create(ctx, dup))

	list, err := store.Reviews().ListByDoctor(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDoctorRepositoryRating(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewStore(t)
	doctor := testutil.SeedDoctor(t, store, "Ion Ionescu")

	got, err := store.Doctors().Get(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RatingCount)
	assert.True(t, got.RatingAverage.IsZero())

	require.NoError(t, store.Doctors().UpdateRating(ctx, doctor.ID, 2, 9, decimal.RequireFromString("4.50")))

	got, err = store.Doctors().Get(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RatingCount)
	assert.Equal(t, int64(9), got.RatingSum)
	assert.Equal(t, "4.50", got.RatingAverage.StringFixed(2))

	err = store.Doctors().UpdateRating(ctx, uuid.New(), 1, 5, decimal.NewFromInt(5))
	assert.True(t, apperrors.IsNotFound(err))

	_, err = store.Doctors().GetForUpdate(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDoctorRepositoryTopByScore(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewStore(t)

	a := testutil.SeedRatedDoctor(t, store, "Doctor A", 1, "5.00")
	b := testutil.SeedRatedDoctor(t, store, "Doctor B", 100, "4.90")
	c := testutil.SeedRatedDoctor(t, store, "Doctor C", 0, "0")

	top, err := store.Doctors().TopByScore(ctx, 3, decimal.RequireFromString("4.0"), 5)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, b.ID, top[0].UserID)
	assert.Equal(t, a.ID, top[1].UserID)
	assert.Equal(t, c.ID, top[2].UserID)

	top, err = store.Doctors().TopByScore(ctx, 1, decimal.RequireFromString("4.0"), 5)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestUserRepositoryListByIDs(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewStore(t)
	ana := testutil.SeedPatient(t, store, "Ana Pop")
	ion := testutil.SeedDoctor(t, store, "Ion Ionescu")

	users, err := store.Users().ListByIDs(ctx, []uuid.UUID{ana.ID, ion.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = store.Users().ListByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = store.Users().Get(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestOutboxRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewStore(t)

	evt := &model.OutboxEvent{
		EventType:   model.EventReviewSubmitted,
		AggregateID: uuid.New(),
		Payload:     []byte(`{"rating":5}`),
	}
	require.NoError(t, store.Outbox().Create(ctx, evt))
	assert.Equal(t, model.OutboxStatusPending, evt.Status)

	pending, err := store.Outbox().CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	var claimed []*model.OutboxEvent
	err = store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		claimed, err = tx.Outbox().ClaimPending(ctx, 10)
		if err != nil {
			return err
		}
		return tx.Outbox().MarkProcessed(ctx, claimed[0].ID)
	})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.JSONEq(t, `{"rating":5}`, claimed[0].Payload.String())

	pending, err = store.Outbox().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	deleted, err := store.Outbox().DeleteProcessedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestOutboxRepositoryMarkFailed(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewStore(t)

	evt := &model.OutboxEvent{EventType: model.EventAppointmentCreated, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	require.NoError(t, store.Outbox().Create(ctx, evt))

	// A retryable failure keeps the event pending
	require.NoError(t, store.Outbox().MarkFailed(ctx, evt.ID, "broker down", false))
	events, err := store.Outbox().ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].RetryCount)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Equal(t, "broker down", *events[0].ErrorMessage)

	// A terminal failure removes it from the pending set
	require.NoError(t, store.Outbox().MarkFailed(ctx, evt.ID, "broker down", true))
	events, err = store.Outbox().ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewStore(t)
	patient := testutil.SeedPatient(t, store, "Ana Pop")
	doctor := testutil.SeedDoctor(t, store, "Ion Ionescu")

	var id uuid.UUID
	err := store.WithTx(ctx, func(tx repository.Tx) error {
		apt := &model.Appointment{PatientID: patient.ID, DoctorID: doctor.ID, Date: "2024-05-01", Time: "10:00", Status: model.AppointmentStatusPending}
		if err := tx.Appointments().Create(ctx, apt); err != nil {
			return err
		}
		id = apt.ID
		return apperrors.Conflict("boom", nil)
	})
	assert.True(t, apperrors.IsConflict(err))

	_, err = store.Appointments().Get(ctx, id)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMigratorIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)

	applied, err := postgres.NewMigrator(db).Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	statuses, err := postgres.NewMigrator(db).Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.True(t, s.Applied, s.Name)
	}
}
