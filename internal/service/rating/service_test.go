package rating

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/doctorconnect-api/internal/repository"
	"github.com/jwalitptl/doctorconnect-api/internal/service/event"
	"github.com/jwalitptl/doctorconnect-api/internal/service/identity"
	dbtest "github.com/jwalitptl/doctorconnect-api/internal/testutil"
	apperrors "github.com/jwalitptl/doctorconnect-api/pkg/errors"
	"github.com/jwalitptl/doctorconnect-api/pkg/metrics"
)

func newTestService(t *testing.T) (*Service, repository.Store, *metrics.Metrics) {
	t.Helper()
	store, _ := dbtest.NewStore(t)
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	svc := NewService(store, identity.NewResolver(store.Users()), event.NewEventService(nil), m, nil)
	return svc, store, m
}

func TestApplyRatingScenario(t *testing.T) {
	ctx := context.Background()
	svc, store, m := newTestService(t)
	doctor := dbtest.SeedDoctor(t, store, "Ion Ionescu")

	_, err := svc.ApplyRating(ctx, doctor.ID, 5)
	require.NoError(t, err)
	got, err := svc.ApplyRating(ctx, doctor.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "4.00", got.Average.StringFixed(2))

	got, err = svc.ApplyRating(ctx, doctor.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, "4.00", got.Average.StringFixed(2))

	stored, err := svc.GetRating(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Count)
	assert.Equal(t, "4.00", stored.Average.StringFixed(2))

	assert.Equal(t, float64(3), testutil.ToFloat64(m.RatingsApplied))

	// One doctor.rating_updated event per applied rating
	pending, err := store.Outbox().CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)
}

func TestApplyRatingUnknownDoctor(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	_, err := svc.ApplyRating(ctx, uuid.New(), 5)
	assert.ErrorIs(t, err, apperrors.ErrNotFoundKind)

	pending, err := store.Outbox().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestApplyRatingRejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	doctor := dbtest.SeedDoctor(t, store, "Ion Ionescu")

	for _, r := range []int{0, 6, -1} {
		_, err := svc.ApplyRating(ctx, doctor.ID, r)
		assert.ErrorIs(t, err, apperrors.ErrValidationKind)
	}

	stored, err := svc.GetRating(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Count)
}

func TestApplyRatingConcurrent(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	doctorA := dbtest.SeedDoctor(t, store, "Doctor A")
	doctorB := dbtest.SeedDoctor(t, store, "Doctor B")

	const perDoctor = 40
	var wg sync.WaitGroup
	var sumA int64
	for i := 0; i < perDoctor; i++ {
		r := i%5 + 1
		sumA += int64(r)
		wg.Add(2)
		go func(r int) {
			defer wg.Done()
			_, err := svc.ApplyRating(ctx, doctorA.ID, r)
			assert.NoError(t, err)
		}(r)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyRating(ctx, doctorB.ID, 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, err := svc.GetRating(ctx, doctorA.ID)
	require.NoError(t, err)
	assert.Equal(t, perDoctor, a.Count)
	assert.Equal(t, sumA, a.Sum)
	assert.Equal(t, "3.00", a.Average.StringFixed(2))

	b, err := svc.GetRating(ctx, doctorB.ID)
	require.NoError(t, err)
	assert.Equal(t, perDoctor, b.Count)
	assert.Equal(t, "5.00", b.Average.StringFixed(2))
}

func TestTopDoctors(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	a := dbtest.SeedRatedDoctor(t, store, "Doctor A", 1, "5.00")
	b := dbtest.SeedRatedDoctor(t, store, "Doctor B", 100, "4.90")
	dbtest.SeedRatedDoctor(t, store, "Doctor C", 2, "3.00")
	dbtest.SeedRatedDoctor(t, store, "Doctor D", 0, "0")

	top, err := svc.TopDoctors(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, DefaultTopN)

	assert.Equal(t, b.ID, top[0].ID)
	assert.Equal(t, "Doctor B", top[0].FullName)
	assert.Equal(t, "4.857", top[0].Score.String())
	assert.Equal(t, a.ID, top[1].ID)
	assert.Equal(t, "4.167", top[1].Score.String())

	top, err = svc.TopDoctors(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, top, 4)
}
