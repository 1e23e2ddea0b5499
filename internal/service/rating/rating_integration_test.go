//go:build integration

package rating

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/doctorconnect-api/internal/repository"
	"github.com/jwalitptl/doctorconnect-api/internal/service/identity"
	dbtest "github.com/jwalitptl/doctorconnect-api/internal/testutil"
)

func newPostgresService(t *testing.T) (*Service, repository.Store) {
	t.Helper()
	store, _ := dbtest.NewPostgresStore(t)
	return NewService(store, identity.NewResolver(store.Users()), nil, nil, nil), store
}

func TestApplyRatingLocksPerDoctor(t *testing.T) {
	ctx := context.Background()
	svc, store := newPostgresService(t)
	doctorA := dbtest.SeedDoctor(t, store, "Locked Doctor")
	doctorB := dbtest.SeedDoctor(t, store, "Free Doctor")

	holding := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- store.WithTx(ctx, func(tx repository.Tx) error {
			if _, err := svc.Apply(ctx, tx, doctorA.ID, 5); err != nil {
				return err
			}
			close(holding)
			<-release
			return nil
		})
	}()

	select {
	case <-holding:
	case err := <-txDone:
		t.Fatalf("holding transaction ended early: %v", err)
	}

	// Another doctor's aggregate is not behind A's lock
	bDone := make(chan error, 1)
	go func() {
		_, err := svc.ApplyRating(ctx, doctorB.ID, 3)
		bDone <- err
	}()
	select {
	case err := <-bDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("rating for doctor B waited on doctor A's lock")
	}

	// A second rating for A waits until the first transaction commits
	aDone := make(chan error, 1)
	go func() {
		_, err := svc.ApplyRating(ctx, doctorA.ID, 3)
		aDone <- err
	}()
	select {
	case err := <-aDone:
		t.Fatalf("rating for doctor A did not wait for the row lock: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-txDone)
	require.NoError(t, <-aDone)

	a, err := svc.GetRating(ctx, doctorA.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Count)
	assert.Equal(t, int64(8), a.Sum)
	assert.Equal(t, "4.00", a.Average.StringFixed(2))
}

func TestApplyRatingConcurrentPostgres(t *testing.T) {
	ctx := context.Background()
	svc, store := newPostgresService(t)
	doctor := dbtest.SeedDoctor(t, store, "Busy Doctor")

	const n = 50
	var wg sync.WaitGroup
	var sum int64
	for i := 0; i < n; i++ {
		r := i%5 + 1
		sum += int64(r)
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			_, err := svc.ApplyRating(ctx, doctor.ID, r)
			assert.NoError(t, err)
		}(r)
	}
	wg.Wait()

	got, err := svc.GetRating(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.Count)
	assert.Equal(t, sum, got.Sum)
	assert.Equal(t, "3.00", got.Average.StringFixed(2))
}
