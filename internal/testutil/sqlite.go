// Package testutil opens throwaway SQLite-backed stores built from the same
// migrations production runs.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/internal/repository"
	"github.com/jwalitptl/doctorconnect-api/internal/repository/postgres"
)

// NewDB returns a migrated in-memory database. It is limited to one
// connection so transactions serialise the same way row locks do.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = postgres.NewMigrator(db).Up(context.Background())
	require.NoError(t, err)
	return db
}

func NewStore(t testing.TB) (repository.Store, *sqlx.DB) {
	t.Helper()
	db := NewDB(t)
	return postgres.NewStore(db), db
}

func SeedUser(t testing.TB, store repository.Store, name string, role model.Role) *model.User {
	t.Helper()

	user := &model.User{
		ID:       uuid.New(),
		FullName: name,
		Email:    fmt.Sprintf("%s.%s@example.com", strings.ToLower(strings.ReplaceAll(name, " ", ".")), uuid.NewString()[:8]),
		Role:     role,
	}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func SeedPatient(t testing.TB, store repository.Store, name string) *model.User {
	t.Helper()
	return SeedUser(t, store, name, model.RolePatient)
}

// SeedDoctor creates a doctor user plus an empty-aggregate profile.
func SeedDoctor(t testing.TB, store repository.Store, name string) *model.User {
	t.Helper()

	user := SeedUser(t, store, name, model.RoleDoctor)
	require.NoError(t, store.Doctors().Create(context.Background(), &model.Doctor{
		UserID:        user.ID,
		Speciality:    "General Practice",
		City:          "Bucharest",
		RatingAverage: decimal.Zero,
	}))
	return user
}

// SeedRatedDoctor creates a doctor whose aggregate already holds count
// ratings averaging avg.
func SeedRatedDoctor(t testing.TB, store repository.Store, name string, count int, avg string) *model.User {
	t.Helper()

	user := SeedUser(t, store, name, model.RoleDoctor)
	a := decimal.RequireFromString(avg)
	require.NoError(t, store.Doctors().Create(context.Background(), &model.Doctor{
		UserID:        user.ID,
		RatingCount:   count,
		RatingSum:     a.Mul(decimal.NewFromInt(int64(count))).Round(0).IntPart(),
		RatingAverage: a,
	}))
	return user
}

// SeedAppointment inserts an appointment directly in the given status.
func SeedAppointment(t testing.TB, store repository.Store, patientID, doctorID uuid.UUID, date, tm string, status model.AppointmentStatus) *model.Appointment {
	t.Helper()

	apt := &model.Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		Time:      tm,
		Status:    status,
	}
	require.NoError(t, store.Appointments().Create(context.Background(), apt))
	return apt
}
