package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
)

// All repository interfaces in one file
type (
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// GetForUpdate reads the appointment and holds its row lock until
		// the surrounding transaction ends.
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// UpdateStatus is a compare-and-set: it only writes when the stored
		// status still equals from.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) error
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
		ListByPatientAndStatus(ctx context.Context, patientID uuid.UUID, status model.AppointmentStatus) ([]*model.Appointment, error)
		LatestByPatient(ctx context.Context, patientID uuid.UUID) (*model.Appointment, error)
	}

	ReviewRepository interface {
		Create(ctx context.Context, review *model.Review) error
		ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Review, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
		// GetForUpdate locks the doctor's aggregate row for the rest of the
		// transaction.
		GetForUpdate(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
		UpdateRating(ctx context.Context, userID uuid.UUID, count int, sum int64, avg decimal.Decimal) error
		TopByScore(ctx context.Context, limit int, priorMean decimal.Decimal, priorWeight int) ([]*model.Doctor, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending returns up to limit pending events, locking them so
		// concurrent workers skip them.
		ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, terminal bool) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
		CountPending(ctx context.Context) (int64, error)
	}

	// Tx exposes repositories bound to one database transaction.
	Tx interface {
		Appointments() AppointmentRepository
		Reviews() ReviewRepository
		Doctors() DoctorRepository
		Outbox() OutboxRepository
	}

	// Store gives non-transactional repositories plus WithTx. fn's writes are
	// committed together when it returns nil and rolled back otherwise.
	Store interface {
		Tx
		Users() UserRepository
		WithTx(ctx context.Context, fn func(tx Tx) error) error
		Ping(ctx context.Context) error
	}
)
