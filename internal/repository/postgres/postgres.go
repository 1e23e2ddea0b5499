package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/doctorconnect-api/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

type reviewRepository struct {
	BaseRepository
}

type doctorRepository struct {
	BaseRepository
}

type userRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

func NewAppointmentRepository(q sqlx.ExtContext) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(q)}
}

func NewReviewRepository(q sqlx.ExtContext) repository.ReviewRepository {
	return &reviewRepository{NewBaseRepository(q)}
}

func NewDoctorRepository(q sqlx.ExtContext) repository.DoctorRepository {
	return &doctorRepository{NewBaseRepository(q)}
}

func NewUserRepository(q sqlx.ExtContext) repository.UserRepository {
	return &userRepository{NewBaseRepository(q)}
}

func NewOutboxRepository(q sqlx.ExtContext) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(q)}
}

// txRepositories binds every repository to one transaction.
type txRepositories struct {
	tx *sqlx.Tx
}

func (t *txRepositories) Appointments() repository.AppointmentRepository {
	return NewAppointmentRepository(t.tx)
}

func (t *txRepositories) Reviews() repository.ReviewRepository {
	return NewReviewRepository(t.tx)
}

func (t *txRepositories) Doctors() repository.DoctorRepository {
	return NewDoctorRepository(t.tx)
}

func (t *txRepositories) Outbox() repository.OutboxRepository {
	return NewOutboxRepository(t.tx)
}

type store struct {
	db *sqlx.DB
}

// NewStore returns a repository.Store backed by db. db may be any driver
// sqlx knows about; queries are rebound per driver.
func NewStore(db *sqlx.DB) repository.Store {
	return &store{db: db}
}

func (s *store) Appointments() repository.AppointmentRepository {
	return NewAppointmentRepository(s.db)
}

func (s *store) Reviews() repository.ReviewRepository {
	return NewReviewRepository(s.db)
}

func (s *store) Doctors() repository.DoctorRepository {
	return NewDoctorRepository(s.db)
}

func (s *store) Outbox() repository.OutboxRepository {
	return NewOutboxRepository(s.db)
}

func (s *store) Users() repository.UserRepository {
	return NewUserRepository(s.db)
}

func (s *store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a transaction
func (s *store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txRepositories{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("error rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
