package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
	apperrors "github.com/jwalitptl/doctorconnect-api/pkg/errors"
)

const doctorColumns = `
	user_id, speciality, city, rating_count, rating_sum, rating_avg, updated_at`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors_profile (
			user_id, speciality, city, rating_count, rating_sum, rating_avg, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	doctor.UpdatedAt = now()

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		doctor.UserID,
		doctor.Speciality,
		doctor.City,
		doctor.RatingCount,
		doctor.RatingSum,
		doctor.RatingAverage.StringFixed(2),
		doctor.UpdatedAt,
	)
	if err != nil {
		return mapError("doctor", "create", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	return r.get(ctx, userID, "")
}

func (r *doctorRepository) GetForUpdate(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	return r.get(ctx, userID, r.forUpdate())
}

func (r *doctorRepository) get(ctx context.Context, userID uuid.UUID, lock string) (*model.Doctor, error) {
	query := `SELECT` + doctorColumns + `
		FROM doctors_profile
		WHERE user_id = ?` + lock

	var doctor model.Doctor
	if err := sqlx.GetContext(ctx, r.q, &doctor, r.rebind(query), userID); err != nil {
		return nil, mapError("doctor", "get", err)
	}
	return &doctor, nil
}

// UpdateRating overwrites the aggregate in a single statement so readers
// never observe count and average out of step.
func (r *doctorRepository) UpdateRating(ctx context.Context, userID uuid.UUID, count int, sum int64, avg decimal.Decimal) error {
	query := `
		UPDATE doctors_profile
		SET rating_count = ?, rating_sum = ?, rating_avg = ?, updated_at = ?
		WHERE user_id = ?
	`
	result, err := r.q.ExecContext(ctx, r.rebind(query), count, sum, avg.StringFixed(2), now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update doctor rating: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("doctor", nil)
	}
	return nil
}

// TopByScore ranks doctors by their Bayesian score
// (avg*count + priorMean*priorWeight) / (count + priorWeight), best first,
// ties broken by user id.
func (r *doctorRepository) TopByScore(ctx context.Context, limit int, priorMean decimal.Decimal, priorWeight int) ([]*model.Doctor, error) {
	query := `SELECT` + doctorColumns + `
		FROM doctors_profile
		ORDER BY ((rating_avg * rating_count) + CAST(? AS DOUBLE PRECISION) * ?) / (rating_count + ?) DESC, user_id ASC
		LIMIT ?`

	prior, _ := priorMean.Float64()
	doctors := make([]*model.Doctor, 0, limit)
	err := sqlx.SelectContext(ctx, r.q, &doctors, r.rebind(query), prior, priorWeight, priorWeight, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank doctors: %w", err)
	}
	return doctors, nil
}
