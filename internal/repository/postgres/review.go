package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
)

func (r *reviewRepository) Create(ctx context.Context, review *model.Review) error {
	query := `
		INSERT INTO reviews (
			id, appointment_id, patient_id, doctor_id, rating, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	review.CreatedAt = now()

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		review.ID,
		review.AppointmentID,
		review.PatientID,
		review.DoctorID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	)
	if err != nil {
		return mapError("review", "create", err)
	}
	return nil
}

func (r *reviewRepository) ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	query := `SELECT COUNT(1) FROM reviews WHERE appointment_id = ?`

	var count int
	if err := sqlx.GetContext(ctx, r.q, &count, r.rebind(query), appointmentID); err != nil {
		return false, fmt.Errorf("failed to check review existence: %w", err)
	}
	return count > 0, nil
}

func (r *reviewRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Review, error) {
	query := `
		SELECT id, appointment_id, patient_id, doctor_id, rating, comment, created_at
		FROM reviews
		WHERE doctor_id = ?
		ORDER BY created_at DESC, id ASC
	`
	reviews := make([]*model.Review, 0)
	if err := sqlx.SelectContext(ctx, r.q, &reviews, r.rebind(query), doctorID); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}
