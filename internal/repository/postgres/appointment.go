package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
	apperrors "github.com/jwalitptl/doctorconnect-api/pkg/errors"
)

const appointmentColumns = `
	id, patient_id, doctor_id, appointment_date, appointment_time,
	status, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, appointment_date, appointment_time,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = now()
	appointment.UpdatedAt = appointment.CreatedAt

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.Date,
		appointment.Time,
		appointment.Status,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, id, "")
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, id, r.forUpdate())
}

func (r *appointmentRepository) get(ctx context.Context, id uuid.UUID, lock string) (*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE id = ?` + lock

	var appointment model.Appointment
	if err := r.q.QueryRowxContext(ctx, r.rebind(query), id).StructScan(&appointment); err != nil {
		return nil, mapError("appointment", "get", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.q.ExecContext(ctx, r.rebind(query), to, now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.InvalidTransition(fmt.Sprintf("appointment is no longer %s", from))
	}
	return nil
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = ?
		ORDER BY appointment_date DESC, appointment_time DESC, id DESC`
	return r.list(ctx, query, doctorID)
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = ?
		ORDER BY appointment_date DESC, appointment_time DESC, id DESC`
	return r.list(ctx, query, patientID)
}

func (r *appointmentRepository) ListByPatientAndStatus(ctx context.Context, patientID uuid.UUID, status model.AppointmentStatus) ([]*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = ? AND status = ?
		ORDER BY appointment_date DESC, appointment_time DESC, id DESC`
	return r.list(ctx, query, patientID, status)
}

func (r *appointmentRepository) LatestByPatient(ctx context.Context, patientID uuid.UUID) (*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = ?
		ORDER BY appointment_date DESC, appointment_time DESC, id DESC
		LIMIT 1`

	var appointment model.Appointment
	if err := r.q.QueryRowxContext(ctx, r.rebind(query), patientID).StructScan(&appointment); err != nil {
		return nil, mapError("appointment", "get latest", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*model.Appointment, error) {
	rows, err := r.q.QueryxContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	appointments := make([]*model.Appointment, 0)
	for rows.Next() {
		var a model.Appointment
		if err := rows.StructScan(&a); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}
	return appointments, nil
}
