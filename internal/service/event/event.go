package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
)

// AppointmentPayload is published for appointment.created and every
// appointment.<status> event.
type AppointmentPayload struct {
	AppointmentID  uuid.UUID               `json:"appointment_id"`
	PatientID      uuid.UUID               `json:"patient_id"`
	DoctorID       uuid.UUID               `json:"doctor_id"`
	Date           string                  `json:"date"`
	Time           string                  `json:"time"`
	Status         model.AppointmentStatus `json:"status"`
	PreviousStatus model.AppointmentStatus `json:"previous_status,omitempty"`
	ActorID        uuid.UUID               `json:"actor_id"`
	OccurredAt     time.Time               `json:"occurred_at"`
}

func NewAppointmentPayload(apt *model.Appointment, previous model.AppointmentStatus, actorID uuid.UUID) AppointmentPayload {
	return AppointmentPayload{
		AppointmentID:  apt.ID,
		PatientID:      apt.PatientID,
		DoctorID:       apt.DoctorID,
		Date:           apt.Date,
		Time:           apt.Time,
		Status:         apt.Status,
		PreviousStatus: previous,
		ActorID:        actorID,
		OccurredAt:     time.Now().UTC(),
	}
}

type ReviewPayload struct {
	ReviewID      uuid.UUID `json:"review_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Rating        int       `json:"rating"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewReviewPayload(r *model.Review) ReviewPayload {
	return ReviewPayload{
		ReviewID:      r.ID,
		AppointmentID: r.AppointmentID,
		PatientID:     r.PatientID,
		DoctorID:      r.DoctorID,
		Rating:        r.Rating,
		OccurredAt:    time.Now().UTC(),
	}
}

type RatingPayload struct {
	DoctorID      uuid.UUID       `json:"doctor_id"`
	RatingCount   int             `json:"rating_count"`
	RatingAverage decimal.Decimal `json:"rating_avg"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewRatingPayload(r *model.DoctorRating) RatingPayload {
	return RatingPayload{
		DoctorID:      r.DoctorID,
		RatingCount:   r.Count,
		RatingAverage: r.Average,
		OccurredAt:    time.Now().UTC(),
	}
}
