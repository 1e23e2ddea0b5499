package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Doctor is the doctor profile row. The rating columns form the per-doctor
// aggregate and are only written by the rating engine.
type Doctor struct {
	UserID        uuid.UUID       `db:"user_id" json:"id"`
	Speciality    string          `db:"speciality" json:"speciality"`
	City          string          `db:"city" json:"city"`
	RatingCount   int             `db:"rating_count" json:"rating_count"`
	RatingSum     int64           `db:"rating_sum" json:"-"`
	RatingAverage decimal.Decimal `db:"rating_avg" json:"rating_avg"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// DoctorRating is a snapshot of a doctor's aggregate.
type DoctorRating struct {
	DoctorID uuid.UUID       `json:"doctor_id"`
	Count    int             `json:"rating_count"`
	Sum      int64           `json:"-"`
	Average  decimal.Decimal `json:"rating_avg"`
}

type DoctorView struct {
	ID            uuid.UUID       `json:"id"`
	FullName      string          `json:"full_name"`
	Speciality    string          `json:"speciality"`
	City          string          `json:"city"`
	RatingAverage decimal.Decimal `json:"rating_avg"`
	RatingCount   int             `json:"rating_count"`
	Score         decimal.Decimal `json:"score"`
}
