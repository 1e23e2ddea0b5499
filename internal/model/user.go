package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// User is the identity record used for display-name enrichment.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Principal is the authenticated caller of a core operation.
type Principal struct {
	ID   uuid.UUID
	Role Role
}
