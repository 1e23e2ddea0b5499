package model

import (
	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentStatusRejected  AppointmentStatus = "REJECTED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusRejected,
		AppointmentStatusCancelled, AppointmentStatusCompleted:
		return true
	}
	return false
}

type Appointment struct {
	Base
	PatientID uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Date      string            `db:"appointment_date" json:"date"`
	Time      string            `db:"appointment_time" json:"time"`
	Status    AppointmentStatus `db:"status" json:"status"`
}

// AppointmentView is an appointment joined with display names at read time.
type AppointmentView struct {
	ID          uuid.UUID         `json:"id"`
	PatientID   uuid.UUID         `json:"patient_id"`
	DoctorID    uuid.UUID         `json:"doctor_id"`
	Date        string            `json:"date"`
	Time        string            `json:"time"`
	Status      AppointmentStatus `json:"status"`
	DoctorName  string            `json:"doctor_name"`
	PatientName string            `json:"patient_name,omitempty"`
}

func NewAppointmentView(apt *Appointment, doctorName, patientName string) *AppointmentView {
	return &AppointmentView{
		ID:          apt.ID,
		PatientID:   apt.PatientID,
		DoctorID:    apt.DoctorID,
		Date:        apt.Date,
		Time:        apt.Time,
		Status:      apt.Status,
		DoctorName:  doctorName,
		PatientName: patientName,
	}
}

type CreateAppointmentRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" validate:"required"`
	Date     string    `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string    `json:"time" validate:"required,datetime=15:04"`
}
