package appointment

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
)

// Actor is the appointment participant allowed to drive a transition.
type Actor int

const (
	ActorPatient Actor = iota + 1
	ActorDoctor
)

func (a Actor) String() string {
	switch a {
	case ActorPatient:
		return "patient"
	case ActorDoctor:
		return "doctor"
	default:
		return "unknown"
	}
}

type rule struct {
	actor Actor
	from  []model.AppointmentStatus
}

// transitions is keyed by target status. Anything not listed is illegal;
// REJECTED, CANCELLED and COMPLETED are terminal.
var transitions = map[model.AppointmentStatus]rule{
	model.AppointmentStatusConfirmed: {
		actor: ActorDoctor,
		from:  []model.AppointmentStatus{model.AppointmentStatusPending},
	},
	model.AppointmentStatusRejected: {
		actor: ActorDoctor,
		from:  []model.AppointmentStatus{model.AppointmentStatusPending},
	},
	model.AppointmentStatusCancelled: {
		actor: ActorPatient,
		from:  []model.AppointmentStatus{model.AppointmentStatusPending, model.AppointmentStatusConfirmed},
	},
	model.AppointmentStatusCompleted: {
		actor: ActorDoctor,
		from:  []model.AppointmentStatus{model.AppointmentStatusConfirmed},
	},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to model.AppointmentStatus) bool {
	r, ok := transitions[to]
	if !ok {
		return false
	}
	for _, s := range r.from {
		if s == from {
			return true
		}
	}
	return false
}

// ActorFor returns who may move an appointment into target.
func ActorFor(target model.AppointmentStatus) (Actor, bool) {
	r, ok := transitions[target]
	return r.actor, ok
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status model.AppointmentStatus) bool {
	for to := range transitions {
		if CanTransition(status, to) {
			return false
		}
	}
	return true
}

func ownerFor(apt *model.Appointment, actor Actor) uuid.UUID {
	if actor == ActorDoctor {
		return apt.DoctorID
	}
	return apt.PatientID
}

func isParticipant(apt *model.Appointment, id uuid.UUID) bool {
	return id == apt.PatientID || id == apt.DoctorID
}
