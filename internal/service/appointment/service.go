package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/internal/repository"
	"github.com/jwalitptl/doctorconnect-api/internal/service/event"
	"github.com/jwalitptl/doctorconnect-api/internal/service/identity"
	apperrors "github.com/jwalitptl/doctorconnect-api/pkg/errors"
	"github.com/jwalitptl/doctorconnect-api/pkg/logger"
	"github.com/jwalitptl/doctorconnect-api/pkg/metrics"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type Service struct {
	store    repository.Store
	resolver identity.Resolver
	events   event.Emitter
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewService(store repository.Store, resolver identity.Resolver, events event.Emitter, m *metrics.Metrics, log *logger.Logger) *Service {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    store,
		resolver: resolver,
		events:   events,
		metrics:  m,
		log:      log,
	}
}

func validateSlot(date, tm string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return apperrors.Validation("date must be formatted YYYY-MM-DD", err)
	}
	if _, err := time.Parse(timeLayout, tm); err != nil {
		return apperrors.Validation("time must be formatted HH:MM", err)
	}
	return nil
}

// CreateAppointment books a PENDING appointment for patientID. The doctor
// must have a profile.
func (s *Service) CreateAppointment(ctx context.Context, doctorID uuid.UUID, date, tm string, patientID uuid.UUID) (*model.Appointment, error) {
	if err := validateSlot(date, tm); err != nil {
		return nil, err
	}
	if doctorID == uuid.Nil || patientID == uuid.Nil {
		return nil, apperrors.Validation("doctor and patient are required", nil)
	}

	apt := &model.Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		Time:      tm,
		Status:    model.AppointmentStatusPending,
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Doctors().Get(ctx, doctorID); err != nil {
			return err
		}
		if err := tx.Appointments().Create(ctx, apt); err != nil {
			return err
		}
		return s.emit(ctx, tx, model.EventAppointmentCreated, apt, "", patientID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment created",
		"appointment_id", apt.ID.String(),
		"patient_id", patientID.String(),
		"doctor_id", doctorID.String(),
	)
	return apt, nil
}

// Transition moves an appointment into target on behalf of callerID.
// Checks run in order: existence, ownership, legality. The status write is
// a compare-and-set under the appointment's row lock, so of two racing
// transitions at most one succeeds.
func (s *Service) Transition(ctx context.Context, appointmentID uuid.UUID, target model.AppointmentStatus, callerID uuid.UUID) (*model.Appointment, error) {
	var apt *model.Appointment
	var from model.AppointmentStatus

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		apt, err = tx.Appointments().GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}

		actor, known := ActorFor(target)
		if !known {
			if !isParticipant(apt, callerID) {
				return apperrors.NotAuthorized("caller is not a participant of this appointment")
			}
			return apperrors.InvalidTransition(fmt.Sprintf("cannot move appointment to %s", target))
		}
		if ownerFor(apt, actor) != callerID {
			return apperrors.NotAuthorized(fmt.Sprintf("only the appointment's %s can move it to %s", actor, target))
		}
		if IsTerminal(apt.Status) {
			return apperrors.InvalidTransition(fmt.Sprintf("appointment is already %s", apt.Status))
		}
		if !CanTransition(apt.Status, target) {
			return apperrors.InvalidTransition(fmt.Sprintf("cannot move appointment from %s to %s", apt.Status, target))
		}

		from = apt.Status
		if err := tx.Appointments().UpdateStatus(ctx, apt.ID, from, target); err != nil {
			return err
		}
		apt.Status = target
		apt.UpdatedAt = time.Now().UTC()

		return s.emit(ctx, tx, model.AppointmentStatusEvent(target), apt, from, callerID)
	})

	s.metrics.Transitions.WithLabelValues(string(target), resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment transitioned",
		"appointment_id", apt.ID.String(),
		"from", string(from),
		"status", string(target),
	)
	return apt, nil
}

func (s *Service) Confirm(ctx context.Context, appointmentID, doctorID uuid.UUID) (*model.Appointment, error) {
	return s.Transition(ctx, appointmentID, model.AppointmentStatusConfirmed, doctorID)
}

func (s *Service) Reject(ctx context.Context, appointmentID, doctorID uuid.UUID) (*model.Appointment, error) {
	return s.Transition(ctx, appointmentID, model.AppointmentStatusRejected, doctorID)
}

func (s *Service) Cancel(ctx context.Context, appointmentID, patientID uuid.UUID) (*model.Appointment, error) {
	return s.Transition(ctx, appointmentID, model.AppointmentStatusCancelled, patientID)
}

func (s *Service) Complete(ctx context.Context, appointmentID, doctorID uuid.UUID) (*model.Appointment, error) {
	return s.Transition(ctx, appointmentID, model.AppointmentStatusCompleted, doctorID)
}

// GetAppointmentDetails is visible to the appointment's doctor and patient
// only.
func (s *Service) GetAppointmentDetails(ctx context.Context, appointmentID, callerID uuid.UUID) (*model.AppointmentView, error) {
	apt, err := s.store.Appointments().Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(apt, callerID) {
		return nil, apperrors.NotAuthorized("caller is not a participant of this appointment")
	}

	views, err := s.toViews(ctx, []*model.Appointment{apt})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// ListAppointments returns every appointment where forID is the doctor or
// the patient, depending on role.
func (s *Service) ListAppointments(ctx context.Context, forID uuid.UUID, role model.Role) ([]*model.AppointmentView, error) {
	var (
		apts []*model.Appointment
		err  error
	)
	switch role {
	case model.RoleDoctor:
		apts, err = s.store.Appointments().ListByDoctor(ctx, forID)
	case model.RolePatient:
		apts, err = s.store.Appointments().ListByPatient(ctx, forID)
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unknown role %q", role), nil)
	}
	if err != nil {
		return nil, err
	}
	return s.toViews(ctx, apts)
}

// ListIncoming returns the patient's confirmed, not yet completed
// appointments.
func (s *Service) ListIncoming(ctx context.Context, patientID uuid.UUID) ([]*model.AppointmentView, error) {
	apts, err := s.store.Appointments().ListByPatientAndStatus(ctx, patientID, model.AppointmentStatusConfirmed)
	if err != nil {
		return nil, err
	}
	return s.toViews(ctx, apts)
}

// LastAppointment returns the patient's latest appointment by date, then
// time. NotFound when the patient has none.
func (s *Service) LastAppointment(ctx context.Context, patientID uuid.UUID) (*model.AppointmentView, error) {
	apt, err := s.store.Appointments().LatestByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	views, err := s.toViews(ctx, []*model.Appointment{apt})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// History lists the patient's completed appointments with doctor names.
func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]*model.AppointmentView, error) {
	apts, err := s.store.Appointments().ListByPatientAndStatus(ctx, patientID, model.AppointmentStatusCompleted)
	if err != nil {
		return nil, err
	}
	return s.toViews(ctx, apts)
}

// toViews enriches appointments with display names using one batched
// identity lookup.
func (s *Service) toViews(ctx context.Context, apts []*model.Appointment) ([]*model.AppointmentView, error) {
	views := make([]*model.AppointmentView, 0, len(apts))
	if len(apts) == 0 {
		return views, nil
	}

	ids := make([]uuid.UUID, 0, len(apts)*2)
	for _, a := range apts {
		ids = append(ids, a.DoctorID, a.PatientID)
	}
	names, err := s.resolver.FindAllByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, a := range apts {
		views = append(views, model.NewAppointmentView(a,
			identity.NameOf(names, a.DoctorID, identity.UnknownDoctor),
			identity.NameOf(names, a.PatientID, ""),
		))
	}
	return views, nil
}

func (s *Service) emit(ctx context.Context, tx repository.Tx, eventType string, apt *model.Appointment, previous model.AppointmentStatus, actorID uuid.UUID) error {
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, tx, eventType, apt.ID, event.NewAppointmentPayload(apt, previous, actorID))
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.CodeOf(err).String()
}
