package review

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/internal/repository"
	"github.com/jwalitptl/doctorconnect-api/internal/service/event"
	"github.com/jwalitptl/doctorconnect-api/internal/service/identity"
	apperrors "github.com/jwalitptl/doctorconnect-api/pkg/errors"
	"github.com/jwalitptl/doctorconnect-api/pkg/logger"
	"github.com/jwalitptl/doctorconnect-api/pkg/metrics"
)

const MaxCommentLength = 2000

// RatingApplier folds a rating into a doctor's aggregate inside an open
// transaction.
type RatingApplier interface {
	Apply(ctx context.Context, tx repository.Tx, doctorID uuid.UUID, rating int) (*model.DoctorRating, error)
}

type Service struct {
	store    repository.Store
	ratings  RatingApplier
	resolver identity.Resolver
	events   event.Emitter
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewService(store repository.Store, ratings RatingApplier, resolver identity.Resolver, events event.Emitter, m *metrics.Metrics, log *logger.Logger) *Service {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    store,
		ratings:  ratings,
		resolver: resolver,
		events:   events,
		metrics:  m,
		log:      log,
	}
}

func validate(rating int, comment string) error {
	if rating < model.MinRating || rating > model.MaxRating {
		return apperrors.Validation(fmt.Sprintf("rating must be between %d and %d", model.MinRating, model.MaxRating), nil)
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return apperrors.Validation(fmt.Sprintf("comment must be at most %d characters", MaxCommentLength), nil)
	}
	return nil
}

// SubmitReview records the patient's review of a completed appointment and
// applies its rating to the doctor. The review, the aggregate update and
// their events commit together or not at all.
func (s *Service) SubmitReview(ctx context.Context, appointmentID uuid.UUID, rating int, comment string, callerID uuid.UUID) (*model.ReviewView, error) {
	review, err := s.submit(ctx, appointmentID, rating, strings.TrimSpace(comment), callerID)
	s.metrics.ReviewsSubmitted.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.log.Info("review submitted",
		"review_id", review.ID.String(),
		"appointment_id", appointmentID.String(),
		"doctor_id", review.DoctorID.String(),
		"rating", rating,
	)

	views, err := s.toViews(ctx, []*model.Review{review})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *Service) submit(ctx context.Context, appointmentID uuid.UUID, rating int, comment string, callerID uuid.UUID) (*model.Review, error) {
	if err := validate(rating, comment); err != nil {
		return nil, err
	}

	var review *model.Review
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		apt, err := tx.Appointments().GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if apt.PatientID != callerID {
			return apperrors.NotAuthorized("only the appointment's patient can review it")
		}
		if apt.Status != model.AppointmentStatusCompleted {
			return apperrors.InvalidTransition(fmt.Sprintf("cannot review an appointment in status %s", apt.Status))
		}

		exists, err := tx.Reviews().ExistsForAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.Conflict("appointment already reviewed", nil)
		}

		review = &model.Review{
			AppointmentID: apt.ID,
			PatientID:     apt.PatientID,
			DoctorID:      apt.DoctorID,
			Rating:        rating,
			Comment:       comment,
		}
		if err := tx.Reviews().Create(ctx, review); err != nil {
			return err
		}

		if _, err := s.ratings.Apply(ctx, tx, apt.DoctorID, rating); err != nil {
			return fmt.Errorf("failed to apply rating: %w", err)
		}

		if s.events != nil {
			return s.events.Emit(ctx, tx, model.EventReviewSubmitted, review.ID, event.NewReviewPayload(review))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ListReviews returns a doctor's reviews, newest first.
func (s *Service) ListReviews(ctx context.Context, doctorID uuid.UUID) ([]*model.ReviewView, error) {
	reviews, err := s.store.Reviews().ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return s.toViews(ctx, reviews)
}

func (s *Service) toViews(ctx context.Context, reviews []*model.Review) ([]*model.ReviewView, error) {
	views := make([]*model.ReviewView, 0, len(reviews))
	if len(reviews) == 0 {
		return views, nil
	}

	ids := make([]uuid.UUID, 0, len(reviews)*2)
	for _, r := range reviews {
		ids = append(ids, r.PatientID, r.DoctorID)
	}
	names, err := s.resolver.FindAllByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, r := range reviews {
		views = append(views, model.NewReviewView(r,
			identity.NameOf(names, r.PatientID, ""),
			identity.NameOf(names, r.DoctorID, identity.UnknownDoctor),
		))
	}
	return views, nil
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.CodeOf(err).String()
}
