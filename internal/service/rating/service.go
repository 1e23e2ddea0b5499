package rating

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

// Service owns the per-doctor rating aggregate. All writes go through
// Apply, which holds the doctor's row lock from read to write.
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

// Apply folds rating into the doctor's aggregate within tx. It fails with
// NotFound, without writing, when the doctor has no profile.
func (s *Service) Apply(ctx context.Context, tx repository.Tx, doctorID uuid.UUID, rating int) (*model.DoctorRating, error) {
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, apperrors.Validation(fmt.Sprintf("rating must be between %d and %d", model.MinRating, model.MaxRating), nil)
	}

	start := time.Now()
	doctor, err := tx.Doctors().GetForUpdate(ctx, doctorID)
	s.metrics.RatingLockWait.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	next := Next(snapshot(doctor), rating)
	if err := tx.Doctors().UpdateRating(ctx, doctorID, next.Count, next.Sum, next.Average); err != nil {
		return nil, err
	}

	if s.events != nil {
		if err := s.events.Emit(ctx, tx, model.EventDoctorRatingUpdate, doctorID, event.NewRatingPayload(&next)); err != nil {
			return nil, err
		}
	}

	s.metrics.RatingsApplied.Inc()
	s.log.Debug("rating applied",
		"doctor_id", doctorID.String(),
		"rating", rating,
		"rating_count", next.Count,
		"rating_avg", next.Average.StringFixed(2),
	)
	return &next, nil
}

// ApplyRating applies a single rating in its own transaction.
func (s *Service) ApplyRating(ctx context.Context, doctorID uuid.UUID, rating int) (*model.DoctorRating, error) {
	var result *model.DoctorRating
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		result, err = s.Apply(ctx, tx, doctorID, rating)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) GetRating(ctx context.Context, doctorID uuid.UUID) (*model.DoctorRating, error) {
	doctor, err := s.store.Doctors().Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	r := snapshot(doctor)
	return &r, nil
}

// TopDoctors returns the n best doctors by Score, ties broken by id.
func (s *Service) TopDoctors(ctx context.Context, n int) ([]*model.DoctorView, error) {
	doctors, err := s.store.Doctors().TopByScore(ctx, ClampTopN(n), PriorMean, PriorWeight)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(doctors))
	for _, d := range doctors {
		ids = append(ids, d.UserID)
	}
	names, err := s.resolver.FindAllByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*model.DoctorView, 0, len(doctors))
	for _, d := range doctors {
		views = append(views, &model.DoctorView{
			ID:            d.UserID,
			FullName:      identity.NameOf(names, d.UserID, identity.UnknownDoctor),
			Speciality:    d.Speciality,
			City:          d.City,
			RatingAverage: d.RatingAverage.Round(2),
			RatingCount:   d.RatingCount,
			Score:         Score(d.RatingAverage, d.RatingCount).Round(3),
		})
	}
	return views, nil
}
