// Package identity resolves user ids to display names. It is a read-only
// collaborator: it never decides authorization.
package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/internal/repository"
)

const UnknownDoctor = "Unknown Doctor"

type Resolver interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// FindAllByID returns the users it could resolve, keyed by id. Missing
	// ids are absent rather than an error.
	FindAllByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.User, error)
}

type repositoryResolver struct {
	users repository.UserRepository
}

func NewResolver(users repository.UserRepository) Resolver {
	return &repositoryResolver{users: users}
}

func (r *repositoryResolver) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.users.Get(ctx, id)
}

func (r *repositoryResolver) FindAllByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.User, error) {
	users, err := r.users.ListByIDs(ctx, Unique(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve users: %w", err)
	}

	result := make(map[uuid.UUID]*model.User, len(users))
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// Unique drops duplicate and nil ids, keeping first-seen order.
func Unique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// NameOf returns the user's full name, or fallback when it was not resolved.
func NameOf(users map[uuid.UUID]*model.User, id uuid.UUID, fallback string) string {
	if u, ok := users[id]; ok && u.FullName != "" {
		return u.FullName
	}
	return fallback
}
