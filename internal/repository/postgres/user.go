package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
)

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, full_name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = now()

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		user.ID,
		user.FullName,
		user.Email,
		user.Role,
		user.CreatedAt,
	)
	if err != nil {
		return mapError("user", "create", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, full_name, email, role, created_at
		FROM users
		WHERE id = ?
	`
	var user model.User
	if err := sqlx.GetContext(ctx, r.q, &user, r.rebind(query), id); err != nil {
		return nil, mapError("user", "get", err)
	}
	return &user, nil
}

// ListByIDs loads every user in ids with one query. Unknown ids are simply
// absent from the result.
func (r *userRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	users := make([]*model.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	query, args, err := sqlx.In(`
		SELECT id, full_name, email, role, created_at
		FROM users
		WHERE id IN (?)
	`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to build user lookup: %w", err)
	}

	if err := sqlx.SelectContext(ctx, r.q, &users, r.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
