package postgres

import (
	"context"
	"errors"

	"attachly/internal/apperr"
	"attachly/internal/domain/user"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type userRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*user.User, error) {
	var u user.User
	err := r.db.QueryRow(ctx, `
		SELECT id, email, name, COALESCE(phone, ''), created_at
		FROM users
		WHERE api_token_hash = $1`, tokenHash,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindAuth, "invalid token")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
