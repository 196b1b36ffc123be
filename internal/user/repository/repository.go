package repository

import (
	"context"

	"mobile-chat/server/internal/user/domain"
)

// Repository defines persistence for users. Lookup methods return (nil, nil)
// when no row matches.
type Repository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
