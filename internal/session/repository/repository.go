package repository

import (
	"context"
	"time"

	"mobile-chat/server/internal/session/domain"
)

// Repository defines persistence for sessions. Counts returned by the
// revoke-many operations are rows actually transitioned to revoked.
type Repository interface {
	// UpsertActive inserts an active session, or overwrites the existing
	// active session for the same (userID, deviceID) in place. Returns the
	// stored row.
	UpsertActive(ctx context.Context, s *domain.Session) (*domain.Session, error)
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// ListActiveByUser returns active, unexpired sessions for the user,
	// most recently active first.
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
	// ListActiveByDevice returns active, unexpired sessions whose device id
	// matches. Normally 0–1 rows given the upsert invariant.
	ListActiveByDevice(ctx context.Context, deviceID string, now time.Time) ([]*domain.Session, error)
	Revoke(ctx context.Context, id string, reason domain.RevokeReason, at time.Time) error
	RevokeAllByUser(ctx context.Context, userID string, reason domain.RevokeReason, at time.Time) (int64, error)
	RevokeAllByUserExcept(ctx context.Context, userID, keepID string, reason domain.RevokeReason, at time.Time) (int64, error)
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
	// DeleteExpired removes sessions past their absolute expiry regardless
	// of active state. Returns the number of rows deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
