// Package session owns the durable per-(user, device) session records that
// back refresh-token validity. The store is the single source of truth for
// "is this refresh token still valid"; when it is unreachable the auth
// operation in progress fails closed.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mobile-chat/server/internal/security"
	"mobile-chat/server/internal/session/domain"
	"mobile-chat/server/internal/session/repository"
)

// Store implements session lifecycle over a Repository. Raw refresh tokens
// are hashed before they reach persistence and verified with a one-way
// comparison, never plaintext equality.
type Store struct {
	repo repository.Repository
	nowF func() time.Time
}

// NewStore returns a Store using repo for persistence.
func NewStore(repo repository.Repository) *Store {
	return &Store{repo: repo, nowF: func() time.Time { return time.Now().UTC() }}
}

// CreateOrUpdate upserts the session for (userID, device.DeviceID): an
// existing active session for the device is overwritten in place with the
// new token hash, expiry, and metadata; otherwise a new active session is
// inserted. Returns the stored session.
func (s *Store) CreateOrUpdate(ctx context.Context, userID, refreshToken string, device domain.DeviceInfo, expiresAt time.Time) (*domain.Session, error) {
	now := s.nowF()
	sess := &domain.Session{
		ID:               uuid.New().String(),
		UserID:           userID,
		RefreshTokenHash: security.HashRefreshToken(refreshToken),
		DeviceInfo:       device,
		ExpiresAt:        expiresAt,
		IsActive:         true,
		LastActivityAt:   now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return s.repo.UpsertActive(ctx, sess)
}

// ValidateRefreshToken scans active, unexpired sessions for deviceID and
// compares the presented token against each stored hash one-way. On a match
// it bumps LastActivityAt and returns the session; nil when nothing matches.
// The upsert invariant keeps the scanned set at 0–1 rows in practice.
func (s *Store) ValidateRefreshToken(ctx context.Context, refreshToken, deviceID string) (*domain.Session, error) {
	now := s.nowF()
	candidates, err := s.repo.ListActiveByDevice(ctx, deviceID, now)
	if err != nil {
		return nil, err
	}
	for _, sess := range candidates {
		if security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
			if err := s.repo.UpdateLastActivity(ctx, sess.ID, now); err != nil {
				return nil, err
			}
			sess.LastActivityAt = now
			return sess, nil
		}
	}
	return nil, nil
}

// GetActiveSessions returns the user's active, unexpired sessions, most
// recently active first.
func (s *Store) GetActiveSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	return s.repo.ListActiveByUser(ctx, userID, s.nowF())
}

// GetSessionByID returns the session by id, or nil if unknown. Used to
// recover device metadata when rotating tokens.
func (s *Store) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	return s.repo.GetByID(ctx, id)
}

// RevokeSession marks one session revoked with the given reason.
func (s *Store) RevokeSession(ctx context.Context, id string, reason domain.RevokeReason) error {
	return s.repo.Revoke(ctx, id, reason, s.nowF())
}

// RevokeAllExceptCurrent revokes every other active session for the user;
// returns the count revoked.
func (s *Store) RevokeAllExceptCurrent(ctx context.Context, userID, currentID string) (int64, error) {
	return s.repo.RevokeAllByUserExcept(ctx, userID, currentID, domain.RevokeReasonUserLogoutOthers, s.nowF())
}

// RevokeAll revokes every active session for the user; returns the count revoked.
func (s *Store) RevokeAll(ctx context.Context, userID string, reason domain.RevokeReason) (int64, error) {
	return s.repo.RevokeAllByUser(ctx, userID, reason, s.nowF())
}

// CleanupExpired deletes sessions past their absolute expiry. Run from a
// server-side ticker.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.nowF())
}
