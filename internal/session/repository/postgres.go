package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mobile-chat/server/internal/session/domain"
)

// PostgresRepository persists sessions in the sessions table. The partial
// unique index on (user_id, device_id) WHERE is_active backs the upsert.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, refresh_token_hash,
	device_id, device_name, device_type, os_name, os_version, app_version, ip_address, user_agent,
	expires_at, is_active, last_activity_at, revoked_at, revoked_reason, created_at, updated_at`

// UpsertActive inserts the session, or overwrites the active session for the
// same (user_id, device_id) in place: new hash, expiry, device metadata, and
// activity timestamp, same row id.
func (r *PostgresRepository) UpsertActive(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (
			id, user_id, refresh_token_hash,
			device_id, device_name, device_type, os_name, os_version, app_version, ip_address, user_agent,
			expires_at, is_active, last_activity_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13, $14, $14)
		ON CONFLICT (user_id, device_id) WHERE is_active DO UPDATE SET
			refresh_token_hash = EXCLUDED.refresh_token_hash,
			device_name        = EXCLUDED.device_name,
			device_type        = EXCLUDED.device_type,
			os_name            = EXCLUDED.os_name,
			os_version         = EXCLUDED.os_version,
			app_version        = EXCLUDED.app_version,
			ip_address         = EXCLUDED.ip_address,
			user_agent         = EXCLUDED.user_agent,
			expires_at         = EXCLUDED.expires_at,
			last_activity_at   = EXCLUDED.last_activity_at,
			updated_at         = EXCLUDED.updated_at
		RETURNING `+sessionColumns,
		s.ID, s.UserID, s.RefreshTokenHash,
		s.DeviceInfo.DeviceID, nullString(s.DeviceInfo.DeviceName), nullString(s.DeviceInfo.DeviceType),
		nullString(s.DeviceInfo.OSName), nullString(s.DeviceInfo.OSVersion), nullString(s.DeviceInfo.AppVersion),
		nullString(s.DeviceInfo.IPAddress), nullString(s.DeviceInfo.UserAgent),
		s.ExpiresAt, s.LastActivityAt, s.UpdatedAt,
	)
	return scanSession(row)
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListActiveByUser returns active, unexpired sessions for the user, most
// recently active first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND is_active AND expires_at > $2
		ORDER BY last_activity_at DESC`,
		userID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ListActiveByDevice returns active, unexpired sessions for the device id.
func (r *PostgresRepository) ListActiveByDevice(ctx context.Context, deviceID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE device_id = $1 AND is_active AND expires_at > $2
		ORDER BY last_activity_at DESC`,
		deviceID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// Revoke marks one active session revoked. Revoked rows are immutable, so
// the update is gated on is_active.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, reason domain.RevokeReason, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET is_active = FALSE, revoked_at = $2, revoked_reason = $3, updated_at = $2
		WHERE id = $1 AND is_active`,
		id, at, string(reason),
	)
	return err
}

// RevokeAllByUser revokes every active session for the user; returns the count revoked.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string, reason domain.RevokeReason, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET is_active = FALSE, revoked_at = $2, revoked_reason = $3, updated_at = $2
		WHERE user_id = $1 AND is_active`,
		userID, at, string(reason),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RevokeAllByUserExcept revokes every active session for the user other than
// keepID; returns the count revoked.
func (r *PostgresRepository) RevokeAllByUserExcept(ctx context.Context, userID, keepID string, reason domain.RevokeReason, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET is_active = FALSE, revoked_at = $3, revoked_reason = $4, updated_at = $3
		WHERE user_id = $1 AND id <> $2 AND is_active`,
		userID, keepID, at, string(reason),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateLastActivity sets the session's last-activity timestamp.
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET last_activity_at = $2, updated_at = $2 WHERE id = $1`,
		id, at,
	)
	return err
}

// DeleteExpired removes sessions past their absolute expiry.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var deviceName, deviceType, osName, osVersion, appVersion, ipAddr, ua sql.NullString
	var revokedAt sql.NullTime
	var revokedReason sql.NullString
	err := row.Scan(
		&s.ID, &s.UserID, &s.RefreshTokenHash,
		&s.DeviceInfo.DeviceID, &deviceName, &deviceType, &osName, &osVersion, &appVersion, &ipAddr, &ua,
		&s.ExpiresAt, &s.IsActive, &s.LastActivityAt, &revokedAt, &revokedReason, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.DeviceInfo.DeviceName = deviceName.String
	s.DeviceInfo.DeviceType = deviceType.String
	s.DeviceInfo.OSName = osName.String
	s.DeviceInfo.OSVersion = osVersion.String
	s.DeviceInfo.AppVersion = appVersion.String
	s.DeviceInfo.IPAddress = ipAddr.String
	s.DeviceInfo.UserAgent = ua.String
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	if revokedReason.Valid {
		s.RevokedReason = domain.RevokeReason(revokedReason.String)
	}
	return &s, nil
}

func scanSessions(rows *sql.Rows) ([]*domain.Session, error) {
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
