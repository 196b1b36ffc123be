package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"mobile-chat/server/internal/autherr"
	"mobile-chat/server/internal/security"
	sessiondomain "mobile-chat/server/internal/session/domain"
	userdomain "mobile-chat/server/internal/user/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
)

// ValidationError marks a rejected signup input; the handler maps it to 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// AuthResult holds the outcome of Signin or Refresh: the user, a fresh token
// pair, and the session handle clients use for targeted logout.
type AuthResult struct {
	User                 *userdomain.User
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
	SessionID            string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	Create(ctx context.Context, u *userdomain.User) error
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// SessionStore is the minimal session store needed by the auth service.
type SessionStore interface {
	CreateOrUpdate(ctx context.Context, userID, refreshToken string, device sessiondomain.DeviceInfo, expiresAt time.Time) (*sessiondomain.Session, error)
	ValidateRefreshToken(ctx context.Context, refreshToken, deviceID string) (*sessiondomain.Session, error)
	GetActiveSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	GetSessionByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	RevokeSession(ctx context.Context, id string, reason sessiondomain.RevokeReason) error
	RevokeAllExceptCurrent(ctx context.Context, userID, currentID string) (int64, error)
	RevokeAll(ctx context.Context, userID string, reason sessiondomain.RevokeReason) (int64, error)
}

// AuthService implements signup, signin, token refresh with rotation, and the
// logout family.
type AuthService struct {
	users    UserRepo
	sessions SessionStore
	hasher   *security.Hasher
	tokens   *security.TokenProvider
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(users UserRepo, sessions SessionStore, hasher *security.Hasher, tokens *security.TokenProvider) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
	}
}

// Signup creates a user with the given email and password. No session is
// created; the client signs in afterwards to obtain tokens.
func (s *AuthService) Signup(ctx context.Context, firstName, lastName, email, password string) (*userdomain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Signin authenticates with email/password and issues a token pair bound to
// the device. The session write is part of issuance: if it fails, no tokens
// are returned.
func (s *AuthService) Signin(ctx context.Context, email, password string, device sessiondomain.DeviceInfo) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" || device.DeviceID == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueTokens(ctx, user, device)
}

// Refresh validates and rotates a refresh token. Rejections are returned as
// *autherr.Error carrying the refresh-path taxonomy; any store failure is
// returned as-is and the caller fails closed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, deviceID string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, autherr.New(autherr.RefreshTokenMissing)
	}
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, classifyRefreshParse(err)
	}
	sess, err := s.sessions.ValidateRefreshToken(ctx, refreshToken, deviceID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, s.classifyRefreshMiss(ctx, claims.Subject, refreshToken, deviceID)
	}
	if sess.UserID != claims.Subject {
		return nil, autherr.New(autherr.RefreshTokenInvalid)
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherr.New(autherr.RefreshUnauthorized)
	}
	// Rotation: re-issue against the session's stored device metadata; the
	// upsert overwrites the same (user, device) record with the new hash, so
	// the previous raw token stops matching.
	return s.issueTokens(ctx, user, sess.DeviceInfo)
}

// classifyRefreshMiss distinguishes a token presented from the wrong device
// from one whose session is gone. The token's hash is checked against the
// user's other active sessions: a match recorded under a different device id
// is device_mismatch, anything else is session_revoked.
func (s *AuthService) classifyRefreshMiss(ctx context.Context, userID, refreshToken, deviceID string) error {
	sessions, err := s.sessions.GetActiveSessions(ctx, userID)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) && sess.DeviceInfo.DeviceID != deviceID {
			return autherr.New(autherr.DeviceMismatch)
		}
	}
	return autherr.New(autherr.SessionRevoked)
}

// Logout revokes one session when sessionID is given, or every session for
// the user when it is empty.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		_, err := s.sessions.RevokeAll(ctx, userID, sessiondomain.RevokeReasonUserLogout)
		return err
	}
	sess, err := s.sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.UserID != userID {
		return autherr.New(autherr.SessionInvalid)
	}
	return s.sessions.RevokeSession(ctx, sessionID, sessiondomain.RevokeReasonUserLogout)
}

// LogoutOthers revokes every active session for the user except the current
// one; returns the count revoked.
func (s *AuthService) LogoutOthers(ctx context.Context, userID, currentSessionID string) (int64, error) {
	sess, err := s.sessions.GetSessionByID(ctx, currentSessionID)
	if err != nil {
		return 0, err
	}
	if sess == nil || sess.UserID != userID {
		return 0, autherr.New(autherr.SessionInvalid)
	}
	return s.sessions.RevokeAllExceptCurrent(ctx, userID, currentSessionID)
}

// LogoutAll revokes every active session for the user; returns the count revoked.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	return s.sessions.RevokeAll(ctx, userID, sessiondomain.RevokeReasonUserLogoutAll)
}

// Sessions lists the user's active sessions, most recently active first.
func (s *AuthService) Sessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessions.GetActiveSessions(ctx, userID)
}

// issueTokens mints a fresh token pair and upserts the backing session. The
// session write is load-bearing: on failure no tokens reach the caller.
func (s *AuthService) issueTokens(ctx context.Context, user *userdomain.User, device sessiondomain.DeviceInfo) (*AuthResult, error) {
	accessToken, accessExp, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.CreateOrUpdate(ctx, user.ID, refreshToken, device, refreshExp)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User:                 user,
		AccessToken:          accessToken,
		RefreshToken:         refreshToken,
		AccessTokenExpiresAt: accessExp,
		SessionID:            sess.ID,
	}, nil
}

func classifyRefreshParse(err error) error {
	switch {
	case errors.Is(err, security.ErrTokenExpired):
		return autherr.New(autherr.RefreshTokenExpired)
	case errors.Is(err, security.ErrTokenMalformed):
		return autherr.New(autherr.RefreshTokenMalformed)
	default:
		return autherr.New(autherr.RefreshTokenInvalid)
	}
}

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Reason: "email is required"}
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return &ValidationError{Reason: "invalid email format"}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{Reason: "password must be at least 8 characters"}
	}
	return nil
}
