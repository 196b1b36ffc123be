package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification failure classes. Callers use errors.Is to map these
// onto the auth error taxonomy.
var (
	// ErrTokenExpired is returned when a token's signature is good but exp has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when the string is not a parsable JWT.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenInvalid is returned for bad signatures, wrong issuer/audience, or wrong token kind.
	ErrTokenInvalid = errors.New("invalid token")
)

// AccessClaims holds JWT claims for the access token. Subject is the user id.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// RefreshClaims holds JWT claims for the refresh token. Subject is the user id;
// session binding happens through the stored hash, not through claims.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenProvider issues and validates access and refresh JWTs. Access and
// refresh tokens are signed with independent HS256 secrets and lifetimes,
// so one kind never verifies as the other.
type TokenProvider struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given secrets.
// issuer and audience are set on claims and validated on parse.
func NewTokenProvider(accessSecret, refreshSecret []byte, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		audience:      audience,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess issues a short-lived access JWT for the given user.
func (p *TokenProvider) IssueAccess(userID string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.accessSecret)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT for the given user.
func (p *TokenProvider) IssueRefresh(userID string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.refreshSecret)
	return token, expiresAt, err
}

// ParseAccess verifies an access token (signature, exp, iss, aud) and returns
// its claims. Failures are classified as ErrTokenExpired, ErrTokenMalformed,
// or ErrTokenInvalid.
func (p *TokenProvider) ParseAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := p.parse(tokenString, claims, p.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token with the refresh secret and returns
// its claims. Same failure classification as ParseAccess.
func (p *TokenProvider) ParseRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims, p.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (p *TokenProvider) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrTokenInvalid
			}
			return secret, nil
		},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return classifyJWTError(err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return ErrTokenInvalid
	}
}
