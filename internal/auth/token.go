// Package auth issues and verifies the cookie-borne JWT credential.
// Verification is a pure function of the token and the server secret;
// it performs no I/O.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ChafterInnovations/Kutter/internal/domain"
)

const (
	tokenLifetime        = 24 * time.Hour
	verificationLifetime = 48 * time.Hour
)

var (
	ErrTokenMissing     = errors.New("credential missing")
	ErrTokenMalformed   = errors.New("credential malformed")
	ErrTokenExpired     = errors.New("credential expired")
	ErrSignatureInvalid = errors.New("credential signature invalid")
)

// Claims is the payload carried by the token cookie. Subject is the
// account email (the stable author id); Username is the display handle.
// Purpose separates session tokens from email-verification tokens so
// one can never stand in for the other.
type Claims struct {
	Username string `json:"username"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

const (
	PurposeSession      = "session"
	PurposeVerification = "verify"
)

// Authenticator signs and verifies session credentials with a shared
// HMAC secret.
type Authenticator struct {
	secret []byte
	clock  clockwork.Clock
}

func NewAuthenticator(secret string, clock clockwork.Clock) *Authenticator {
	return &Authenticator{secret: []byte(secret), clock: clock}
}

// Issue creates a signed token for the given account. The jti claim
// gives logout a handle to revoke the token before it expires.
func (a *Authenticator) Issue(email, username string) (string, error) {
	now := a.clock.Now()
	claims := &Claims{
		Username: username,
		Purpose:  PurposeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			Issuer:    "kutter",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// IssueVerification creates the token embedded in the account
// verification link.
func (a *Authenticator) IssueVerification(email string) (string, error) {
	now := a.clock.Now()
	claims := &Claims{
		Purpose: PurposeVerification,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(verificationLifetime)),
			Issuer:    "kutter",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify checks the token and returns the caller identity. The error is
// one of ErrTokenMissing, ErrTokenMalformed, ErrTokenExpired, or
// ErrSignatureInvalid.
func (a *Authenticator) Verify(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, ErrTokenMissing
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		return domain.Identity{}, mapTokenError(err)
	}
	if !token.Valid || claims.Subject == "" || claims.Purpose != PurposeSession {
		return domain.Identity{}, ErrTokenMalformed
	}

	identity := domain.Identity{
		AuthorID:   claims.Subject,
		AuthorName: claims.Username,
	}
	if claims.ExpiresAt != nil {
		identity.Expiry = claims.ExpiresAt.Time
	}
	return identity, nil
}

// VerifyClaims is Verify but keeps the raw claims, for callers that
// need the jti and expiry (logout revocation).
func (a *Authenticator) VerifyClaims(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		return nil, mapTokenError(err)
	}
	return claims, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrTokenMalformed
	}
}
