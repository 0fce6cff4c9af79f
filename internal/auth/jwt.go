// Package auth provides token issuing, cookie-based session middleware,
// password hashing and the GitHub OAuth client for the PostVault API.
//
// SESSION MODEL:
// A login issues two signed JWTs, both stored in HttpOnly cookies:
//
//	token          access token, 15 minutes, read by RequireAuth/OptionalAuth
//	refresh_token  refresh token, 7 days, only accepted by POST /auth/refresh
//
// The same signing key also produces single-purpose tokens that travel in
// emailed links (account verification, password reset). Every token carries
// a "pur" claim naming its purpose, and Parse rejects a token presented for
// the wrong purpose. Without it, a refresh token copied out of the cookie jar
// would be accepted as an access token for a week.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userID>","pur":"access","iss":"postvault","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "postvault"

// Purpose names what a token may be used for.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
	PurposeVerify  Purpose = "verify"
	PurposeReset   Purpose = "reset"
)

// Token lifetimes per purpose.
const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
	VerifyTTL  = 24 * time.Hour
	ResetTTL   = time.Hour
)

var (
	// ErrTokenExpired is returned by Parse for a well-formed token past its exp.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid covers every other rejection: bad signature, wrong
	// issuer or algorithm, wrong purpose, missing subject.
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// TokenService signs and verifies tokens with a single HMAC secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// claims is the JWT payload.
//
// Binding is an optional opaque value the caller can tie a token to. Reset
// tokens are bound to a fingerprint of the current password hash, so the
// link stops working as soon as the password changes.
type claims struct {
	Purpose Purpose `json:"pur"`
	Binding string  `json:"bnd,omitempty"`
	jwt.RegisteredClaims
}

// Generate issues an access token for userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.Issue(userID, PurposeAccess, "", AccessTTL)
}

// GenerateWithDuration issues an access token with a custom lifetime.
// A negative duration yields an already-expired token, which tests use.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	return s.Issue(userID, PurposeAccess, "", d)
}

// Issue signs a token for userID with the given purpose, binding and lifetime.
func (s *TokenService) Issue(userID string, purpose Purpose, binding string, ttl time.Duration) (string, error) {
	now := s.now()

	c := claims{
		Purpose: purpose,
		Binding: binding,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing %s token: %w", purpose, err)
	}
	return signed, nil
}

// Validate verifies an access token and returns the user ID it was issued to.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	userID, _, err := s.Parse(tokenStr, PurposeAccess)
	return userID, err
}

// Parse verifies tokenStr and checks that it was issued for purpose.
// It returns the subject (user ID) and the binding.
//
// VALIDATION CHECKS:
//   - Signature is valid and the algorithm is HS256 (no "none" tokens)
//   - Token is not expired, and has an expiry at all
//   - Issuer is "postvault"
//   - Purpose matches the one the caller expects
func (s *TokenService) Parse(tokenStr string, purpose Purpose) (userID, binding string, err error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", ErrTokenExpired
		}
		return "", "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", "", ErrTokenInvalid
	}
	if c.Purpose != purpose {
		return "", "", fmt.Errorf("%w: %s token used as %s", ErrTokenInvalid, c.Purpose, purpose)
	}
	if c.Subject == "" {
		return "", "", fmt.Errorf("%w: no subject", ErrTokenInvalid)
	}

	return c.Subject, c.Binding, nil
}
