// Package auth issues and verifies session tokens, hashes passwords, and
// guards protected routes.
//
// SESSION TOKENS:
// A session token is an HS256-signed JWT. It is self-contained: verifying
// it needs only the signing secret, never a database lookup, and the
// server keeps no session table. The flip side is that "logout" is the
// client throwing its copy away; a leaked token stays valid until it
// expires.
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userID>","username":"alice","iss":"glicoflow","iat":...,"exp":...,"jti":"..."}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sakif/glicoflow/internal/model"
)

const issuer = "glicoflow"

// DefaultTokenTTL matches the seven-day lifetime the web client was built around.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned by Verify for every kind of rejection:
// bad signature, wrong algorithm, malformed payload, expiry.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService is the Session Issuer. It holds the HMAC secret, which is
// set once at construction and never changes.
type TokenService struct {
	secret []byte
	ttl    time.Duration // 0 = tokens never expire
	now    func() time.Time
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; use e.g. JWT_SECRET=$(openssl rand -hex 32).
//
// A ttl of zero issues tokens without an "exp" claim.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl < 0 {
		return nil, errors.New("auth: token TTL must not be negative")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// claims is the JWT payload. "sub" carries the user id; the username rides
// along so the middleware can build a full Identity without a lookup.
type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issue signs a token asserting the given identity.
func (s *TokenService) Issue(userID, username string) (string, error) {
	return s.issue(userID, username, s.ttl)
}

// issue is Issue with an explicit ttl. A negative ttl mints an
// already-expired token, which the tests rely on.
func (s *TokenService) issue(userID, username string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue token without a user id")
	}

	now := s.now()
	c := claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
	}
	if ttl != 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the identity it asserts.
//
// The jwt library checks the signature (constant-time HMAC compare),
// expiry, and issuer. WithValidMethods pins HS256 so a token claiming
// "alg":"none" or an RSA algorithm is rejected before the key is used.
func (s *TokenService) Verify(tokenStr string) (model.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.ttl != 0 {
		opts = append(opts, jwt.WithExpirationRequired())
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Identity{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return model.Identity{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	return model.Identity{UserID: c.Subject, Username: c.Username}, nil
}
