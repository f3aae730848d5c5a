package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid session token")

// Session is the caller identity handed to every component at construction,
// created at sign-in and discarded at sign-out. It replaces ambient token
// lookups scattered through call sites.
type Session struct {
	Token     string
	UserID    uint
	ExpiresAt time.Time
}

// NewSession extracts the user id and expiry from a bearer token. The token
// is parsed without signature verification; the server is the authority on
// validity, the client only needs the claims to fail fast before a call.
func NewSession(token string) (*Session, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	session := &Session{
		Token:  token,
		UserID: uint(userID),
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Valid reports whether the session can still back an authenticated call.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	if s.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(s.ExpiresAt)
}
