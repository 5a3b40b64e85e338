package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the name of the session cookie
const CookieName = "jobportal-session"

// ErrNoSession returned when a request carries no valid session cookie
var ErrNoSession = errors.New("no session")

// Authenticator is consulted by the route guard
type Authenticator interface {
	IsAuthenticated() bool
}

// AuthenticatedUser identifies the user row a session belongs to
type AuthenticatedUser struct {
	ID       int64
	Username string
}

// IsAuthenticated returns true for users resolved from a valid session
func (u AuthenticatedUser) IsAuthenticated() bool {
	return u.ID > 0
}

type sessionClaims struct {
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies HS256-signed session cookies
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions makes Sessions signing with secret, ttl defaults to 24h
func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue sets the session cookie identifying user
func (s *Sessions) Issue(w http.ResponseWriter, r *http.Request, user AuthenticatedUser) error {
	if !user.IsAuthenticated() {
		return fmt.Errorf("can't issue session for user id %d", user.ID)
	}
	now := s.now()
	claims := sessionClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})
	return nil
}

// Clear removes the session cookie
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})
}

// Read extracts the user from the session cookie, ErrNoSession if missing, expired or forged
func (s *Sessions) Read(r *http.Request) (AuthenticatedUser, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return AuthenticatedUser{}, ErrNoSession
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return AuthenticatedUser{}, ErrNoSession
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return AuthenticatedUser{}, ErrNoSession
	}
	return AuthenticatedUser{ID: id, Username: claims.Username}, nil
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
