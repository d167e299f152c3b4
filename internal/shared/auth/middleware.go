package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/paramean/targeting/internal/shared/config"
	apperrors "github.com/paramean/targeting/internal/shared/errors"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

const issuer = "paramean-targeting"

// ErrNoSession is returned when the request carries no token at all.
var ErrNoSession = errors.New("no session token")

// User represents the authenticated operator from JWT claims
type User struct {
	Username  string    `json:"username"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims extends JWT claims with the session id
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// Sessions issues and verifies signed session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	cookie string
	secure bool
	now    func() time.Time
}

// NewSessions creates a session manager. secure marks the cookie Secure and
// should be set in production.
func NewSessions(cfg config.AuthConfig, secure bool) *Sessions {
	return &Sessions{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.SessionTTL,
		cookie: cfg.CookieName,
		secure: secure,
		now:    time.Now,
	}
}

// Issue signs an HS256 token for username valid for the configured TTL.
func (s *Sessions) Issue(username string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		SessionID: uuid.NewString(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expires, nil
}

// Verify parses tokenString and checks signature, algorithm and expiry.
func (s *Sessions) Verify(tokenString string) (*User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return &User{
		Username:  claims.Subject,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// FromRequest verifies the session cookie, falling back to a Bearer token.
func (s *Sessions) FromRequest(r *http.Request) (*User, error) {
	if c, err := r.Cookie(s.cookie); err == nil && c.Value != "" {
		return s.Verify(c.Value)
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, ErrNoSession
	}
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return nil, errors.New("invalid authorization header format")
	}
	return s.Verify(token)
}

// SetCookie stores token in an HttpOnly cookie expiring with the token.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware rejects requests without a valid session with 401 JSON.
func Middleware(s *Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := s.FromRequest(r)
			if err != nil {
				apperrors.WriteError(w, nil, apperrors.Unauthorized("unauthorized"))
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser extracts the user from request context
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}
