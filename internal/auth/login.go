// Package auth serves the operator login, logout and session status endpoints.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	session "github.com/paramean/targeting/internal/shared/auth"
	"github.com/paramean/targeting/internal/shared/config"
	"github.com/paramean/targeting/internal/shared/errors"
	"github.com/paramean/targeting/internal/shared/metrics"
	"github.com/paramean/targeting/internal/shared/middleware"
)

// DevPassword is accepted outside production when no AUTH_PASSWORD_HASH is set.
const DevPassword = "paramean-dev"

// LoginRequest is the body of POST /api/auth.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Handler provides HTTP handlers for operator authentication.
type Handler struct {
	sessions *session.Sessions
	username string
	hash     []byte
	limiter  *middleware.IPRateLimiter
	log      *zap.Logger
}

// NewHandler creates a login handler for the single configured operator.
func NewHandler(cfg config.AuthConfig, sessions *session.Sessions, production bool, log *zap.Logger) (*Handler, error) {
	log = log.Named("auth")

	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		if production {
			return nil, fmt.Errorf("AUTH_PASSWORD_HASH is required in production")
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(DevPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash dev password: %w", err)
		}
		log.Warn("AUTH_PASSWORD_HASH not set, accepting the development password",
			zap.String("username", cfg.Username))
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid AUTH_PASSWORD_HASH: %w", err)
	}

	return &Handler{
		sessions: sessions,
		username: cfg.Username,
		hash:     hash,
		limiter:  middleware.NewIPRateLimiter(cfg.LoginPerMinute, cfg.LoginPerMinute),
		log:      log,
	}, nil
}

// Routes registers the auth routes. Only login attempts are rate limited.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(h.limiter.Middleware).Post("/", h.Login)
	r.Get("/", h.Status)
	r.Delete("/", h.Logout)
	return r
}

// Login checks the credentials and sets the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, h.log, errors.BadRequest("invalid request body"))
		return
	}

	if !h.valid(req.Username, req.Password) {
		metrics.RecordLogin(false)
		h.log.Warn("login rejected", zap.String("username", req.Username), zap.String("ip", middleware.ClientIP(r)))
		errors.WriteError(w, h.log, errors.Unauthorized("Invalid credentials"))
		return
	}

	token, expires, err := h.sessions.Issue(h.username)
	if err != nil {
		errors.WriteError(w, h.log, errors.Wrap(err, "failed to issue session"))
		return
	}
	metrics.RecordLogin(true)

	h.sessions.SetCookie(w, token, expires)
	errors.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// valid always runs the bcrypt comparison so a wrong username costs the same
// as a wrong password.
func (h *Handler) valid(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(h.hash, []byte(password)) == nil
	return userOK && passOK
}

// Status reports whether the request carries a valid session.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	_, err := h.sessions.FromRequest(r)
	errors.WriteJSON(w, http.StatusOK, map[string]bool{"authenticated": err == nil})
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	errors.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
