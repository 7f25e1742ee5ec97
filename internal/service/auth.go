package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/internal/repository"
	"github.com/AlejandroAndrade98/embipos/internal/session"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
	"github.com/AlejandroAndrade98/embipos/pkg/middleware"
)

// LoginInput holds the operator credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned to the terminal after a successful sign-in. The
// session id is the bearer token for every later call.
type LoginResult struct {
	SessionID string      `json:"session_id"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

// AuthService manages operator sessions.
type AuthService struct {
	api      AuthAPI
	store    repository.SessionStore
	sessions *session.Registry
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService creates a new auth service. ttl applies when the backend
// token carries no expiry.
func NewAuthService(api AuthAPI, store repository.SessionStore, sessions *session.Registry, ttl time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		api:      api,
		store:    store,
		sessions: sessions,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Login signs the operator in against the POS API and opens a terminal
// session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, apperrors.InvalidInput("email and password are required")
	}

	res, err := s.api.Login(ctx, email, in.Password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if res.Token == "" {
		return nil, apperrors.Remote(0, "login response carried no token")
	}

	now := s.now().UTC()
	expiresAt := s.expiry(res.Token, now)
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil, apperrors.Unauthorized("token already expired")
	}

	sess := &domain.OperatorSession{
		ID:           uuid.NewString(),
		Token:        res.Token,
		RefreshToken: res.RefreshToken,
		User:         res.User,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}
	if err := s.store.Save(ctx, sess, ttl); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.InfoContext(ctx, "operator signed in",
		slog.Int64("user_id", res.User.ID),
		slog.String("role", res.User.Role),
	)

	return &LoginResult{SessionID: sess.ID, ExpiresAt: expiresAt, User: res.User}, nil
}

// expiry reads the exp claim of the backend token without verifying it; the
// signature is the backend's concern. Tokens without exp get the configured
// TTL.
func (s *AuthService) expiry(token string, now time.Time) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.UTC()
	}
	return now.Add(s.ttl)
}

// Authenticate resolves a session id into request claims.
func (s *AuthService) Authenticate(ctx context.Context, sessionID string) (*middleware.Claims, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid or expired session")
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.IsExpired(s.now()) {
		return nil, apperrors.Unauthorized("invalid or expired session")
	}

	return &middleware.Claims{
		SessionID: sess.ID,
		UserID:    strconv.FormatInt(sess.User.ID, 10),
		Email:     sess.User.Email,
		Role:      sess.User.Role,
		Token:     sess.Token,
	}, nil
}

// Logout ends the session. The remote logout is best effort.
func (s *AuthService) Logout(ctx context.Context, op Operator) error {
	if err := s.api.Logout(ctx, op.Token); err != nil {
		s.logger.WarnContext(ctx, "remote logout failed", slog.String("error", err.Error()))
	}
	if err := s.store.Delete(ctx, op.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.sessions.Drop(op.SessionID)
	return nil
}

// Me returns the signed-in operator as the backend knows them.
func (s *AuthService) Me(ctx context.Context, op Operator) (*domain.User, error) {
	u, err := s.api.Me(ctx, op.Token)
	if err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return u, nil
}

// OperatorFromClaims converts request claims back into an Operator.
func OperatorFromClaims(c *middleware.Claims) (Operator, error) {
	if c == nil {
		return Operator{}, apperrors.Unauthorized("not signed in")
	}
	id, err := strconv.ParseInt(c.UserID, 10, 64)
	if err != nil {
		return Operator{}, apperrors.Unauthorized("malformed session")
	}
	return Operator{SessionID: c.SessionID, UserID: id, Role: c.Role, Token: c.Token}, nil
}
