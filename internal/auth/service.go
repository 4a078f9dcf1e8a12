package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/omara/internal/model"
	"github.com/erazemk/omara/internal/ratelimit"
	"github.com/erazemk/omara/internal/store"
	"github.com/erazemk/omara/internal/validate"
)

// Event is an authentication state change.
type Event string

// Auth events.
const (
	SignedIn  Event = "SIGNED_IN"
	SignedOut Event = "SIGNED_OUT"
)

// Session is an authenticated user with their bearer token.
type Session struct {
	Token     string      `json:"token"`
	User      *model.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Listener receives auth state changes. For SignedOut the session carries
// only the user.
type Listener func(Event, *Session)

// Service is the authentication collaborator.
type Service struct {
	DB      *sql.DB
	Secret  string
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	const op = "sign up"

	email = NormalizeEmail(email)
	if err := s.precheck(op, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, newError(op, fmt.Errorf("hashing password: %w", err))
	}

	user, err := store.CreateUser(ctx, s.DB, email, string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		return nil, &Error{Op: op, Message: ErrEmailTaken.Error(), Err: ErrEmailTaken}
	}
	if err != nil {
		s.logger().Error("creating user failed", "error", err)
		return nil, newError(op, err)
	}

	s.logger().Info("user signed up", "user", user.ID)
	return s.issue(op, user)
}

// SignIn checks credentials and issues a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	const op = "sign in"

	email = NormalizeEmail(email)
	if err := s.precheck(op, email, password); err != nil {
		return nil, err
	}

	user, err := store.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		s.logger().Error("looking up user failed", "error", err)
		return nil, newError(op, err)
	}
	if user == nil {
		return nil, &Error{Op: op, Message: ErrInvalidCredentials.Error(), Err: ErrInvalidCredentials}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger().Warn("login failed", "user", user.ID)
		return nil, &Error{Op: op, Message: ErrInvalidCredentials.Error(), Err: ErrInvalidCredentials}
	}

	s.logger().Info("user logged in", "user", user.ID)
	return s.issue(op, user)
}

// SignOut revokes the token. Signing out an already revoked token succeeds.
func (s *Service) SignOut(ctx context.Context, token string) error {
	const op = "sign out"

	claims, err := ValidateToken(s.Secret, token)
	if err != nil {
		return &Error{Op: op, Message: ErrInvalidSession.Error(), Err: errors.Join(ErrInvalidSession, err)}
	}

	if err := store.RevokeToken(ctx, s.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger().Error("revoking token failed", "error", err)
		return newError(op, err)
	}

	s.logger().Info("user logged out", "user", claims.UserID)
	s.emit(SignedOut, &Session{User: &model.User{ID: claims.UserID, Email: claims.Email}})
	return nil
}

// GetSession returns the session for a bearer token. Revoked tokens and
// tokens of deleted users are rejected.
func (s *Service) GetSession(ctx context.Context, token string) (*Session, error) {
	const op = "get session"
	invalid := func(cause error) error {
		return &Error{Op: op, Message: ErrInvalidSession.Error(), Err: errors.Join(ErrInvalidSession, cause)}
	}

	claims, err := ValidateToken(s.Secret, token)
	if err != nil {
		return nil, invalid(err)
	}

	revoked, err := store.IsTokenRevoked(ctx, s.DB, claims.ID)
	if err != nil {
		return nil, newError(op, err)
	}
	if revoked {
		return nil, invalid(errors.New("token revoked"))
	}

	user, err := store.GetUser(ctx, s.DB, claims.UserID)
	if err != nil {
		return nil, newError(op, err)
	}
	if user == nil || user.DeletedAt != nil {
		return nil, invalid(errors.New("user not found"))
	}

	return &Session{
		Token:     token,
		User:      user,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// OnAuthStateChange registers l for sign-in and sign-out events and returns
// a function that unregisters it.
func (s *Service) OnAuthStateChange(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners == nil {
		s.listeners = make(map[int]Listener)
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Service) precheck(op, email, password string) error {
	if res := validate.AuthInput(email, password); !res.Valid {
		return inputError(op, res.Err().(*validate.Error))
	}

	if s.Limiter != nil && !s.Limiter.Allow(email) {
		s.logger().Warn("rate limited", "op", op)
		return &Error{
			Op:         op,
			Message:    ErrRateLimited.Error(),
			RetryAfter: s.Limiter.RetryAfter(email),
			Err:        ErrRateLimited,
		}
	}
	return nil
}

func (s *Service) issue(op string, user *model.User) (*Session, error) {
	token, claims, err := GenerateToken(s.Secret, user.ID, user.Email)
	if err != nil {
		return nil, newError(op, err)
	}

	sess := &Session{
		Token:     token,
		User:      user,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	s.emit(SignedIn, sess)
	return sess, nil
}

func (s *Service) emit(e Event, sess *Session) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(e, sess)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
