// Package auth signs users in and out, resolves session tokens and
// decides which views a client may navigate to.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/marky/internal/database"
	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/form"
)

const (
	// DefaultSessionTTL is used when no TTL is configured
	DefaultSessionTTL = 7 * 24 * time.Hour

	eventBuffer = 16
	timeLayout  = "2006-01-02T15:04:05.000000000Z07:00"
)

// Migrations creates the users and sessions tables.
var Migrations = []database.Migration{
	{
		Name: "001_auth",
		SQL: `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY NOT NULL,
	email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY NOT NULL,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions (expires_at);`,
	},
}

// EventType names a session change.
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
	EventExpired   EventType = "expired"
)

// SessionEvent is one entry of the session change stream.
type SessionEvent struct {
	Type    EventType      `json:"type"`
	Session domain.Session `json:"session"`
}

// Service is the auth collaborator backed by sqlite.
type Service struct {
	db       *sql.DB
	ttl      time.Duration
	now      func() time.Time
	newToken func() string
	cost     int

	mu   sync.Mutex
	subs map[chan SessionEvent]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService migrates the auth tables and returns a service.
func NewService(ctx context.Context, db *sql.DB, opts ...Option) (*Service, error) {
	if err := database.Migrate(ctx, db, Migrations); err != nil {
		return nil, err
	}

	s := &Service{
		db:       db,
		ttl:      DefaultSessionTTL,
		now:      time.Now,
		newToken: uuid.NewString,
		cost:     bcrypt.DefaultCost,
		subs:     make(map[chan SessionEvent]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (domain.Session, error) {
	email = normalizeEmail(email)
	if !form.IsValidEmail(email) {
		return domain.Session{}, &domain.AuthError{Code: domain.AuthInvalidEmail}
	}
	if len([]rune(password)) < form.MinPasswordLength {
		return domain.Session{}, &domain.AuthError{Code: domain.AuthWeakPassword}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to hash password: %w", err)
	}

	userID := uuid.NewString()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		userID, email, string(hash), s.now().UTC().Format(timeLayout))
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to create user: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Session{}, fmt.Errorf("failed to create user: %w", err)
	} else if n == 0 {
		return domain.Session{}, &domain.AuthError{Code: domain.AuthUserExists}
	}

	return s.startSession(ctx, userID, email)
}

// SignIn checks credentials and opens a session. Unknown emails and
// wrong passwords are indistinguishable.
func (s *Service) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	email = normalizeEmail(email)

	var userID, hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = ?`, email).Scan(&userID, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, &domain.AuthError{Code: domain.AuthInvalidCredentials}
		}
		return domain.Session{}, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return domain.Session{}, &domain.AuthError{Code: domain.AuthInvalidCredentials}
	}

	return s.startSession(ctx, userID, email)
}

// LookupUser returns the id of the account registered under email, for
// background jobs acting on a user's behalf.
func (s *Service) LookupUser(ctx context.Context, email string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE email = ?`, normalizeEmail(email)).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", &domain.AuthError{Code: domain.AuthUserNotFound}
		}
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	return userID, nil
}

func (s *Service) startSession(ctx context.Context, userID, email string) (domain.Session, error) {
	now := s.now().UTC()
	sess := domain.Session{
		Token:     s.newToken(),
		UserID:    userID,
		Email:     email,
		ExpiresAt: now.Add(s.ttl),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		sess.Token, sess.UserID, sess.ExpiresAt.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to create session: %w", err)
	}

	s.emit(SessionEvent{Type: EventSignedIn, Session: sess})
	return sess, nil
}

// Session resolves a token. Expired sessions are removed and reported
// as session_expired.
func (s *Service) Session(ctx context.Context, token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, &domain.AuthError{Code: domain.AuthSessionExpired}
	}

	var (
		sess      = domain.Session{Token: token}
		expiresAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT s.user_id, u.email, s.expires_at
		   FROM sessions s JOIN users u ON u.id = s.user_id
		  WHERE s.token = ?`, token).Scan(&sess.UserID, &sess.Email, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, &domain.AuthError{Code: domain.AuthSessionExpired}
		}
		return domain.Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	if sess.ExpiresAt, err = time.Parse(timeLayout, expiresAt); err != nil {
		return domain.Session{}, fmt.Errorf("failed to parse session expiry: %w", err)
	}

	if !sess.Valid(s.now()) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
			return domain.Session{}, fmt.Errorf("failed to delete expired session: %w", err)
		}
		s.emit(SessionEvent{Type: EventExpired, Session: sess})
		return domain.Session{}, &domain.AuthError{Code: domain.AuthSessionExpired}
	}
	return sess, nil
}

// SignOut ends the session. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	sess, err := s.Session(ctx, token)
	if err != nil {
		if domain.IsAuth(err) {
			return nil
		}
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.emit(SessionEvent{Type: EventSignedOut, Session: sess})
	return nil
}

// PurgeExpired deletes every expired session and emits one expired
// event for each.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now().UTC().Format(timeLayout)

	rows, err := s.db.QueryContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ? RETURNING token, user_id, expires_at`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	defer rows.Close()

	var expired []domain.Session
	for rows.Next() {
		var (
			sess      domain.Session
			expiresAt string
		)
		if err := rows.Scan(&sess.Token, &sess.UserID, &expiresAt); err != nil {
			return 0, fmt.Errorf("failed to scan purged session: %w", err)
		}
		sess.ExpiresAt, _ = time.Parse(timeLayout, expiresAt)
		expired = append(expired, sess)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate purged sessions: %w", err)
	}

	for _, sess := range expired {
		s.emit(SessionEvent{Type: EventExpired, Session: sess})
	}
	return len(expired), nil
}

// Subscribe streams session events until ctx is done. Slow readers
// miss events instead of blocking sign-ins.
func (s *Service) Subscribe(ctx context.Context) <-chan SessionEvent {
	ch := make(chan SessionEvent, eventBuffer)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

func (s *Service) emit(ev SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
