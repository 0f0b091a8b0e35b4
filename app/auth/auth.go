// Package auth implements login, session tracking and role-based permission
// checks. Sessions are explicit objects held in a TTL map, there is no
// ambient current-user state.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/postbureau/dispatch/app/store"
	"github.com/postbureau/dispatch/app/store/enums"
)

// ErrInvalidCredentials indicates an unknown email or a wrong password
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSuspended indicates a correct login against a suspended account
var ErrSuspended = errors.New("account suspended")

// UserStore defines the user operations the auth service needs
type UserStore interface {
	GetUserByEmail(email string) (store.User, error)
	GetUser(id string) (store.User, error)
	RecordLogin(userID, remoteAddr string) error
	SubClientRefs(ids []string) ([]store.SubClientRef, error)
}

// Session represents an authenticated user session
type Session struct {
	Token     string     `json:"-"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	Role      enums.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Service manages sessions and performs credential checks
type Service struct {
	users UserStore
	ttl   time.Duration

	mu       sync.Mutex
	sessions map[string]Session
}

// NewService creates an auth service with the given session TTL
func NewService(users UserStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{users: users, ttl: ttl, sessions: make(map[string]Session)}
}

// Authenticate verifies credentials without creating a session. Suspended
// accounts are rejected with ErrSuspended even when the password is correct;
// any other failure is reported as ErrInvalidCredentials without detail.
func (s *Service) Authenticate(email, password string) (Session, error) {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	if user.Status == enums.UserStatusSuspended {
		return Session{}, ErrSuspended
	}

	return Session{UserID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}, nil
}

// Login verifies credentials, creates a session and records the login
func (s *Service) Login(email, password, remoteAddr string) (Session, error) {
	sess, err := s.Authenticate(email, password)
	if err != nil {
		return Session{}, err
	}

	now := time.Now()
	sess.Token = uuid.NewString()
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(s.ttl)

	s.mu.Lock()
	s.purgeExpiredLocked(now)
	s.sessions[sess.Token] = sess
	s.mu.Unlock()

	if err := s.users.RecordLogin(sess.UserID, remoteAddr); err != nil {
		log.Printf("[WARN] failed to record login for %s: %v", sess.Email, err)
	}
	return sess, nil
}

// Logout removes the session for the given token, no-op for unknown tokens
func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Session returns the active session for a token, false for unknown or expired
func (s *Service) Session(token string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, false
	}
	if time.Now().After(sess.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, false
	}
	return sess, true
}

// HasPermission reports whether the session's role is at or above required.
// An empty session never has permission.
func (s *Service) HasPermission(sess Session, required enums.Role) bool {
	return sess.UserID != "" && sess.Role.Meets(required)
}

// IsAdmin is shorthand for HasPermission with the admin role
func (s *Service) IsAdmin(sess Session) bool {
	return s.HasPermission(sess, enums.RoleAdmin)
}

// AllowedSubClients resolves the session user's sub-client restrictions to
// denormalized display tuples. Computed from current store state on every
// call, so client renames are reflected immediately.
func (s *Service) AllowedSubClients(sess Session) ([]store.SubClientRef, error) {
	user, err := s.users.GetUser(sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", sess.UserID, err)
	}
	if len(user.AllowedSubClients) == 0 {
		return nil, nil
	}
	return s.users.SubClientRefs(user.AllowedSubClients)
}

// AllowedSubClientIDs returns the raw restriction list for the session user,
// empty means unrestricted
func (s *Service) AllowedSubClientIDs(sess Session) ([]string, error) {
	user, err := s.users.GetUser(sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", sess.UserID, err)
	}
	return user.AllowedSubClients, nil
}

// ActiveSessions returns the number of live sessions, used by the status endpoint
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for _, sess := range s.sessions {
		if now.Before(sess.ExpiresAt) {
			count++
		}
	}
	return count
}

// purgeExpiredLocked drops expired sessions, caller must hold the lock
func (s *Service) purgeExpiredLocked(now time.Time) {
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}
