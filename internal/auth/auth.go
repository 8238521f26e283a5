// Package auth is the thin authentication collaborator: bcrypt credential
// checks and opaque session tokens held in a TTL cache. The websocket layer
// consumes it to produce an authenticated connection context before the core
// is invoked.
package auth

import (
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/xid"
	"golang.org/x/crypto/bcrypt"

	"github.com/roostchat/roost/internal/store"
)

var (
	// ErrInvalidCredentials covers unknown users and wrong passwords alike.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidToken covers unknown and expired tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrUserExists rejects duplicate registrations.
	ErrUserExists = errors.New("auth: user already exists")
)

// Service issues and validates session tokens.
type Service struct {
	users  store.UserStore
	tokens *ttlcache.Cache[string, string]
	ttl    time.Duration
}

// NewService builds the auth collaborator. Token lifetime is sliding: every
// successful check refreshes the TTL.
func NewService(users store.UserStore, ttl time.Duration) *Service {
	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
	)
	go cache.Start()
	return &Service{users: users, tokens: cache, ttl: ttl}
}

// Close stops the token cache's expiry loop.
func (s *Service) Close() {
	s.tokens.Stop()
}

// Register creates an account with a bcrypt-hashed password and returns the
// new user id.
func (s *Service) Register(username, displayName, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	existing, err := s.users.GetByUsername(username)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrUserExists
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if displayName == "" {
		displayName = username
	}
	user, err := s.users.Create(username, displayName, string(hashed))
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// Login verifies credentials and issues an opaque token bound to the user.
func (s *Service) Login(username, password string) (token, userID string, err error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		return "", "", err
	}
	if user == nil {
		return "", "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", "", ErrInvalidCredentials
	}
	token = xid.New().String()
	s.tokens.Set(token, user.ID, s.ttl)
	return token, user.ID, nil
}

// Verify resolves a token to its user id, refreshing the TTL on hit.
func (s *Service) Verify(token string) (string, error) {
	item := s.tokens.Get(token)
	if item == nil {
		return "", ErrInvalidToken
	}
	return item.Value(), nil
}

// Revoke drops a token, ending that login session.
func (s *Service) Revoke(token string) {
	s.tokens.Delete(token)
}
