package services

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rhythmiq/internal/models"
)

// PersistFunc stores a snapshot of the session whenever the [TokenStore] changes.
type PersistFunc func(models.Session) error

// TokenStoreOpts configures a [TokenStore].
type TokenStoreOpts struct {
	Now     func() time.Time // defaults to time.Now
	Persist PersistFunc      // optional
	Logger  *log.Logger      // defaults to log.Default()
	Initial models.Session   // previously persisted session to restore
}

// TokenStore holds the current credential and its absolute expiry.
//
// The zero value is not usable; create one with [NewTokenStore].
type TokenStore struct {
	mu        sync.RWMutex
	token     string
	expiry    time.Time
	sessionID string
	now       func() time.Time
	persist   PersistFunc
	logger    *log.Logger
}

// NewTokenStore creates a store, restoring opts.Initial when it is present.
func NewTokenStore(opts TokenStoreOpts) *TokenStore {
	s := &TokenStore{
		now:     opts.Now,
		persist: opts.Persist,
		logger:  opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = log.Default()
	}

	if opts.Initial.Present() {
		s.sessionID = opts.Initial.SessionID
		s.token = opts.Initial.AccessToken
		if s.token == "" {
			s.token = opts.Initial.SessionID
		}
		s.expiry = opts.Initial.TokenExpiry
	}
	return s
}

// SetToken records token with an expiry expiresIn seconds from now.
func (s *TokenStore) SetToken(token string, expiresIn int) {
	s.mu.Lock()
	s.token = token
	s.expiry = s.now().Add(time.Duration(expiresIn) * time.Second)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.save(snapshot)
}

// Establish records a control-plane session. The identifier is the credential presented on every call.
func (s *TokenStore) Establish(sessionID string, expiresIn int) {
	s.mu.Lock()
	s.sessionID = sessionID
	s.token = sessionID
	s.expiry = s.now().Add(time.Duration(expiresIn) * time.Second)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.save(snapshot)
}

// AccessToken returns the current credential, empty when none is held.
func (s *TokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SessionID returns the control-plane session identifier, empty when none is held.
func (s *TokenStore) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Expiry returns the absolute expiry of the current credential.
func (s *TokenStore) Expiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}

// IsExpired reports true when no token is held or now >= expiry.
func (s *TokenStore) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiredLocked()
}

// Clear empties the store.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	s.token = ""
	s.sessionID = ""
	s.expiry = time.Time{}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.save(snapshot)
}

// Snapshot returns the current state as a [models.Session].
func (s *TokenStore) Snapshot() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *TokenStore) expiredLocked() bool {
	return s.token == "" || !s.now().Before(s.expiry)
}

func (s *TokenStore) snapshotLocked() models.Session {
	return models.Session{
		AccessToken:     s.token,
		TokenExpiry:     s.expiry,
		SessionID:       s.sessionID,
		IsAuthenticated: !s.expiredLocked(),
	}
}

func (s *TokenStore) save(snapshot models.Session) {
	if s.persist == nil {
		return
	}
	if err := s.persist(snapshot); err != nil {
		s.logger.Warn("failed to persist session", "error", err)
	}
}
