package models

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// StoredSession is a control-plane session. Its ID is the only value the client ever sees;
// the provider token stays server-side.
type StoredSession struct {
	id            string
	token         *oauth2.Token
	spotifyUserID string
	expiresAt     time.Time
	createdAt     time.Time
	updatedAt     time.Time
	deletedAt     *time.Time
}

var _ Model = (*StoredSession)(nil)

// NewStoredSession creates a session holding token that lives for ttl from now.
func NewStoredSession(token *oauth2.Token, ttl time.Duration) *StoredSession {
	now := time.Now().UTC()
	return &StoredSession{
		token:     token,
		expiresAt: now.Add(ttl),
		createdAt: now,
		updatedAt: now,
	}
}

func (s *StoredSession) ID() string               { return s.id }
func (s *StoredSession) Token() *oauth2.Token     { return s.token }
func (s *StoredSession) SpotifyUserID() string    { return s.spotifyUserID }
func (s *StoredSession) ExpiresAt() time.Time     { return s.expiresAt }
func (s *StoredSession) CreatedAt() time.Time     { return s.createdAt }
func (s *StoredSession) UpdatedAt() time.Time     { return s.updatedAt }
func (s *StoredSession) DeletedAt() *time.Time    { return s.deletedAt }
func (s *StoredSession) SetID(id string)          { s.id = id }
func (s *StoredSession) SetToken(t *oauth2.Token) { s.token = t }
func (s *StoredSession) SetSpotifyUserID(id string) {
	s.spotifyUserID = id
}
func (s *StoredSession) SetExpiresAt(t time.Time)  { s.expiresAt = t }
func (s *StoredSession) SetCreatedAt(t time.Time)  { s.createdAt = t }
func (s *StoredSession) SetUpdatedAt(t time.Time)  { s.updatedAt = t }
func (s *StoredSession) SetDeletedAt(t *time.Time) { s.deletedAt = t }

// Expired reports whether the session lifetime has elapsed at now.
func (s *StoredSession) Expired(now time.Time) bool {
	return !now.Before(s.expiresAt)
}

// ExpiresIn is the remaining lifetime in whole seconds, never negative.
func (s *StoredSession) ExpiresIn(now time.Time) int {
	remaining := s.expiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Second)
}

// Validate checks the session carries a usable provider token.
func (s *StoredSession) Validate() error {
	if s.token == nil || s.token.AccessToken == "" {
		return fmt.Errorf("session has no access token")
	}
	if s.expiresAt.IsZero() {
		return fmt.Errorf("session has no expiry")
	}
	return nil
}
