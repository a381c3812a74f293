package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/rhythmiq/internal/models"
	"github.com/desertthunder/rhythmiq/internal/shared"
	"golang.org/x/oauth2"
)

// SessionRepository implements [models.Repository] for [models.StoredSession] persistence.
type SessionRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.StoredSession] = (*SessionRepository)(nil)

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create assigns a new v4 UUID to session and inserts it.
func (r *SessionRepository) Create(session *models.StoredSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	session.SetID(shared.GenerateID())
	token := session.Token()

	query := `
		INSERT INTO sessions (
			id, access_token, refresh_token, token_type, token_expiry,
			spotify_user_id, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		session.ID(), token.AccessToken, token.RefreshToken, tokenType(token), nullTime(token.Expiry),
		session.SpotifyUserID(), session.ExpiresAt(), session.CreatedAt(), session.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID, excluding soft-deleted sessions.
//
// Expired sessions are returned; callers decide what expiry means for them.
func (r *SessionRepository) Get(id string) (*models.StoredSession, error) {
	query := `
		SELECT id, access_token, refresh_token, token_type, token_expiry,
			spotify_user_id, expires_at, created_at, updated_at
		FROM sessions
		WHERE id = ? AND deleted_at IS NULL
	`

	var (
		sessionID   string
		token       oauth2.Token
		tokenExpiry sql.NullTime
		spotifyUser string
		expiresAt   time.Time
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := r.db.QueryRow(query, id).Scan(
		&sessionID, &token.AccessToken, &token.RefreshToken, &token.TokenType, &tokenExpiry,
		&spotifyUser, &expiresAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if tokenExpiry.Valid {
		token.Expiry = tokenExpiry.Time
	}

	session := &models.StoredSession{}
	session.SetID(sessionID)
	session.SetToken(&token)
	session.SetSpotifyUserID(spotifyUser)
	session.SetExpiresAt(expiresAt)
	session.SetCreatedAt(createdAt)
	session.SetUpdatedAt(updatedAt)

	return session, nil
}

// Update persists a refreshed provider token and the linked Spotify user.
func (r *SessionRepository) Update(session *models.StoredSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	session.SetUpdatedAt(now)
	token := session.Token()

	query := `
		UPDATE sessions
		SET access_token = ?, refresh_token = ?, token_type = ?, token_expiry = ?,
			spotify_user_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		token.AccessToken, token.RefreshToken, tokenType(token), nullTime(token.Expiry),
		session.SpotifyUserID(), now, session.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return affected(result, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, session.ID()))
}

// Delete soft-deletes a session by ID
func (r *SessionRepository) Delete(id string) error {
	query := `
		UPDATE sessions
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return affected(result, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id))
}

// DeleteExpired permanently removes sessions that expired before now or were soft-deleted.
// Returns the number of rows removed.
func (r *SessionRepository) DeleteExpired(now time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE expires_at <= ? OR deleted_at IS NOT NULL`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

func tokenType(t *oauth2.Token) string {
	if t.TokenType == "" {
		return "Bearer"
	}
	return t.TokenType
}
