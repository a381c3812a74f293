package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rhythmiq/internal/models"
	"github.com/desertthunder/rhythmiq/internal/repositories"
	"github.com/desertthunder/rhythmiq/internal/services"
	"github.com/desertthunder/rhythmiq/internal/shared"
	"golang.org/x/oauth2"
)

// SessionStore persists provider tokens keyed by session id.
type SessionStore interface {
	Create(session *models.StoredSession) error
	Get(id string) (*models.StoredSession, error)
	Update(session *models.StoredSession) error
	Delete(id string) error
	DeleteExpired(now time.Time) (int64, error)
}

// ControlPlaneOpts configures a [ControlPlane].
type ControlPlaneOpts struct {
	Sessions      SessionStore
	Provider      *services.SpotifyProvider
	SessionTTL    time.Duration
	AllowedOrigin string
	CookieSecure  bool
	Logger        *log.Logger
	Now           func() time.Time
}

// ControlPlane is the backend holding the client secret. Clients only ever see an opaque session id.
type ControlPlane struct {
	sessions      SessionStore
	provider      *services.SpotifyProvider
	ttl           time.Duration
	allowedOrigin string
	cookieSecure  bool
	logger        *log.Logger
	now           func() time.Time
}

// NewControlPlane creates a [ControlPlane].
func NewControlPlane(opts ControlPlaneOpts) *ControlPlane {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ControlPlane{
		sessions:      opts.Sessions,
		provider:      opts.Provider,
		ttl:           opts.SessionTTL,
		allowedOrigin: opts.AllowedOrigin,
		cookieSecure:  opts.CookieSecure,
		logger:        opts.Logger,
		now:           opts.Now,
	}
}

// OpenControlPlane validates config, opens the session database and wires the Spotify provider.
// The returned func closes the database.
func OpenControlPlane(config *shared.Config, httpClient *http.Client, logger *log.Logger) (*ControlPlane, func() error, error) {
	if err := config.ValidateServer(); err != nil {
		return nil, nil, err
	}
	ttl, err := config.Server.TTL()
	if err != nil {
		return nil, nil, err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session database: %w", err)
	}

	creds := config.Credentials.Spotify
	provider, err := services.NewSpotifyProvider(services.ProviderOpts{
		ClientID:          creds.ClientID,
		ClientSecret:      creds.ClientSecret,
		RedirectURI:       creds.RedirectURI,
		APIURL:            config.Spotify.APIURL,
		RequestsPerSecond: config.Spotify.RequestsPerSecond,
		HTTPClient:        httpClient,
		Logger:            shared.WithLogger(logger, "component", "spotify"),
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	cp := NewControlPlane(ControlPlaneOpts{
		Sessions:      repositories.NewSessionRepository(db),
		Provider:      provider,
		SessionTTL:    ttl,
		AllowedOrigin: config.Server.AllowedOrigin,
		CookieSecure:  config.Server.CookieSecure,
		Logger:        shared.WithLogger(logger, "component", "control-plane"),
	})
	return cp, db.Close, nil
}

// Handler returns the complete control-plane HTTP handler with CORS, logging and panic recovery.
func (cp *ControlPlane) Handler() http.Handler {
	router := NewBasicRouter()
	cp.Mount(router)
	return Chain(router, Recover(cp.logger), Logging(cp.logger), CORS(cp.allowedOrigin))
}

// Mount registers the control-plane routes on r.
func (cp *ControlPlane) Mount(r Router) {
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(cp.health))
	r.Handle(http.MethodPost, services.TokenPath, http.HandlerFunc(cp.token))
	r.Handle(http.MethodPost, services.LogoutPath, http.HandlerFunc(cp.logout))
	r.Handle(http.MethodGet, services.ProfilePath, cp.authenticated(cp.profile))
	r.Handle(http.MethodGet, services.LikedSongsPath, cp.authenticated(cp.likedSongs))
	r.Handle(http.MethodGet, services.PlaylistsPath, cp.authenticated(cp.playlists))
	r.Handle(http.MethodGet, services.PlaylistsPath+"/{id}/tracks", cp.authenticated(cp.playlistTracks))
}

// PurgeExpired removes expired and deleted sessions every interval until ctx is done.
func (cp *ControlPlane) PurgeExpired(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := cp.sessions.DeleteExpired(cp.now())
			if err != nil {
				cp.logger.Error("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				cp.logger.Info("purged sessions", "count", n)
			}
		}
	}
}

func (cp *ControlPlane) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (cp *ControlPlane) token(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Code == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	token, err := cp.provider.Exchange(r.Context(), body.Code)
	if err != nil {
		cp.logger.Warn("code exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to exchange code for token")
		return
	}

	stored := models.NewStoredSession(token, cp.ttl)
	if err := cp.sessions.Create(stored); err != nil {
		cp.logger.Error("failed to store session", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	expiresIn := stored.ExpiresIn(stored.CreatedAt())
	http.SetCookie(w, cp.cookie(stored.ID(), expiresIn))
	cp.logger.Info("session created", "session", shortID(stored.ID()))

	writeJSON(w, http.StatusOK, services.TokenResponse{SessionID: stored.ID(), ExpiresIn: expiresIn})
}

func (cp *ControlPlane) logout(w http.ResponseWriter, r *http.Request) {
	if id := sessionID(r); id != "" {
		if err := cp.sessions.Delete(id); err != nil && !errors.Is(err, shared.ErrSessionNotFound) {
			cp.logger.Error("failed to delete session", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to delete session")
			return
		}
		cp.logger.Info("session deleted", "session", shortID(id))
	}

	http.SetCookie(w, cp.cookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

func (cp *ControlPlane) profile(w http.ResponseWriter, r *http.Request, stored *models.StoredSession, client *services.SpotifyUserClient) {
	user, err := client.UserProfile(r.Context())
	if err != nil {
		cp.upstreamError(w, err)
		return
	}

	if stored.SpotifyUserID() != user.ID {
		stored.SetSpotifyUserID(user.ID)
		if err := cp.sessions.Update(stored); err != nil {
			cp.logger.Warn("failed to link spotify user", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, user)
}

func (cp *ControlPlane) likedSongs(w http.ResponseWriter, r *http.Request, _ *models.StoredSession, client *services.SpotifyUserClient) {
	offset, ok := offsetParam(w, r)
	if !ok {
		return
	}

	page, err := client.SavedTracks(r.Context(), services.PageSize, offset)
	if err != nil {
		cp.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (cp *ControlPlane) playlists(w http.ResponseWriter, r *http.Request, _ *models.StoredSession, client *services.SpotifyUserClient) {
	list, err := client.Playlists(r.Context())
	if err != nil {
		cp.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (cp *ControlPlane) playlistTracks(w http.ResponseWriter, r *http.Request, _ *models.StoredSession, client *services.SpotifyUserClient) {
	offset, ok := offsetParam(w, r)
	if !ok {
		return
	}

	page, err := client.PlaylistTracks(r.Context(), r.PathValue("id"), services.PageSize, offset)
	if err != nil {
		cp.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type sessionHandler func(http.ResponseWriter, *http.Request, *models.StoredSession, *services.SpotifyUserClient)

// authenticated resolves the session and builds a provider client whose refreshed tokens are written back.
func (cp *ControlPlane) authenticated(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sessionID(r)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "Missing session ID")
			return
		}

		stored, err := cp.sessions.Get(id)
		if errors.Is(err, shared.ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid session")
			return
		}
		if err != nil {
			cp.logger.Error("failed to load session", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load session")
			return
		}

		if stored.Expired(cp.now()) {
			if err := cp.sessions.Delete(id); err != nil {
				cp.logger.Warn("failed to delete expired session", "error", err)
			}
			writeError(w, http.StatusUnauthorized, "Session expired")
			return
		}

		client := cp.provider.ForToken(r.Context(), stored.Token(), func(token *oauth2.Token) {
			if token.RefreshToken == "" {
				token.RefreshToken = stored.Token().RefreshToken
			}
			stored.SetToken(token)
			if err := cp.sessions.Update(stored); err != nil {
				cp.logger.Warn("failed to persist refreshed token", "error", err)
				return
			}
			cp.logger.Debug("provider token refreshed", "session", shortID(stored.ID()))
		})

		next(w, r, stored, client)
	})
}

func (cp *ControlPlane) upstreamError(w http.ResponseWriter, err error) {
	var upstream *services.UpstreamError
	if errors.As(err, &upstream) {
		cp.logger.Warn("spotify request failed", "endpoint", upstream.Endpoint, "status", upstream.Status)
		if upstream.Status >= 400 && upstream.Status < 500 {
			writeError(w, upstream.Status, http.StatusText(upstream.Status))
			return
		}
		writeError(w, http.StatusBadGateway, "Spotify request failed")
		return
	}

	if errors.Is(err, shared.ErrMissingArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cp.logger.Error("spotify request failed", "error", err)
	writeError(w, http.StatusBadGateway, "Spotify request failed")
}

func (cp *ControlPlane) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     services.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cp.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if cp.cookieSecure && cp.allowedOrigin != "" {
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// sessionID resolves the session from the cookie, the sessionId query parameter, then a bearer token.
func sessionID(r *http.Request) string {
	if c, err := r.Cookie(services.SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if id := r.URL.Query().Get("sessionId"); id != "" {
		return id
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func offsetParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("offset")
	if raw == "" {
		return 0, true
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "Invalid offset")
		return 0, false
	}
	return offset, true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
