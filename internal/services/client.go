package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rhythmiq/internal/shared"
)

// Control-plane routes called by [Client].
const (
	ProfilePath        = "/api/spotify/me"
	LikedSongsPath     = "/api/spotify/liked-songs"
	PlaylistsPath      = "/api/spotify/playlists"
	LogoutPath         = "/api/spotify/logout"
	playlistTracksPath = "/api/spotify/playlists/%s/tracks"
)

type validator interface {
	validate() error
}

// Client performs authenticated calls against the control plane using the session held by a [TokenStore].
type Client struct {
	baseURL    string
	store      *TokenStore
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a [Client] reading its credential from opts.Store.
func NewClient(opts ClientOpts) *Client {
	opts = opts.normalize()
	return &Client{
		baseURL:    opts.BaseURL,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
}

// UserProfile retrieves the current user's Spotify profile.
func (c *Client) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := c.do(ctx, http.MethodGet, ProfilePath, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// LikedSongs retrieves one page of [PageSize] saved tracks starting at offset.
func (c *Client) LikedSongs(ctx context.Context, offset int) (*SpotifyPaginatedTracks, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(max(offset, 0)))

	var page SpotifyPaginatedTracks
	if err := c.do(ctx, http.MethodGet, LikedSongsPath, query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Playlists retrieves the current user's playlists.
func (c *Client) Playlists(ctx context.Context) (*SpotifyPlaylistList, error) {
	var list SpotifyPlaylistList
	if err := c.do(ctx, http.MethodGet, PlaylistsPath, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// PlaylistTracks retrieves the tracks of a playlist.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) (*SpotifyPaginatedPlaylistTracks, error) {
	var page SpotifyPaginatedPlaylistTracks
	endpoint := fmt.Sprintf(playlistTracksPath, url.PathEscape(playlistID))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Logout asks the control plane to drop the session. The local store is left to the caller.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, LogoutPath, nil, nil)
}

// do sends one request; out may be nil when no body is expected.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, out validator) error {
	session := c.store.Snapshot()
	if session.AccessToken == "" {
		return &AuthError{Kind: NoSession, Endpoint: endpoint}
	}
	if !session.IsAuthenticated {
		return &AuthError{Kind: NoSession, Endpoint: endpoint, Err: shared.ErrTokenExpired}
	}

	sessionID := session.SessionID
	if sessionID == "" {
		sessionID = session.AccessToken
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("sessionId", sessionID)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return &AuthError{Kind: RequestFailed, Endpoint: endpoint, Err: err}
	}
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sessionID})
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthError{Kind: RequestFailed, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("control plane response", "method", method, "endpoint", endpoint, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &AuthError{Kind: RequestFailed, Endpoint: endpoint, Status: resp.StatusCode}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &AuthError{Kind: MalformedResponse, Endpoint: endpoint, Status: resp.StatusCode, Err: err}
	}
	if err := out.validate(); err != nil {
		return &AuthError{Kind: MalformedResponse, Endpoint: endpoint, Status: resp.StatusCode, Err: err}
	}
	return nil
}
