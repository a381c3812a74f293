// Spotify Web API types and the server-side [SpotifyProvider].
//
// Response types are based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rhythmiq/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	playlistPageSize = 50
)

// Scopes requested during authorization.
var Scopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-read-private",
	"playlist-read-collaborative",
	"user-library-read",
}

// Endpoint is the Spotify accounts service.
var Endpoint = oauth2.Endpoint{
	AuthURL:   spotifyAuthURL,
	TokenURL:  spotifyTokenURL,
	AuthStyle: oauth2.AuthStyleInHeader,
}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country,omitempty"`
	Product     string         `json:"product,omitempty"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

func (u *SpotifyUser) validate() error {
	if u.ID == "" {
		return fmt.Errorf("%w: profile without id", shared.ErrMalformedResponse)
	}
	return nil
}

// Name returns the display name, falling back to the user id.
func (u *SpotifyUser) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc,omitempty"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	Explicit    bool            `json:"explicit"`
	ExternalIDs externalIDs     `json:"external_ids"`
	URI         string          `json:"uri"`
}

// ArtistNames joins the track's artist names.
func (t SpotifyTrack) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// Duration converts DurationMS.
func (t SpotifyTrack) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

func (p *SpotifyPaginatedTracks) validate() error {
	if p.Items == nil {
		return fmt.Errorf("%w: page without items", shared.ErrMalformedResponse)
	}
	return nil
}

// HasMore reports whether another page may follow: a full page of [PageSize] items was returned.
func (p *SpotifyPaginatedTracks) HasMore() bool {
	return len(p.Items) >= PageSize
}

// NextOffset is the offset of the page following this one.
func (p *SpotifyPaginatedTracks) NextOffset() int {
	return p.Offset + len(p.Items)
}

// SpotifyPaginatedPlaylistTracks represents a paginated response of playlist tracks.
type SpotifyPaginatedPlaylistTracks struct {
	Items    []SpotifyPlaylistTrack `json:"items"`
	Total    int                    `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
	Next     *string                `json:"next"`
	Previous *string                `json:"previous"`
}

func (p *SpotifyPaginatedPlaylistTracks) validate() error {
	if p.Items == nil {
		return fmt.Errorf("%w: page without items", shared.ErrMalformedResponse)
	}
	return nil
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifySimplePlaylist `json:"items"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
}

// SpotifyPlaylistList is every playlist of the current user.
type SpotifyPlaylistList struct {
	Items []SpotifySimplePlaylist `json:"items"`
	Total int                     `json:"total"`
}

func (l *SpotifyPlaylistList) validate() error {
	if l.Items == nil {
		return fmt.Errorf("%w: playlist list without items", shared.ErrMalformedResponse)
	}
	return nil
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	Images      []SpotifyImage      `json:"images"`
	URI         string              `json:"uri"`
}

// TrackCount returns the number of tracks reported for the playlist.
func (p SpotifySimplePlaylist) TrackCount() int {
	return p.Tracks.Total
}

// TokenRefreshFunc receives a provider token whenever the token source produces a new one.
type TokenRefreshFunc func(*oauth2.Token)

// ProviderOpts configures a [SpotifyProvider].
//
// Empty URLs fall back to the public Spotify endpoints.
type ProviderOpts struct {
	ClientID          string
	ClientSecret      string
	RedirectURI       string
	APIURL            string
	AuthURL           string
	TokenURL          string
	RequestsPerSecond float64 // <= 0 disables limiting
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// SpotifyProvider holds the client secret and performs every call to Spotify on behalf of stored sessions.
type SpotifyProvider struct {
	config     *oauth2.Config
	apiURL     string
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *log.Logger
}

// NewSpotifyProvider creates a [SpotifyProvider] from opts.
func NewSpotifyProvider(opts ProviderOpts) (*SpotifyProvider, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	endpoint := Endpoint
	if opts.AuthURL != "" {
		endpoint.AuthURL = opts.AuthURL
	}
	if opts.TokenURL != "" {
		endpoint.TokenURL = opts.TokenURL
	}

	apiURL := strings.TrimSuffix(opts.APIURL, "/")
	if apiURL == "" {
		apiURL = spotifyBaseURL
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &SpotifyProvider{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       Scopes,
			Endpoint:     endpoint,
		},
		apiURL:     apiURL,
		limiter:    rate.NewLimiter(limit, 1),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Exchange trades an authorization code for a provider token using the client secret.
func (p *SpotifyProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, shared.ErrNoAuthorizationCode
	}
	token, err := p.config.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
	}
	return token, nil
}

// ForToken returns a client authorized by token. onRefresh, when non-nil, observes every new token.
func (p *SpotifyProvider) ForToken(ctx context.Context, token *oauth2.Token, onRefresh TokenRefreshFunc) *SpotifyUserClient {
	ctx = p.clientContext(ctx)
	source := &refreshableTokenSource{
		source:   p.config.TokenSource(ctx, token),
		callback: onRefresh,
		last:     token.AccessToken,
	}
	return &SpotifyUserClient{
		provider:   p,
		httpClient: oauth2.NewClient(ctx, source),
	}
}

func (p *SpotifyProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// SpotifyUserClient performs Web API calls for a single user token.
type SpotifyUserClient struct {
	provider   *SpotifyProvider
	httpClient *http.Client
}

// UserProfile retrieves the current user's profile.
func (c *SpotifyUserClient) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := c.get(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SavedTracks retrieves one page of the user's saved tracks.
func (c *SpotifyUserClient) SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error) {
	var page SpotifyPaginatedTracks
	if err := c.get(ctx, "/me/tracks", pageQuery(limit, offset), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Playlists retrieves every playlist of the user, following pagination.
func (c *SpotifyUserClient) Playlists(ctx context.Context) (*SpotifyPlaylistList, error) {
	list := &SpotifyPlaylistList{Items: []SpotifySimplePlaylist{}}
	offset := 0

	for {
		var page SpotifyPaginatedPlaylists
		if err := c.get(ctx, "/me/playlists", pageQuery(playlistPageSize, offset), &page); err != nil {
			return nil, err
		}

		list.Items = append(list.Items, page.Items...)
		list.Total = page.Total

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	return list, nil
}

// PlaylistTracks retrieves one page of a playlist's tracks.
func (c *SpotifyUserClient) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPaginatedPlaylistTracks, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	var page SpotifyPaginatedPlaylistTracks
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	if err := c.get(ctx, endpoint, pageQuery(limit, offset), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *SpotifyUserClient) get(ctx context.Context, endpoint string, query url.Values, result any) error {
	p := c.provider
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	apiURL := p.apiURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return &UpstreamError{Endpoint: endpoint, Status: http.StatusUnauthorized}
		}
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	p.logger.Debug("spotify response", "endpoint", endpoint, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}
	return nil
}

func pageQuery(limit, offset int) url.Values {
	if limit <= 0 {
		limit = PageSize
	}
	if limit > 50 {
		limit = 50
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(max(offset, 0)))
	return query
}

// refreshableTokenSource reports tokens that differ from the last one seen.
type refreshableTokenSource struct {
	mu       sync.Mutex
	source   oauth2.TokenSource
	callback TokenRefreshFunc
	last     string
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if s.callback != nil {
			s.callback(token)
		}
	}
	return token, nil
}
