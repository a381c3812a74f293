package services

import (
	"context"

	"github.com/desertthunder/rhythmiq/internal/models"
)

// PageSize is the number of items requested per page of liked songs and playlist tracks.
const PageSize = 20

// SessionCookie names the cookie carrying the session identifier.
const SessionCookie = "rhythmiq_session"

// Exchanger trades an authorization code for an established session.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*models.Session, error)
}

// API is the authenticated surface of the control plane used by the session manager and the frontends.
type API interface {
	UserProfile(ctx context.Context) (*SpotifyUser, error)
	LikedSongs(ctx context.Context, offset int) (*SpotifyPaginatedTracks, error)
	Playlists(ctx context.Context) (*SpotifyPlaylistList, error)
	PlaylistTracks(ctx context.Context, playlistID string) (*SpotifyPaginatedPlaylistTracks, error)
	Logout(ctx context.Context) error
}

var (
	_ Exchanger = (*ExchangeClient)(nil)
	_ API       = (*Client)(nil)
)
