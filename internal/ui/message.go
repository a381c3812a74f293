package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rhythmiq/internal/services"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgAuthChecked MsgKind = iota
	MsgLikedFetched
	MsgPlaylistsFetched
	MsgTracksFetched
)

type authChecked struct {
	profile *services.SpotifyUser
	err     error
}

type likedFetched struct {
	offset int
	page   *services.SpotifyPaginatedTracks
	err    error
}

type playlistsFetched struct {
	playlists *services.SpotifyPlaylistList
	err       error
}

type tracksFetched struct {
	playlist services.SpotifySimplePlaylist
	page     *services.SpotifyPaginatedPlaylistTracks
	err      error
}

// authCheckedMsg is the constructor for [MsgAuthChecked]
func authCheckedMsg(profile *services.SpotifyUser, err error) Msg {
	return Msg{kind: MsgAuthChecked, data: authChecked{profile, err}}
}

// likedFetchedMsg is the constructor for [MsgLikedFetched]
func likedFetchedMsg(offset int, page *services.SpotifyPaginatedTracks, err error) Msg {
	return Msg{kind: MsgLikedFetched, data: likedFetched{offset, page, err}}
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists *services.SpotifyPlaylistList, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]
func tracksFetchedMsg(playlist services.SpotifySimplePlaylist, page *services.SpotifyPaginatedPlaylistTracks, err error) Msg {
	return Msg{kind: MsgTracksFetched, data: tracksFetched{playlist, page, err}}
}
