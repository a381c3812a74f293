package ui

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rhythmiq/internal/services"
	"github.com/desertthunder/rhythmiq/internal/session"
	"github.com/desertthunder/rhythmiq/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	LoginView
	LikedView
	PlaylistListView
	TrackListView
)

// Guard is the session state consulted before any protected content is fetched.
type Guard interface {
	RequireAuth(ctx context.Context) error
	State() session.Snapshot
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	view   ViewState
	guard  Guard
	api    services.API
	width  int
	height int

	profile *services.SpotifyUser

	likedList   list.Model
	likedTotal  int
	likedLoaded bool
	hasMore     bool
	nextOffset  int
	pending     int // offset of the in-flight liked songs request, -1 when idle

	playlistList   list.Model
	playlistsReady bool
	trackList      list.Model

	status string
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a dashboard model. Nothing is fetched until [Model.Init] passes the guard.
func NewModel(ctx context.Context, guard Guard, api services.API) *Model {
	return &Model{
		ctx:          ctx,
		view:         LoadingView,
		guard:        guard,
		api:          api,
		pending:      -1,
		likedList:    newList("Liked Songs"),
		playlistList: newList("Playlists"),
		trackList:    newList("Tracks"),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	return l
}

// Init resolves the route guard.
func (m *Model) Init() tea.Cmd {
	return m.checkAuth()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgAuthChecked:
		data := msg.data.(authChecked)
		if data.err != nil {
			m.view = LoginView
			m.err = data.err
			return m, nil
		}
		m.profile = data.profile
		m.view = LikedView
		return m, m.loadMore()

	case MsgLikedFetched:
		data := msg.data.(likedFetched)
		if data.offset != m.pending {
			return m, nil
		}
		m.pending = -1
		if data.err != nil {
			return m, m.fail(data.err)
		}
		m.appendLiked(data.page)
		return m, nil

	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			return m, m.fail(data.err)
		}
		items := make([]list.Item, 0, len(data.playlists.Items))
		for _, p := range data.playlists.Items {
			items = append(items, playlistItem{playlist: p})
		}
		m.playlistsReady = true
		m.status = ""
		return m, m.playlistList.SetItems(items)

	case MsgTracksFetched:
		data := msg.data.(tracksFetched)
		if data.err != nil {
			return m, m.fail(data.err)
		}
		tracks := make([]services.SpotifyTrack, 0, len(data.page.Items))
		for _, item := range data.page.Items {
			if item.Track.ID != "" {
				tracks = append(tracks, item.Track)
			}
		}
		m.trackList.Title = fmt.Sprintf("Tracks in '%s'", data.playlist.Name)
		m.trackList.ResetSelected()
		m.view = TrackListView
		m.status = ""
		return m, m.trackList.SetItems(trackItems(tracks))
	}
	return m, nil
}

func (m *Model) appendLiked(page *services.SpotifyPaginatedTracks) {
	tracks := make([]services.SpotifyTrack, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, item.Track)
	}

	items := append(m.likedList.Items(), trackItems(tracks)...)
	m.likedList.SetItems(items)
	m.likedTotal = page.Total
	m.likedLoaded = true
	m.hasMore = page.HasMore()
	m.nextOffset = page.NextOffset()
	m.status = ""
}

// fail routes authentication failures to the login view; other errors stay in the status line.
func (m *Model) fail(err error) tea.Cmd {
	m.status = ""
	if requiresLogin(err) {
		m.view = LoginView
		m.err = err
		return nil
	}
	m.status = session.DisplayError(err)
	return nil
}

func requiresLogin(err error) bool {
	if errors.Is(err, shared.ErrNoSession) || errors.Is(err, shared.ErrNotAuthenticated) {
		return true
	}
	if authErr, ok := services.AsAuthError(err); ok {
		return authErr.Kind == services.RequestFailed && authErr.Status == http.StatusUnauthorized
	}
	return false
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) && !m.filtering() {
		return m, tea.Quit
	}

	switch m.view {
	case LoadingView, LoginView:
		return m, nil

	case LikedView:
		if m.filtering() {
			break
		}
		switch {
		case key.Matches(msg, m.keys.more):
			return m, m.loadMore()
		case key.Matches(msg, m.keys.switchTo):
			return m, m.showPlaylists()
		case key.Matches(msg, m.keys.down) && m.atEnd():
			var cmd tea.Cmd
			m.likedList, cmd = m.likedList.Update(msg)
			return m, tea.Batch(cmd, m.loadMore())
		}

	case PlaylistListView:
		if m.filtering() {
			break
		}
		switch {
		case key.Matches(msg, m.keys.switchTo):
			m.view = LikedView
			return m, nil
		case key.Matches(msg, m.keys.refresh):
			return m, m.fetchPlaylists()
		case key.Matches(msg, m.keys.enter):
			if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				m.status = "Loading tracks..."
				return m, m.fetchTracks(pl.playlist)
			}
			return m, nil
		}

	case TrackListView:
		if !m.filtering() && key.Matches(msg, m.keys.back) {
			m.view = PlaylistListView
			return m, nil
		}
	}

	return m.updateLists(msg)
}

func (m *Model) filtering() bool {
	switch m.view {
	case LikedView:
		return m.likedList.FilterState() == list.Filtering
	case PlaylistListView:
		return m.playlistList.FilterState() == list.Filtering
	case TrackListView:
		return m.trackList.FilterState() == list.Filtering
	}
	return false
}

func (m *Model) atEnd() bool {
	n := len(m.likedList.Items())
	return n > 0 && m.likedList.Index() >= n-1
}

func (m *Model) showPlaylists() tea.Cmd {
	m.view = PlaylistListView
	if m.playlistsReady {
		return nil
	}
	return m.fetchPlaylists()
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case LikedView:
		m.likedList, cmd = m.likedList.Update(msg)
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) resize() {
	w, h := m.width-4, m.height-10
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	m.likedList.SetSize(w, h)
	m.playlistList.SetSize(w, h)
	m.trackList.SetSize(w, h)
}

func (m *Model) checkAuth() tea.Cmd {
	return func() tea.Msg {
		if err := m.guard.RequireAuth(m.ctx); err != nil {
			return authCheckedMsg(nil, err)
		}
		return authCheckedMsg(m.guard.State().UserProfile, nil)
	}
}

// loadMore requests the next page of liked songs unless one is in flight or the list is exhausted.
func (m *Model) loadMore() tea.Cmd {
	if m.pending >= 0 {
		return nil
	}
	if m.likedLoaded && !m.hasMore {
		return nil
	}

	offset := m.nextOffset
	m.pending = offset
	m.status = "Loading liked songs..."
	return func() tea.Msg {
		page, err := m.api.LikedSongs(m.ctx, offset)
		return likedFetchedMsg(offset, page, err)
	}
}

func (m *Model) fetchPlaylists() tea.Cmd {
	m.status = "Loading playlists..."
	return func() tea.Msg {
		playlists, err := m.api.Playlists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(playlist services.SpotifySimplePlaylist) tea.Cmd {
	return func() tea.Msg {
		page, err := m.api.PlaylistTracks(m.ctx, playlist.ID)
		return tracksFetchedMsg(playlist, page, err)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return styles.help.Render("Checking session...")
	case LoginView:
		return m.renderLogin()
	case LikedView:
		return m.renderLiked()
	case PlaylistListView:
		return m.renderWithHelp(m.playlistList.View(), m.keys.enter, m.keys.refresh, m.keys.switchTo, m.keys.quit)
	case TrackListView:
		return m.renderWithHelp(m.trackList.View(), m.keys.back, m.keys.quit)
	default:
		return ""
	}
}

func (m *Model) renderLogin() string {
	msg := session.DisplayError(m.err)
	if msg == "" {
		msg = "Please log in first"
	}
	return fmt.Sprintf("%s\n\nRun `rhythmiq auth login` and start the dashboard again.\n\n%s",
		styles.err.Render(msg), m.help.ShortHelpView([]key.Binding{m.keys.quit}))
}

func (m *Model) renderLiked() string {
	m.likedList.Title = fmt.Sprintf("Liked Songs (%d of %d)", len(m.likedList.Items()), m.likedTotal)

	helpKeys := []key.Binding{m.keys.switchTo, m.keys.quit}
	if m.hasMore {
		helpKeys = append([]key.Binding{m.keys.more}, helpKeys...)
	}
	return m.renderProfile() + "\n" + m.renderWithHelp(m.likedList.View(), helpKeys...)
}

func (m *Model) renderProfile() string {
	if m.profile == nil {
		return ""
	}

	body := styles.ok.Render(m.profile.Name())
	if m.profile.Email != "" {
		body += "\n" + m.profile.Email
	}
	body += fmt.Sprintf("\n%d followers", m.profile.Followers.Total)
	if m.profile.Product != "" {
		body += " • " + m.profile.Product
	}
	return styles.profile.Render(body)
}

func (m *Model) renderWithHelp(content string, keys ...key.Binding) string {
	status := ""
	if m.status != "" {
		status = "\n" + styles.warn.Render(m.status)
	}
	return fmt.Sprintf("%s%s\n\n%s", content, status, m.help.ShortHelpView(keys))
}
