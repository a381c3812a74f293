package session

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rhythmiq/internal/services"
	"github.com/desertthunder/rhythmiq/internal/shared"
	"golang.org/x/oauth2"
)

// Display messages recorded in [Snapshot.Error].
const (
	MsgExchangeFailed = "Failed to exchange code for token"
	MsgProfileFailed  = "Failed to fetch user profile"
)

// Snapshot is the published session state.
type Snapshot struct {
	IsAuthenticated bool
	UserProfile     *services.SpotifyUser
	IsLoading       bool
	Error           string
}

// ManagerOpts configures a [Manager].
type ManagerOpts struct {
	Store       *services.TokenStore
	Exchanger   services.Exchanger
	API         services.API
	ClientID    string
	RedirectURI string
	// AuthURL overrides the provider authorize endpoint.
	AuthURL     string
	OpenBrowser shared.BrowserOpener
	Logger      *log.Logger
}

// Manager is the session context shared by every view of the client.
type Manager struct {
	store     *services.TokenStore
	exchanger services.Exchanger
	api       services.API
	oauth     *oauth2.Config
	open      shared.BrowserOpener
	logger    *log.Logger

	mu          sync.RWMutex
	state       Snapshot
	subscribers map[int]func(Snapshot)
	nextSub     int

	ready     chan struct{}
	readyOnce sync.Once
}

var _ AuthHandler = (*Manager)(nil)

// NewManager creates a [Manager] whose state is loading until [Manager.Restore] or
// [Manager.HandleAuthSuccess] resolves.
func NewManager(opts ManagerOpts) *Manager {
	endpoint := services.Endpoint
	if opts.AuthURL != "" {
		endpoint.AuthURL = opts.AuthURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	open := opts.OpenBrowser
	if open == nil {
		open = shared.OpenBrowser
	}

	return &Manager{
		store:     opts.Store,
		exchanger: opts.Exchanger,
		api:       opts.API,
		oauth: &oauth2.Config{
			ClientID:    opts.ClientID,
			RedirectURL: opts.RedirectURI,
			Scopes:      services.Scopes,
			Endpoint:    endpoint,
		},
		open:        open,
		logger:      logger,
		state:       Snapshot{IsLoading: true},
		subscribers: make(map[int]func(Snapshot)),
		ready:       make(chan struct{}),
	}
}

// State returns the current snapshot.
func (m *Manager) State() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Ready is closed once the initial authentication check has resolved.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Subscribe registers fn for every published state. The returned func unregisters it.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// AuthorizationURL builds the provider authorize URL with the fixed scope set.
func (m *Manager) AuthorizationURL(state string) string {
	return m.oauth.AuthCodeURL(state)
}

// Login sends the user to the provider's authorize page.
func (m *Manager) Login(state string) error {
	authURL := m.AuthorizationURL(state)
	m.logger.Debug("opening authorization page", "url", authURL)
	return m.open(authURL)
}

// Restore performs the initial silent check using a previously persisted session.
func (m *Manager) Restore(ctx context.Context) {
	defer m.markReady()

	if m.store.IsExpired() {
		if m.store.AccessToken() != "" {
			m.logger.Info("stored session expired")
			m.store.Clear()
		}
		m.publish(Snapshot{})
		return
	}

	profile, err := m.api.UserProfile(ctx)
	if err != nil {
		m.logger.Warn("silent re-authentication failed", "error", err)
		if authErr, ok := services.AsAuthError(err); ok && authErr.Status == http.StatusUnauthorized {
			m.store.Clear()
		}
		m.publish(Snapshot{})
		return
	}

	m.publish(Snapshot{IsAuthenticated: true, UserProfile: profile})
}

// HandleAuthSuccess exchanges code, then fetches the profile. Any failure leaves the session unauthenticated.
func (m *Manager) HandleAuthSuccess(ctx context.Context, code string) error {
	defer m.markReady()

	m.update(func(s *Snapshot) {
		s.IsLoading = true
		s.Error = ""
	})

	if _, err := m.exchanger.Exchange(ctx, code); err != nil {
		msg := MsgExchangeFailed
		if authErr, ok := services.AsAuthError(err); ok && authErr.Kind == services.NoAuthorizationCode {
			msg = authErr.Message()
		}
		m.publish(Snapshot{Error: msg})
		return err
	}

	profile, err := m.api.UserProfile(ctx)
	if err != nil {
		m.store.Clear()
		m.publish(Snapshot{Error: MsgProfileFailed})
		return err
	}

	m.publish(Snapshot{IsAuthenticated: true, UserProfile: profile})
	return nil
}

// Logout clears local state regardless of the backend outcome. The returned error is informational.
func (m *Manager) Logout(ctx context.Context) error {
	var err error
	if m.store.AccessToken() != "" && !m.store.IsExpired() {
		err = m.api.Logout(ctx)
		if err != nil {
			m.logger.Warn("backend logout failed", "error", err)
		}
	}

	m.store.Clear()
	m.publish(Snapshot{})
	return err
}

// RequireAuth blocks until the initial check resolves and returns [shared.ErrNotAuthenticated]
// unless the session is authenticated.
func (m *Manager) RequireAuth(ctx context.Context) error {
	select {
	case <-m.ready:
	case <-ctx.Done():
		return shared.ErrNotAuthenticated
	}

	s := m.State()
	if !s.IsAuthenticated || m.store.IsExpired() {
		return shared.ErrNotAuthenticated
	}
	return nil
}

// DisplayError converts err into the text shown for it.
func DisplayError(err error) string {
	if err == nil {
		return ""
	}
	if authErr, ok := services.AsAuthError(err); ok {
		return authErr.Message()
	}
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return "Please log in first"
	}
	return err.Error()
}

func (m *Manager) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

func (m *Manager) publish(s Snapshot) {
	m.update(func(cur *Snapshot) { *cur = s })
}

func (m *Manager) update(fn func(*Snapshot)) {
	m.mu.Lock()
	fn(&m.state)
	snapshot := m.state
	subs := make([]func(Snapshot), 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}
}
