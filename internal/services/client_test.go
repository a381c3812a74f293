package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/rhythmiq/internal/shared"
	tu "github.com/desertthunder/rhythmiq/internal/testing"
)

const profileJSON = `{"id":"u1","display_name":"Ada","email":"ada@example.com","images":[]}`

func likedJSON(n, offset int) string {
	items := ""
	for i := range n {
		if i > 0 {
			items += ","
		}
		items += `{"added_at":"2024-01-01T00:00:00Z","track":{"id":"t","name":"Song","artists":[{"name":"A"}],"album":{"name":"B"},"duration_ms":1000}}`
	}
	return `{"items":[` + items + `],"total":100,"limit":20,"offset":` + strconv.Itoa(offset) + `,"next":null,"previous":null}`
}

// apiServer routes control-plane paths to fixed responses and records the last request.
type apiServer struct {
	*httptest.Server
	calls atomic.Int32
	last  atomic.Pointer[http.Request]
}

func newAPIServer(t *testing.T, routes map[string]func(http.ResponseWriter, *http.Request)) *apiServer {
	t.Helper()
	s := &apiServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.last.Store(r)
		if h, ok := routes[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func respond(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func TestClient(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	setup := func(t *testing.T, routes map[string]func(http.ResponseWriter, *http.Request)) (*Client, *TokenStore, *tu.Clock, *apiServer) {
		srv := newAPIServer(t, routes)
		clock := tu.NewClock(start)
		store := NewTokenStore(TokenStoreOpts{Now: clock.Now})
		return NewClient(ClientOpts{BaseURL: srv.URL, Store: store}), store, clock, srv
	}

	t.Run("no session issues no request", func(t *testing.T) {
		client, _, _, srv := setup(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET " + ProfilePath: respond(http.StatusOK, profileJSON),
		})

		_, err := client.UserProfile(context.Background())
		if !errors.Is(err, shared.ErrNoSession) {
			t.Errorf("expected ErrNoSession, got %v", err)
		}
		if srv.calls.Load() != 0 {
			t.Errorf("expected no requests, got %d", srv.calls.Load())
		}
	})

	t.Run("expired session issues no request", func(t *testing.T) {
		client, store, clock, srv := setup(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET " + ProfilePath: respond(http.StatusOK, profileJSON),
		})
		store.Establish("sid-1", 60)
		clock.Advance(time.Minute)

		_, err := client.UserProfile(context.Background())
		if !errors.Is(err, shared.ErrNoSession) || !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected expired NoSession, got %v", err)
		}
		if srv.calls.Load() != 0 {
			t.Errorf("expected no requests, got %d", srv.calls.Load())
		}
	})

	t.Run("attaches cookie and query parameter", func(t *testing.T) {
		client, store, _, srv := setup(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET " + ProfilePath: respond(http.StatusOK, profileJSON),
		})
		store.Establish("sid-1", 60)

		user, err := client.UserProfile(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.ID != "u1" || user.Name() != "Ada" {
			t.Errorf("unexpected user %+v", user)
		}

		req := srv.last.Load()
		if got := req.URL.Query().Get("sessionId"); got != "sid-1" {
			t.Errorf("expected sessionId query sid-1, got %q", got)
		}
		cookie, err := req.Cookie(SessionCookie)
		if err != nil || cookie.Value != "sid-1" {
			t.Errorf("expected session cookie sid-1, got %v (%v)", cookie, err)
		}
	})

	t.Run("non-2xx is RequestFailed", func(t *testing.T) {
		client, store, _, _ := setup(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET " + ProfilePath: respond(http.StatusInternalServerError, `{"error":"boom"}`),
		})
		store.Establish("sid-1", 60)

		_, err := client.UserProfile(context.Background())
		authErr, ok := AsAuthError(err)
		if !ok || authErr.Kind != RequestFailed {
			t.Fatalf("expected RequestFailed, got %v", err)
		}
		if authErr.Status != http.StatusInternalServerError || authErr.Endpoint != ProfilePath {
			t.Errorf("unexpected status/endpoint %d %s", authErr.Status, authErr.Endpoint)
		}
	})

	t.Run("unparsable body is MalformedResponse", func(t *testing.T) {
		client, store, _, _ := setup(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET " + ProfilePath: respond(http.StatusOK, `<html>`),
		})
		store.Establish("sid-1", 60)

		_, err := client.UserProfile(context.Background())
		if !errors.Is(err, shared.ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("schema-invalid body is MalformedResponse", func(t *testing.T) {
		client, store, _, _ := setup(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET " + ProfilePath:    respond(http.StatusOK, `{"display_name":"no id"}`),
			"GET " + LikedSongsPath: respond(http.StatusOK, `{"total":3}`),
		})
		store.Establish("sid-1", 60)

		if _, err := client.UserProfile(context.Background()); !errors.Is(err, shared.ErrMalformedResponse) {
			t.Errorf("expected profile ErrMalformedResponse, got %v", err)
		}
		if _, err := client.LikedSongs(context.Background(), 0); !errors.Is(err, shared.ErrMalformedResponse) {
			t.Errorf("expected liked songs ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("LikedSongs paging", func(t *testing.T) {
		client, store, _, srv := setup(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET " + LikedSongsPath: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("offset") == "0" {
					respond(http.StatusOK, likedJSON(20, 0))(w, r)
					return
				}
				respond(http.StatusOK, likedJSON(5, 20))(w, r)
			},
		})
		store.Establish("sid-1", 60)

		first, err := client.LikedSongs(context.Background(), 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !first.HasMore() {
			t.Error("a full page should report more")
		}
		if first.NextOffset() != 20 {
			t.Errorf("expected next offset 20, got %d", first.NextOffset())
		}

		second, err := client.LikedSongs(context.Background(), first.NextOffset())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if second.HasMore() {
			t.Error("a short page should not report more")
		}
		if got := srv.last.Load().URL.Query().Get("offset"); got != "20" {
			t.Errorf("expected offset 20, got %s", got)
		}
		if second.Items[0].Track.ArtistNames() != "A" {
			t.Errorf("unexpected artists %q", second.Items[0].Track.ArtistNames())
		}
	})

	t.Run("Playlists and PlaylistTracks", func(t *testing.T) {
		client, store, _, _ := setup(t, map[string]func(http.ResponseWriter, *http.Request){
			"GET " + PlaylistsPath: respond(http.StatusOK,
				`{"items":[{"id":"p1","name":"Mix","tracks":{"total":2}}],"total":1}`),
			"GET /api/spotify/playlists/p1/tracks": respond(http.StatusOK,
				`{"items":[{"track":{"id":"t1","name":"One"}}],"total":1,"limit":20,"offset":0}`),
		})
		store.Establish("sid-1", 60)

		list, err := client.Playlists(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(list.Items) != 1 || list.Items[0].TrackCount() != 2 {
			t.Errorf("unexpected playlists %+v", list)
		}

		tracks, err := client.PlaylistTracks(context.Background(), "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks.Items) != 1 || tracks.Items[0].Track.Name != "One" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		client, store, _, srv := setup(t, map[string]func(http.ResponseWriter, *http.Request){
			"POST " + LogoutPath: respond(http.StatusNoContent, ""),
		})
		store.Establish("sid-1", 60)

		if err := client.Logout(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if srv.calls.Load() != 1 {
			t.Errorf("expected 1 request, got %d", srv.calls.Load())
		}
	})
}
