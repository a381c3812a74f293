package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rhythmiq/internal/models"
	"github.com/desertthunder/rhythmiq/internal/repositories"
	"github.com/desertthunder/rhythmiq/internal/services"
	"github.com/desertthunder/rhythmiq/internal/shared"
	"golang.org/x/oauth2"
)

// fakeSpotify serves the accounts token endpoint and a few Web API routes.
type fakeSpotify struct {
	*httptest.Server
	meStatus  int
	refreshes atomic.Int32
}

func newFakeSpotify(t *testing.T) *fakeSpotify {
	t.Helper()
	f := &fakeSpotify{meStatus: http.StatusOK}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/token":
			r.ParseForm()
			switch {
			case r.Form.Get("grant_type") == "refresh_token":
				f.refreshes.Add(1)
				io.WriteString(w, `{"access_token":"at-2","token_type":"Bearer","expires_in":3600}`)
			case r.Form.Get("code") == "bad":
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"error":"invalid_grant"}`)
			default:
				io.WriteString(w, `{"access_token":"at-1","token_type":"Bearer","refresh_token":"rt-1","expires_in":3600}`)
			}
		case "/v1/me":
			w.WriteHeader(f.meStatus)
			io.WriteString(w, `{"id":"u1","display_name":"Alice","email":"alice@example.com","images":[]}`)
		case "/v1/me/tracks":
			io.WriteString(w, `{"items":[{"track":{"id":"t1","name":"One"}}],"total":1,"limit":20,"offset":`+r.URL.Query().Get("offset")+`}`)
		case "/v1/me/playlists":
			io.WriteString(w, `{"items":[{"id":"p1","name":"Mix"}],"total":1,"next":null}`)
		case "/v1/playlists/p1/tracks":
			io.WriteString(w, `{"items":[{"track":{"id":"t2","name":"Two"}}],"total":1,"limit":20,"offset":0}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"status":404}}`)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

type cpFixture struct {
	handler http.Handler
	repo    *repositories.SessionRepository
	spotify *fakeSpotify
	cp      *ControlPlane
}

func newControlPlaneFixture(t *testing.T) *cpFixture {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	spotify := newFakeSpotify(t)
	logger := log.New(io.Discard)
	provider, err := services.NewSpotifyProvider(services.ProviderOpts{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://127.0.0.1:3000/callback",
		APIURL:       spotify.URL + "/v1",
		TokenURL:     spotify.URL + "/api/token",
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	f := &cpFixture{repo: repositories.NewSessionRepository(db), spotify: spotify}
	f.cp = NewControlPlane(ControlPlaneOpts{
		Sessions:   f.repo,
		Provider:   provider,
		SessionTTL: time.Hour,
		Logger:     logger,
	})
	f.handler = f.cp.Handler()
	return f
}

func (f *cpFixture) do(t *testing.T, method, target, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// login exchanges a code and returns the issued session id.
func (f *cpFixture) login(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, services.TokenPath, `{"code":"good"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("token exchange failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp services.TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}
	return resp.SessionID
}

func withCookie(id string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: services.SessionCookie, Value: id}) }
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body["error"]
}

func TestControlPlane(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		rec := f.do(t, http.MethodGet, "/health", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("token", func(t *testing.T) {
		t.Run("creates session and sets cookie", func(t *testing.T) {
			f := newControlPlaneFixture(t)
			rec := f.do(t, http.MethodPost, services.TokenPath, `{"code":"good"}`)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var resp services.TokenResponse
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp.SessionID == "" || resp.ExpiresIn != 3600 {
				t.Errorf("unexpected response %+v", resp)
			}
			if strings.Contains(rec.Body.String(), "at-1") {
				t.Error("provider token must never reach the client")
			}

			cookies := rec.Result().Cookies()
			if len(cookies) != 1 || cookies[0].Name != services.SessionCookie || cookies[0].Value != resp.SessionID {
				t.Errorf("unexpected cookies %v", cookies)
			}
			if !cookies[0].HttpOnly {
				t.Error("session cookie should be HttpOnly")
			}

			stored, err := f.repo.Get(resp.SessionID)
			if err != nil {
				t.Fatalf("session not stored: %v", err)
			}
			if stored.Token().AccessToken != "at-1" {
				t.Errorf("expected stored provider token, got %s", stored.Token().AccessToken)
			}
		})

		t.Run("empty code", func(t *testing.T) {
			f := newControlPlaneFixture(t)
			rec := f.do(t, http.MethodPost, services.TokenPath, `{"code":""}`)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})

		t.Run("invalid body", func(t *testing.T) {
			f := newControlPlaneFixture(t)
			rec := f.do(t, http.MethodPost, services.TokenPath, `nope`)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})

		t.Run("provider failure", func(t *testing.T) {
			f := newControlPlaneFixture(t)
			rec := f.do(t, http.MethodPost, services.TokenPath, `{"code":"bad"}`)
			if rec.Code != http.StatusBadGateway {
				t.Errorf("expected 502, got %d", rec.Code)
			}
			if msg := errorBody(t, rec); msg != "Failed to exchange code for token" {
				t.Errorf("unexpected error %q", msg)
			}
		})
	})

	t.Run("session resolution", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		id := f.login(t)

		t.Run("missing", func(t *testing.T) {
			rec := f.do(t, http.MethodGet, services.ProfilePath, "")
			if rec.Code != http.StatusUnauthorized || errorBody(t, rec) != "Missing session ID" {
				t.Errorf("expected 401 Missing session ID, got %d", rec.Code)
			}
		})

		t.Run("cookie", func(t *testing.T) {
			rec := f.do(t, http.MethodGet, services.ProfilePath, "", withCookie(id))
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200, got %d %s", rec.Code, rec.Body.String())
			}
		})

		t.Run("query parameter", func(t *testing.T) {
			rec := f.do(t, http.MethodGet, services.ProfilePath+"?sessionId="+id, "")
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", rec.Code)
			}
		})

		t.Run("bearer", func(t *testing.T) {
			rec := f.do(t, http.MethodGet, services.ProfilePath, "", func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+id)
			})
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", rec.Code)
			}
		})

		t.Run("cookie wins over query", func(t *testing.T) {
			rec := f.do(t, http.MethodGet, services.ProfilePath+"?sessionId=unknown", "", withCookie(id))
			if rec.Code != http.StatusOK {
				t.Errorf("expected cookie session to be used, got %d", rec.Code)
			}
		})

		t.Run("unknown", func(t *testing.T) {
			rec := f.do(t, http.MethodGet, services.ProfilePath, "", withCookie("unknown"))
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	})

	t.Run("expired session", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		stored := models.NewStoredSession(&oauth2.Token{AccessToken: "at-1"}, time.Hour)
		stored.SetExpiresAt(time.Now().Add(-time.Minute).UTC())
		if err := f.repo.Create(stored); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		rec := f.do(t, http.MethodGet, services.ProfilePath, "", withCookie(stored.ID()))
		if rec.Code != http.StatusUnauthorized || errorBody(t, rec) != "Session expired" {
			t.Errorf("expected 401 Session expired, got %d", rec.Code)
		}
	})

	t.Run("profile links spotify user", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		id := f.login(t)

		rec := f.do(t, http.MethodGet, services.ProfilePath, "", withCookie(id))
		var user services.SpotifyUser
		json.NewDecoder(rec.Body).Decode(&user)
		if user.ID != "u1" || user.DisplayName != "Alice" {
			t.Errorf("unexpected profile %+v", user)
		}

		stored, _ := f.repo.Get(id)
		if stored.SpotifyUserID() != "u1" {
			t.Errorf("expected linked user u1, got %q", stored.SpotifyUserID())
		}
	})

	t.Run("upstream client error keeps status", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		f.spotify.meStatus = http.StatusForbidden
		id := f.login(t)

		rec := f.do(t, http.MethodGet, services.ProfilePath, "", withCookie(id))
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("upstream server error is 502", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		f.spotify.meStatus = http.StatusServiceUnavailable
		id := f.login(t)

		rec := f.do(t, http.MethodGet, services.ProfilePath, "", withCookie(id))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("liked songs", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		id := f.login(t)

		rec := f.do(t, http.MethodGet, services.LikedSongsPath+"?offset=20", "", withCookie(id))
		var page services.SpotifyPaginatedTracks
		json.NewDecoder(rec.Body).Decode(&page)
		if rec.Code != http.StatusOK || page.Offset != 20 || len(page.Items) != 1 {
			t.Errorf("unexpected page %d %+v", rec.Code, page)
		}

		rec = f.do(t, http.MethodGet, services.LikedSongsPath+"?offset=-1", "", withCookie(id))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for negative offset, got %d", rec.Code)
		}
	})

	t.Run("playlists and tracks", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		id := f.login(t)

		rec := f.do(t, http.MethodGet, services.PlaylistsPath, "", withCookie(id))
		var list services.SpotifyPlaylistList
		json.NewDecoder(rec.Body).Decode(&list)
		if list.Total != 1 || list.Items[0].ID != "p1" {
			t.Errorf("unexpected playlists %+v", list)
		}

		rec = f.do(t, http.MethodGet, services.PlaylistsPath+"/p1/tracks", "", withCookie(id))
		var tracks services.SpotifyPaginatedPlaylistTracks
		json.NewDecoder(rec.Body).Decode(&tracks)
		if len(tracks.Items) != 1 || tracks.Items[0].Track.Name != "Two" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("refreshed token is persisted", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		stored := models.NewStoredSession(&oauth2.Token{
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(-time.Minute),
		}, time.Hour)
		if err := f.repo.Create(stored); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		rec := f.do(t, http.MethodGet, services.ProfilePath, "", withCookie(stored.ID()))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if f.spotify.refreshes.Load() != 1 {
			t.Errorf("expected 1 refresh, got %d", f.spotify.refreshes.Load())
		}

		reloaded, err := f.repo.Get(stored.ID())
		if err != nil {
			t.Fatalf("failed to reload session: %v", err)
		}
		if reloaded.Token().AccessToken != "at-2" || reloaded.Token().RefreshToken != "rt-1" {
			t.Errorf("unexpected persisted token %+v", reloaded.Token())
		}
	})

	t.Run("logout", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		id := f.login(t)

		rec := f.do(t, http.MethodPost, services.LogoutPath, "", withCookie(id))
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
			t.Errorf("expected cookie to be cleared, got %v", cookies)
		}

		rec = f.do(t, http.MethodGet, services.ProfilePath, "", withCookie(id))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 after logout, got %d", rec.Code)
		}

		rec = f.do(t, http.MethodPost, services.LogoutPath, "", withCookie(id))
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected repeated logout to succeed, got %d", rec.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		rec := f.do(t, http.MethodGet, services.TokenPath, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		f := newControlPlaneFixture(t)
		rec := f.do(t, http.MethodOptions, services.TokenPath, "")
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})
}

func TestOpenControlPlane(t *testing.T) {
	t.Run("wires database and provider from config", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientSecret = "secret"
		config.Database.Path = filepath.Join(t.TempDir(), "sessions.db")

		cp, closeDB, err := OpenControlPlane(config, nil, log.New(io.Discard))
		if err != nil {
			t.Fatalf("failed to open control plane: %v", err)
		}

		rec := httptest.NewRecorder()
		cp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, services.ProfilePath+"?sessionId=unknown", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 for unknown session, got %d", rec.Code)
		}

		if err := closeDB(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	t.Run("rejects incomplete credentials", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientSecret = ""

		if _, _, err := OpenControlPlane(config, nil, log.New(io.Discard)); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("rejects invalid session ttl", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Server.SessionTTL = "0s"

		if _, _, err := OpenControlPlane(config, nil, log.New(io.Discard)); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
