package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override [SpotifyConfig] values from the file.
const (
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvRedirectURI  = "SPOTIFY_REDIRECT_URI"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials  CredentialsConfig  `toml:"credentials"`
	ControlPlane ControlPlaneConfig `toml:"control_plane"`
	Session      SessionConfig      `toml:"session"`
	Database     DatabaseConfig     `toml:"database"`
	Server       ServerConfig       `toml:"server"`
	Spotify      SpotifyAPIConfig   `toml:"spotify"`
}

// CredentialsConfig contains provider credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify OAuth client credentials.
//
// The client secret is only read by the control-plane server.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// ControlPlaneConfig tells the client where the control plane lives and which path receives the provider redirect.
type ControlPlaneConfig struct {
	BaseURL      string `toml:"base_url"`
	CallbackPath string `toml:"callback_path"`
}

// SessionConfig is the persisted client session (a single scoped key).
type SessionConfig struct {
	ID        string `toml:"id"`
	ExpiresAt int64  `toml:"expires_at"` // unix seconds
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the control plane and the local callback listener.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	CallbackPort  int    `toml:"callback_port"`
	AllowedOrigin string `toml:"allowed_origin"`
	CookieSecure  bool   `toml:"cookie_secure"`
	SessionTTL    string `toml:"session_ttl"`
}

// SpotifyAPIConfig contains upstream Web API settings.
type SpotifyAPIConfig struct {
	APIURL            string  `toml:"api_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values absent from the file keep their defaults and environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.ApplyEnv(os.Getenv)
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveConfig encodes config as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveSession replaces only the [session] table of the file at path.
//
// The file is re-read without environment overrides, so credentials supplied through the
// environment never reach disk. A missing file is created from the embedded template.
func SaveSession(path string, session SessionConfig) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		data = exampleConf
	} else if err != nil {
		return fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.Session = session
	return SaveConfig(path, config)
}

// ApplyEnv overrides Spotify credentials with non-empty values returned by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvClientID); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := getenv(EnvClientSecret); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := getenv(EnvRedirectURI); v != "" {
		c.Credentials.Spotify.RedirectURI = v
	}
}

// ValidateServer checks the settings the control plane can't run without.
func (c *Config) ValidateServer() error {
	s := c.Credentials.Spotify
	if s.ClientID == "" || s.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret are required", ErrMissingCredentials)
	}
	if s.RedirectURI == "" {
		return fmt.Errorf("%w: spotify redirect_uri is required", ErrInvalidConfig)
	}
	if _, err := c.Server.TTL(); err != nil {
		return err
	}
	return nil
}

// ValidateClient checks the settings needed to start an authorization flow.
func (c *Config) ValidateClient() error {
	if c.Credentials.Spotify.ClientID == "" {
		return fmt.Errorf("%w: spotify client_id is required", ErrMissingCredentials)
	}
	if _, err := url.Parse(c.ControlPlane.BaseURL); err != nil || c.ControlPlane.BaseURL == "" {
		return fmt.Errorf("%w: control_plane.base_url must be a URL", ErrInvalidConfig)
	}
	return nil
}

// TTL parses the configured session lifetime.
func (s ServerConfig) TTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(s.SessionTTL)
	if err != nil || ttl <= 0 {
		return 0, fmt.Errorf("%w: session_ttl %q", ErrInvalidConfig, s.SessionTTL)
	}
	return ttl, nil
}

// Addr is the control-plane listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CallbackOrigin is the origin of the local callback listener.
func (s ServerConfig) CallbackOrigin() string {
	return fmt.Sprintf("http://%s:%d", s.Host, s.CallbackPort)
}

// RedirectURI derives the provider redirect URI from an origin and the callback path.
func (c ControlPlaneConfig) RedirectURI(origin string) string {
	path := c.CallbackPath
	if path == "" {
		path = "/callback"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(origin, "/") + path
}

// Expiry returns the persisted session expiry, the zero time when unset.
func (s SessionConfig) Expiry() time.Time {
	if s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}
