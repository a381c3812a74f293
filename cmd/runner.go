package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rhythmiq/internal/models"
	"github.com/desertthunder/rhythmiq/internal/services"
	"github.com/desertthunder/rhythmiq/internal/session"
	"github.com/desertthunder/rhythmiq/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The client session (token store, control-plane client and session manager) is built lazily
// on first use so that commands which never talk to the control plane don't need one.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	open       shared.BrowserOpener

	store   *services.TokenStore
	client  *services.Client
	manager *session.Manager
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser shared.BrowserOpener
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		open:       opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, authCommand, spotifyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and anything it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// configure loads the file named by the --config flag when it exists.
// A missing file keeps the current (default) configuration; it is created from the
// template the first time a session is established.
func (r *Runner) configure(cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		r.logger.Warn("config file not found, using defaults", "path", path)
		r.configPath = path
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}

	r.config = config
	r.configPath = path
	return nil
}

// redirectURI is the configured redirect, or the local callback listener's.
func (r *Runner) redirectURI() string {
	if uri := r.config.Credentials.Spotify.RedirectURI; uri != "" {
		return uri
	}
	return r.config.ControlPlane.RedirectURI(r.config.Server.CallbackOrigin())
}

// session builds the client session from the loaded configuration.
func (r *Runner) session() *session.Manager {
	if r.manager != nil {
		return r.manager
	}

	r.store = services.NewTokenStore(services.TokenStoreOpts{
		Persist: r.persistSession,
		Logger:  r.logger,
		Initial: models.Session{
			SessionID:   r.config.Session.ID,
			TokenExpiry: r.config.Session.Expiry(),
		},
	})

	opts := services.ClientOpts{
		BaseURL:    r.config.ControlPlane.BaseURL,
		Store:      r.store,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	}
	r.client = services.NewClient(opts)

	r.manager = session.NewManager(session.ManagerOpts{
		Store:       r.store,
		Exchanger:   services.NewExchangeClient(opts),
		API:         r.client,
		ClientID:    r.config.Credentials.Spotify.ClientID,
		RedirectURI: r.redirectURI(),
		OpenBrowser: r.open,
		Logger:      r.logger,
	})
	return r.manager
}

// persistSession writes the session id and expiry into the [session] table of the config file.
// Clearing a session never creates the file.
func (r *Runner) persistSession(s models.Session) error {
	r.config.Session = shared.SessionConfig{ID: s.SessionID}
	if !s.TokenExpiry.IsZero() {
		r.config.Session.ExpiresAt = s.TokenExpiry.Unix()
	}

	if r.configPath == "" {
		r.logger.Warn("no config file, session will not survive this process")
		return nil
	}
	if _, err := os.Stat(r.configPath); err != nil && s.SessionID == "" {
		return nil
	}
	return shared.SaveSession(r.configPath, r.config.Session)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	return r.writeBytes([]byte(fmt.Sprintf(format, args...)))
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writeBytes([]byte("\n" + fmt.Sprintf(format, args...) + "\n"))
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
