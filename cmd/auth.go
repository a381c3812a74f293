package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/rhythmiq/internal/server"
	"github.com/desertthunder/rhythmiq/internal/session"
	"github.com/desertthunder/rhythmiq/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin opens the authorize page and serves the redirect locally until it settles or times out.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	if err := r.config.ValidateClient(); err != nil {
		return err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	manager := r.session()
	handler := server.NewCallbackHandler(manager, server.CallbackHandlerOpts{
		Path:          r.config.ControlPlane.CallbackPath,
		ExpectedState: state,
		Logger:        r.logger,
	})

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(handler)

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.CallbackPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() { serverErrors <- server.Run(srvCtx, srv, r.logger) }()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := manager.Login(state); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", manager.AuthorizationURL(state))
	}

	timeout := cmd.Duration("timeout")
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.CallbackResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		handler.Abandon()
		return fmt.Errorf("callback server error: %w", err)
	case <-timer.C:
		handler.Abandon()
		return fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		handler.Abandon()
		return ctx.Err()
	}

	stop()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down callback server", "error", err)
	}

	if result.Destination != session.DestinationDashboard {
		if result.Err != nil {
			return fmt.Errorf("authorization failed: %w", result.Err)
		}
		return fmt.Errorf("%w: authorization did not complete", shared.ErrNotAuthenticated)
	}

	snapshot := manager.State()
	name := "unknown user"
	if snapshot.UserProfile != nil {
		name = snapshot.UserProfile.Name()
	}
	r.logger.Info("authorization complete", "user", name)
	return r.writePlain("✓ Logged in as %s\n", name)
}

// AuthLogout ends the session. Local state is cleared even when the control plane is unreachable.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}

	if err := r.session().Logout(ctx); err != nil {
		r.writePlain("⚠ Control plane logout failed: %s\n", session.DisplayError(err))
	}
	return r.writePlain("✓ Logged out\n")
}

type authStatus struct {
	Authenticated bool       `json:"authenticated"`
	User          string     `json:"user,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// AuthStatus performs the silent re-authentication check and reports the outcome.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}

	status, err := r.status(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(status, false)
	}

	if err != nil {
		r.writePlain("✗ Not authenticated\n")
		return r.writePlain("  %s. Run 'rhythmiq auth login'.\n", status.Error)
	}

	r.writePlain("✓ Authenticated\n")
	r.writePlain("  User: %s\n", status.User)
	if status.ExpiresAt != nil {
		r.writePlain("  Session expires: %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func (r *Runner) status(ctx context.Context) (authStatus, error) {
	manager, err := r.restore(ctx)
	if err != nil {
		return authStatus{Error: session.DisplayError(err)}, err
	}

	snapshot := manager.State()
	status := authStatus{Authenticated: true}
	if snapshot.UserProfile != nil {
		status.User = snapshot.UserProfile.Name()
	}
	if expiry := r.store.Expiry(); !expiry.IsZero() {
		status.ExpiresAt = &expiry
	}
	return status, nil
}

// restore runs the initial session check and applies the route guard.
func (r *Runner) restore(ctx context.Context) (*session.Manager, error) {
	manager := r.session()
	manager.Restore(ctx)
	if err := manager.RequireAuth(ctx); err != nil {
		r.logger.Debug("route guard rejected session", "error", err)
		return nil, err
	}
	return manager, nil
}
