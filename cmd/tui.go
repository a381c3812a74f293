package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rhythmiq/internal/session"
	"github.com/desertthunder/rhythmiq/internal/shared"
	"github.com/desertthunder/rhythmiq/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the dashboard. The session check runs concurrently; the dashboard waits on it before showing anything.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}

	// Logs go to a file so they don't interfere with rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	manager := r.session()
	unsubscribe := manager.Subscribe(func(s session.Snapshot) {
		r.logger.Debug("session state", "authenticated", s.IsAuthenticated, "loading", s.IsLoading, "error", s.Error)
	})
	defer unsubscribe()
	go manager.Restore(ctx)

	model := ui.NewModel(ctx, manager, r.client)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
