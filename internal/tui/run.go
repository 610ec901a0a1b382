package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// RunOptions control the terminal the browser runs on.
type RunOptions struct {
	Input  io.Reader
	Output io.Writer
}

// Run starts the browser and blocks until the user quits or ctx is canceled.
func Run(ctx context.Context, cfg Config, opts RunOptions) error {
	if cfg.Storage == nil {
		return fmt.Errorf("storage is required")
	}

	programOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}

	final, err := tea.NewProgram(New(ctx, cfg), programOpts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to run browser: %w", err)
	}
	if m, ok := final.(Model); ok && m.lastError != nil {
		return m.lastError
	}
	return nil
}
