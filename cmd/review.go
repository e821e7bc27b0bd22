package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/ui"
	"github.com/urfave/cli/v3"
)

// Review launches the interactive review screen for one playlist.
func (r *Runner) Review(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.Args().First()
	if ref == "" {
		return fmt.Errorf("%w: a Spotify playlist url", shared.ErrMissingArgument)
	}
	threshold, err := r.threshold(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := filepath.Join(xdg.StateHome, shared.AppName, "review.log")
	fileLogger, logFile, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()
	fileLogger.SetLevel(r.logger.GetLevel())
	r.logger = fileLogger

	pipeline, err := r.pipeline(false)
	if err != nil {
		return err
	}
	builder, err := r.builder(ctx)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, pipeline, builder, r.syncs, ui.ReviewOpts{
		Ref:          ref,
		PlaylistName: cmd.String("name"),
		Description:  cmd.String("description"),
		TopK:         r.topK(cmd),
		Threshold:    threshold,
	})

	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if m, ok := final.(*ui.Model); ok {
		if m.Result() != nil {
			r.writePlain("%s", ui.RenderSyncResult(*m.Result()))
		}
		return m.Err()
	}
	return nil
}
