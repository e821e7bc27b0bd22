package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/formatter"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/ui"
	"github.com/urfave/cli/v3"
)

type runView struct {
	ID          string                  `json:"id"`
	PlaylistRef string                  `json:"playlist_ref"`
	Playlist    models.PlaylistMetadata `json:"playlist"`
	TopK        int                     `json:"top_k"`
	Threshold   float64                 `json:"threshold"`
	Stats       models.RunStats         `json:"stats"`
	CreatedAt   time.Time               `json:"created_at"`
	Tracks      []models.MatchedTrack   `json:"tracks,omitempty"`
	Syncs       []syncView              `json:"syncs,omitempty"`
}

type syncView struct {
	ID        string                        `json:"id"`
	Result    models.PlaylistCreationResult `json:"result"`
	CreatedAt time.Time                     `json:"created_at"`
}

func newRunView(run *models.Run) runView {
	return runView{
		ID:          run.ID(),
		PlaylistRef: run.PlaylistRef,
		Playlist:    run.Playlist,
		TopK:        run.TopK,
		Threshold:   run.Threshold,
		Stats:       run.Stats,
		CreatedAt:   run.CreatedAt(),
		Tracks:      run.Tracks,
	}
}

// HistoryList lists stored runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	if err := r.store(); err != nil {
		return err
	}

	runs, err := r.runs.List(map[string]any{
		"limit":       cmd.Int("limit"),
		"playlist_id": cmd.String("playlist"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, len(runs))
		for i, run := range runs {
			views[i] = newRunView(run)
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No stored runs. Match a playlist with: tunesync match <playlist>\n")
	}

	for _, run := range runs {
		r.writePlain("%s  %s\n", run.ID(), ui.Title(run.Playlist.Name))
		r.writePlain("    %d/%d matched, %d high confidence (≥ %.2f), %s\n",
			run.Stats.Matched, run.Stats.Total, run.Stats.HighConfidence, run.Threshold,
			formatter.FormatAge(run.CreatedAt()))
	}
	return nil
}

// HistoryShow prints a stored run with its tracks and every sync made from it.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: a run id or \"latest\"", shared.ErrMissingArgument)
	}
	if err := r.store(); err != nil {
		return err
	}

	var run *models.Run
	var err error
	if id == "latest" {
		run, err = r.runs.Latest()
	} else {
		run, err = r.runs.Get(id)
	}
	if err != nil {
		return err
	}

	syncs, err := r.syncs.List(map[string]any{"run_id": run.ID()})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		view := newRunView(run)
		for _, s := range syncs {
			view.Syncs = append(view.Syncs, syncView{ID: s.ID(), Result: s.Result, CreatedAt: s.CreatedAt()})
		}
		return r.writeJSON(view, true)
	}

	r.writePlain("Run %s (%s)\n", run.ID(), formatter.FormatAge(run.CreatedAt()))
	r.writePlain("Reference: %s\n\n", run.PlaylistRef)
	r.writePlain("%s\n", ui.RenderRunSummary(run.Playlist, run.Stats, run.Threshold))
	r.writePlain("%s\n", ui.RenderTracks(run.Tracks, run.Threshold))

	if len(syncs) == 0 {
		return nil
	}
	r.writePlainln("Syncs:")
	for _, s := range syncs {
		status := ui.Success("✓")
		if !s.Result.Success {
			status = ui.Error("✗")
		}
		r.writePlain("  %s %s: %d/%d added, %s\n", status, s.Result.PlaylistName,
			s.Result.AddedCount, s.Result.AttemptedCount, formatter.FormatAge(s.CreatedAt()))
		if s.Result.PlaylistURL != "" {
			r.writePlain("    %s\n", s.Result.PlaylistURL)
		}
		if s.Result.Error != "" {
			r.writePlain("    %s\n", s.Result.Error)
		}
	}
	return nil
}

// HistoryDelete soft-deletes a stored run.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: a run id", shared.ErrMissingArgument)
	}
	if err := r.store(); err != nil {
		return err
	}
	if err := r.runs.Delete(id); err != nil {
		return err
	}
	r.writePlain("✓ Deleted run %s\n", id)
	return nil
}
