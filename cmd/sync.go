package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/tasks"
	"github.com/desertthunder/tunesync/internal/ui"
	"github.com/urfave/cli/v3"
)

// syncSource is what a sync appends from: a stored run or a fresh match.
type syncSource struct {
	runID     string
	name      string
	tracks    []models.MatchedTrack
	threshold float64
}

// Sync creates a private YouTube playlist from a stored run (--run) or from a fresh match of the playlist
// argument, then records the outcome.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	src, err := r.resolveSyncSource(ctx, cmd)
	if err != nil {
		return err
	}

	name := cmd.String("name")
	if name == "" {
		name = src.name
	}

	builder, err := r.builder(ctx)
	if err != nil {
		return err
	}

	asJSON := cmd.Bool("json")
	var progress chan tasks.ProgressUpdate
	var done <-chan struct{}
	if !asJSON {
		progress = make(chan tasks.ProgressUpdate, 50)
		done = r.printProgress(progress)
	}

	result := builder.Sync(ctx, name, src.tracks, src.threshold, cmd.String("description"), progress)
	if progress != nil {
		close(progress)
		<-done
	}

	if err := r.store(); err != nil {
		r.logger.Warn("failed to open history, sync not recorded", "error", err)
	} else if err := r.syncs.Create(models.NewSyncRecord(src.runID, result)); err != nil {
		r.logger.Warn("failed to record sync", "playlist", name, "error", err)
	}

	if asJSON {
		if err := r.writeJSON(result, true); err != nil {
			return err
		}
	} else {
		r.writePlain("\n%s", ui.RenderSyncResult(result))
	}

	switch {
	case result.Success:
		return nil
	case result.Error == tasks.ErrMsgAuthRequired:
		return fmt.Errorf("%w: run `tunesync auth youtube` first", shared.ErrNotAuthenticated)
	default:
		return fmt.Errorf("sync failed: %s", result.Error)
	}
}

func (r *Runner) resolveSyncSource(ctx context.Context, cmd *cli.Command) (*syncSource, error) {
	if id := cmd.String("run"); id != "" {
		if err := r.store(); err != nil {
			return nil, err
		}

		var run *models.Run
		var err error
		if id == "latest" {
			run, err = r.runs.Latest()
		} else {
			run, err = r.runs.Get(id)
		}
		if err != nil {
			return nil, err
		}

		threshold := run.Threshold
		if cmd.IsSet("threshold") {
			if threshold, err = r.threshold(cmd); err != nil {
				return nil, err
			}
		}
		return &syncSource{runID: run.ID(), name: run.Playlist.Name, tracks: run.Tracks, threshold: threshold}, nil
	}

	ref := cmd.Args().First()
	if ref == "" {
		return nil, fmt.Errorf("%w: a Spotify playlist url, or --run", shared.ErrMissingArgument)
	}

	threshold, err := r.threshold(cmd)
	if err != nil {
		return nil, err
	}
	pipeline, err := r.pipeline(false)
	if err != nil {
		return nil, err
	}

	var progress chan tasks.ProgressUpdate
	var done <-chan struct{}
	if !cmd.Bool("json") {
		progress = make(chan tasks.ProgressUpdate, 50)
		done = r.printProgress(progress)
	}
	result, err := pipeline.Run(ctx, ref, r.topK(cmd), threshold, progress)
	if progress != nil {
		close(progress)
		<-done
	}
	if err != nil {
		return nil, err
	}

	return &syncSource{runID: result.RunID, name: result.Metadata.Name, tracks: result.Tracks, threshold: threshold}, nil
}
