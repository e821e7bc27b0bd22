package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunesync/internal/formatter"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/tasks"
	"github.com/desertthunder/tunesync/internal/ui"
	"github.com/urfave/cli/v3"
)

type matchOutput struct {
	RunID     string                  `json:"run_id,omitempty"`
	Playlist  models.PlaylistMetadata `json:"playlist"`
	TopK      int                     `json:"top_k"`
	Threshold float64                 `json:"threshold"`
	Stats     models.RunStats         `json:"stats"`
	Tracks    []models.MatchedTrack   `json:"tracks"`
	Files     []string                `json:"files"`
}

// Match runs the pipeline for every playlist argument and writes its exports.
//
// A single playlist is exported into --out. Several playlists go through [tasks.Pipeline.BulkExport].
func (r *Runner) Match(ctx context.Context, cmd *cli.Command) error {
	refs := cmd.Args().Slice()
	if len(refs) == 0 {
		return fmt.Errorf("%w: at least one Spotify playlist url", shared.ErrMissingArgument)
	}

	threshold, err := r.threshold(cmd)
	if err != nil {
		return err
	}
	topK := r.topK(cmd)
	thumbnails := cmd.Bool("thumbnails")

	pipeline, err := r.pipeline(thumbnails)
	if err != nil {
		return err
	}

	if len(refs) > 1 {
		return r.matchMany(ctx, cmd, pipeline, refs, tasks.BulkExportOpts{
			OutputDir:         cmd.String("out"),
			NumWorkers:        cmd.Int("workers"),
			RateLimit:         cmd.Float("rate"),
			TopK:              topK,
			Threshold:         threshold,
			IncludeThumbnails: thumbnails,
		})
	}

	asJSON := cmd.Bool("json")
	var progress chan tasks.ProgressUpdate
	var done <-chan struct{}
	if !asJSON {
		progress = make(chan tasks.ProgressUpdate, 50)
		done = r.printProgress(progress)
	}

	result, err := pipeline.Run(ctx, refs[0], topK, threshold, progress)
	if progress != nil {
		close(progress)
		<-done
	}
	if err != nil {
		return err
	}

	dir := cmd.String("out")
	if dir == "" {
		dir = "."
	}
	export, err := formatter.WriteRunExport(*result.Metadata, result.Tracks, formatter.RunExportOpts{
		Dir:               dir,
		Threshold:         threshold,
		IncludeThumbnails: thumbnails,
	})
	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(matchOutput{
			RunID:     result.RunID,
			Playlist:  *result.Metadata,
			TopK:      result.TopK,
			Threshold: result.Threshold,
			Stats:     result.Stats,
			Tracks:    result.Tracks,
			Files:     export.Files(),
		}, true)
	}

	r.writePlain("\n")
	r.writePlain("%s\n", ui.RenderRunSummary(*result.Metadata, result.Stats, threshold))
	r.writePlain("%s\n", ui.RenderTracks(result.Tracks, threshold))

	r.writePlainln("Files:")
	for _, f := range export.Files() {
		r.writePlain("  %s\n", f)
	}

	if result.RunID != "" {
		r.writePlainln("✓ Run saved as %s", result.RunID)
		r.writePlain("Create the playlist with: tunesync sync --run %s\n", result.RunID)
	}
	return nil
}

func (r *Runner) matchMany(ctx context.Context, cmd *cli.Command, pipeline *tasks.Pipeline, refs []string, opts tasks.BulkExportOpts) error {
	asJSON := cmd.Bool("json")
	var progress chan tasks.ProgressUpdate
	var done <-chan struct{}
	if !asJSON {
		progress = make(chan tasks.ProgressUpdate, 50)
		done = r.printProgress(progress)
	}

	result, err := pipeline.BulkExport(ctx, progress, refs, opts)
	if progress != nil {
		close(progress)
		<-done
	}
	if result == nil {
		return err
	}
	if err != nil {
		r.logger.Warn("bulk export incomplete", "error", err)
	}

	if asJSON {
		if jsonErr := r.writeJSON(result, true); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete")
	r.writePlain("Output: %s\n", result.OutputDirectory)
	r.writePlain("Succeeded: %d/%d\n", result.SuccessfulExports, result.TotalPlaylists)

	for _, res := range result.Results {
		if res.Success {
			r.writePlain("  %s %s (%d files, run %s)\n", ui.Success("✓"), res.PlaylistName, len(res.Files), res.RunID)
			continue
		}
		r.writePlain("  %s %s: %v\n", ui.Error("✗"), res.Ref, res.Error)
	}
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	return err
}
