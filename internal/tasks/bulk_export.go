package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/tunesync/internal/formatter"
	"github.com/desertthunder/tunesync/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for matching and exporting several playlists.
type BulkExportOpts struct {
	OutputDir         string  // Base output directory (default: tunesync_export_{epoch})
	NumWorkers        int     // Concurrent playlists (default: 2, max: 5)
	RateLimit         float64 // Playlists started per second (default: 1)
	TopK              int     // Candidates per track
	Threshold         float64 // High-confidence cutoff
	IncludeThumbnails bool    // Add thumbnail columns to the CSVs
}

// PlaylistExportResult is the outcome for one playlist reference.
type PlaylistExportResult struct {
	Ref          string     `json:"ref"`
	PlaylistName string     `json:"playlist_name"`
	RunID        string     `json:"run_id,omitempty"`
	Success      bool       `json:"success"`
	Files        []string   `json:"files"`
	Run          *RunResult `json:"-"`
	Error        error      `json:"-"`
}

// BulkExportResult summarizes a bulk export.
type BulkExportResult struct {
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"-"`
	Results           []PlaylistExportResult `json:"results"`
}

type manifestEntry struct {
	PlaylistExportResult
	ErrorMessage string `json:"error,omitempty"`
}

// BulkExport matches several playlists concurrently and writes each run's export files.
//
// Playlists are started no faster than opts.RateLimit per second, so the catalogs see a bounded
// request rate no matter how many workers are configured. A failed playlist does not stop the
// others. A manifest summarizing every playlist is written to the output directory.
func (p *Pipeline) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, refs []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if p.source == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("tunesync_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 2
	}
	if opts.NumWorkers > 5 {
		opts.NumWorkers = 5
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalPlaylists:  len(refs),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, len(refs)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan string, len(refs))
	results := make(chan PlaylistExportResult, len(refs))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go p.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, ref := range refs {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			sendProgress(prog, exportingUpdate(i+1, len(refs), ref))
			jobs <- ref
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(refs), res.PlaylistName, len(res.Files)))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(refs), res.PlaylistName, res.Error))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// exportWorker is a worker goroutine that matches and exports playlists from the jobs channel.
func (p *Pipeline) exportWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan string, results chan<- PlaylistExportResult, opts BulkExportOpts) {
	defer wg.Done()

	for ref := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- p.exportSinglePlaylist(ctx, ref, opts)
	}
}

// exportSinglePlaylist runs the pipeline for ref and writes its files into a per-playlist directory.
func (p *Pipeline) exportSinglePlaylist(ctx context.Context, ref string, opts BulkExportOpts) PlaylistExportResult {
	result := PlaylistExportResult{
		Ref:          ref,
		PlaylistName: ref,
		Files:        []string{},
	}

	run, err := p.Run(ctx, ref, opts.TopK, opts.Threshold, nil)
	if err != nil {
		result.Error = fmt.Errorf("match failed: %w", err)
		return result
	}
	result.Run = run
	result.RunID = run.RunID
	result.PlaylistName = run.Metadata.Name

	export, err := formatter.WriteRunExport(*run.Metadata, run.Tracks, formatter.RunExportOpts{
		Dir:               filepath.Join(opts.OutputDir, run.Metadata.ID),
		Threshold:         opts.Threshold,
		IncludeThumbnails: opts.IncludeThumbnails,
	})
	if err != nil {
		result.Error = fmt.Errorf("export failed: %w", err)
		return result
	}

	result.Files = export.Files()
	result.Success = true
	return result
}

func writeManifest(result *BulkExportResult, path string) error {
	entries := make([]manifestEntry, len(result.Results))
	for i, r := range result.Results {
		entries[i] = manifestEntry{PlaylistExportResult: r}
		if r.Error != nil {
			entries[i].ErrorMessage = r.Error.Error()
		}
	}

	manifest := struct {
		*BulkExportResult
		Results     []manifestEntry `json:"results"`
		GeneratedAt time.Time       `json:"generated_at"`
	}{result, entries, time.Now().UTC()}

	data, err := shared.MarshalJSON(manifest, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return shared.WriteFileAtomic(path, data, 0644)
}
