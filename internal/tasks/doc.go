// Package tasks orchestrates playlist operations between Spotify and YouTube with real-time progress reporting.
//
// # Core Operations
//
//  1. [Pipeline.Run] : Spotify playlist → matched tracks
//     - Resolves the playlist reference to an id
//     - Fetches metadata and every track from Spotify
//     - Searches each track on YouTube Music and keeps the best-scoring candidate
//     - Optionally records the run through a [RunRecorder]
//
//  2. [PlaylistBuilder.Sync] : matched tracks → private YouTube playlist
//     - Requires a ready [Authorizer]
//     - Appends every track at or above the confidence threshold, once and in order
//     - Collects per-track failures instead of stopping
//
//  3. [Pipeline.BulkExport] : several playlists → export files
//     - Runs the pipeline for each reference on a small, rate limited worker pool
//     - Writes each run's CSV, URL list, metadata and report into its own directory
//     - Writes export_manifest.json summarizing every playlist
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for richer
// rendering. Updates use select with default, so a slow reader drops updates rather than stalling a run.
package tasks
