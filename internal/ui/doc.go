// Package ui renders matching results in the terminal and implements the interactive review screen
// using bubbletea's Elm architecture.
//
// The review TUI walks through one playlist:
//  1. [MatchView] : Live progress while the playlist is fetched and matched
//  2. [TrackListView] : Browse matches with confidence-colored scores
//  3. [ConfirmView] : Confirm creating the YouTube playlist
//  4. [SyncView] : Monitor tracks being added
//  5. [ResultView] : Display the created playlist and any failed tracks
//
// The [Model] implements bubbletea's standard Init/Update/View pattern. Progress updates flow through
// a channel from [tasks.Pipeline] and [tasks.PlaylistBuilder], so neither blocks on rendering.
//
// Confidence colors follow [ConfidenceLevel]: green at or above the sync threshold, yellow at or
// above [MediumConfidence], red below.
package ui
