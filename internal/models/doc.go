// Package models defines the records that flow through the tunesync pipeline.
//
// The package contains two categories of types:
//
// 1. Pipeline values: immutable records produced and consumed by each stage
//   - [Track] : a source playlist entry (title, ordered artists, album, source URL)
//   - [PlaylistMetadata] : source playlist name, description, size and owner
//   - [MatchCandidate] / [ScoredCandidate] : target catalog search hits and their confidence
//   - [MatchedTrack] : a source track joined with its best candidate, or the empty-match sentinel
//   - [PlaylistCreationResult] : the structured outcome of a playlist sync
//
// 2. Persistent entities: database-backed history records implementing [Model]
//   - [Run] : a stored match run with its tracks and [RunStats]
//   - [SyncRecord] : a stored playlist sync result
//
// Optional values are represented as empty strings rather than pointers. A missing
// thumbnail URL, album, or target id is "".
package models
