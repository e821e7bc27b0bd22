// Package repositories implements SQLite persistence for match runs and playlist syncs.
//
// Each repository handles writes inside a transaction with atomic sequence generation for
// human-readable ordering. Runs support soft deletes via deleted_at timestamps and exclude deleted
// records from queries. Sync records are append-only.
//
// Key Implementations:
//   - [RunRepository] : Match runs with their matched tracks, stored in playlist order
//   - [SyncRepository] : Playlist creation attempts, optionally linked to the run they came from
//
// Sequence numbers provide stable ordering (e.g., run #42, sync #15) independent of UUIDs and
// creation timestamps. The [NextSequence] function atomically increments per-table sequence counters
// in dedicated sequence tables.
package repositories
