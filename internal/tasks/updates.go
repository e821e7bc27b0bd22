package tasks

import (
	"fmt"

	"github.com/desertthunder/tunesync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ResolvePlaylist Phase = iota
	FetchMetadata
	FetchTracks
	MatchTracks
	CreatePlaylist
	AddTracks
	ExportRun
)

func (p Phase) String() string {
	switch p {
	case ResolvePlaylist:
		return "resolve_playlist"
	case FetchMetadata:
		return "fetch_metadata"
	case FetchTracks:
		return "fetch_tracks"
	case MatchTracks:
		return "match_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case ExportRun:
		return "export_run"
	default:
		return ""
	}
}

func resolveUpdate(ref string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resolving playlist reference %s...", ref),
	}
}

func fetchMetadataUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchMetadata,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s from Spotify...", id),
	}
}

func fetchTracksUpdate(meta *models.PlaylistMetadata) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", meta.Name, meta.TrackCount),
		Data:    meta,
	}
}

func matchTracksUpdate(step, total int, mt *models.MatchedTrack) ProgressUpdate {
	if mt == nil {
		return ProgressUpdate{
			Phase:   MatchTracks,
			Step:    step,
			Total:   total,
			Message: "Searching for tracks on YouTube Music...",
		}
	}
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s (%.2f)", step, total, mt.ArtistString(), mt.Title, mt.Confidence()),
		Data:    *mt,
	}
}

func createPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q on YouTube...", name),
	}
}

func playlistCreatedUpdate(pl *models.PlaylistHandle) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Title, pl.ID),
		Data:    pl,
	}
}

func addTrackUpdate(step, total int, mt models.MatchedTrack, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   AddTracks,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, mt.Title, err),
		}
	}
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, mt.Title),
	}
}

func exportingUpdate(step, total int, ref string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportRun,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Matching: %s...", step, total, ref),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportRun,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportRun,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
