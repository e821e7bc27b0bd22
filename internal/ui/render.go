package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/tunesync/internal/models"
)

func formatConfidence(c float64) string {
	return fmt.Sprintf("%.2f", c)
}

// RenderRunSummary describes a matched playlist in a few lines.
func RenderRunSummary(meta models.PlaylistMetadata, stats models.RunStats, threshold float64) string {
	var b strings.Builder

	b.WriteString(Title(meta.Name))
	b.WriteString("\n")
	if meta.Owner != "" {
		fmt.Fprintf(&b, "Owner: %s\n", meta.Owner)
	}
	fmt.Fprintf(&b, "Tracks: %d\n", stats.Total)
	fmt.Fprintf(&b, "Matches: %d (%.1f%%)\n", stats.Matched, stats.SuccessRate)
	fmt.Fprintf(&b, "High confidence (≥ %s): %d\n", formatConfidence(threshold), stats.HighConfidence)

	return b.String()
}

// RenderTrackLine renders one numbered matched track.
func RenderTrackLine(i int, t models.MatchedTrack, threshold float64) string {
	source := fmt.Sprintf("%3d. %s - %s", i, t.ArtistString(), t.Title)
	if !t.HasMatch() {
		if t.SearchErr != nil {
			return fmt.Sprintf("%s  %s", source, Error("search failed"))
		}
		return fmt.Sprintf("%s  %s", source, Help("no match"))
	}
	return fmt.Sprintf("%s  → %s - %s  [%s]",
		source, t.Match.ArtistString(), t.Match.Title, Confidence(t.Confidence(), threshold))
}

// RenderTracks renders every matched track, one per line.
func RenderTracks(tracks []models.MatchedTrack, threshold float64) string {
	lines := make([]string, len(tracks))
	for i, t := range tracks {
		lines[i] = RenderTrackLine(i+1, t, threshold)
	}
	return strings.Join(lines, "\n")
}

// RenderSyncResult describes a playlist creation attempt, including each failed track.
func RenderSyncResult(res models.PlaylistCreationResult) string {
	var b strings.Builder

	if !res.Success {
		b.WriteString(Error(fmt.Sprintf("✗ Sync failed: %s", res.Error)))
		b.WriteString("\n")
		fmt.Fprintf(&b, "Skipped: %d\n", res.SkippedCount)
		return b.String()
	}

	b.WriteString(Success("✓ Playlist created"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Name: %s\n", res.PlaylistName)
	fmt.Fprintf(&b, "URL: %s\n", res.PlaylistURL)
	fmt.Fprintf(&b, "Added: %d/%d\n", res.AddedCount, res.AttemptedCount)
	fmt.Fprintf(&b, "Skipped (below %s): %d\n", formatConfidence(res.ConfidenceThreshold), res.SkippedCount)

	if len(res.Failed) > 0 {
		b.WriteString(Warning(fmt.Sprintf("Failed to add %d tracks:", len(res.Failed))))
		b.WriteString("\n")
		for _, f := range res.Failed {
			fmt.Fprintf(&b, "  • %s - %s: %s\n", f.Artists, f.Title, f.Reason)
		}
	}

	return b.String()
}
