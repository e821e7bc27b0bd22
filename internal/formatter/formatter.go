// package formatter provides functions to export matched playlists to files (CSV, plain text, URL lists)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/dustin/go-humanize"
)

var baseColumns = []string{
	"track_name", "artist_name", "album_name", "spotify_url",
	"youtube_title", "youtube_artist", "youtube_album", "youtube_duration",
	"youtube_url", "youtube_video_id",
}

var thumbnailColumns = []string{"youtube_thumbnail", "youtube_thumbnail_local"}

// Columns returns the CSV header. Thumbnail columns sit before match_confidence when included.
func Columns(includeThumbnails bool) []string {
	cols := append([]string{}, baseColumns...)
	if includeThumbnails {
		cols = append(cols, thumbnailColumns...)
	}
	return append(cols, "match_confidence")
}

// FormatConfidence renders a confidence with the shortest exact representation.
func FormatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

func record(t models.MatchedTrack, includeThumbnails bool) []string {
	m := t.Match
	row := []string{
		t.Title, t.ArtistString(), t.Album, t.SourceURL,
		m.Title, m.ArtistString(), m.Album, m.Duration,
		m.TargetURL, m.TargetID,
	}
	if includeThumbnails {
		row = append(row, m.ThumbnailURL, t.ThumbnailPath)
	}
	return append(row, FormatConfidence(m.Confidence))
}

// ExportToCSV writes one row per matched track. Unmatched tracks keep their source columns and leave
// the target columns empty with a confidence of 0.
func ExportToCSV(tracks []models.MatchedTrack, includeThumbnails bool) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(Columns(includeThumbnails)); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range tracks {
		if err := writer.Write(record(t, includeThumbnails)); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportURLs lists the non-empty target URLs, one per line, in playlist order.
func ExportURLs(tracks []models.MatchedTrack) []byte {
	urls := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.HasMatch() {
			urls = append(urls, t.Match.TargetURL)
		}
	}
	return []byte(strings.Join(urls, "\n"))
}

// ExportToText renders a plain text report of a run.
func ExportToText(meta models.PlaylistMetadata, tracks []models.MatchedTrack, stats models.RunStats) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", meta.Name)
	if meta.Owner != "" {
		fmt.Fprintf(&buf, "Owner: %s\n", meta.Owner)
	}
	if meta.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", meta.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n", stats.Total)
	fmt.Fprintf(&buf, "Matches: %d (%.1f%%)\n", stats.Matched, stats.SuccessRate)
	fmt.Fprintf(&buf, "High confidence: %d\n\n", stats.HighConfidence)

	for i, t := range tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, t.ArtistString(), t.Title)
		if !t.HasMatch() {
			buf.WriteString("   no match\n")
			continue
		}
		fmt.Fprintf(&buf, "   confidence: %.2f\n", t.Confidence())
		fmt.Fprintf(&buf, "   youtube: %s - %s\n", t.Match.Title, t.Match.ArtistString())
		fmt.Fprintf(&buf, "   url: %s\n", t.Match.TargetURL)
	}

	return buf.Bytes()
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(meta models.PlaylistMetadata) ([]byte, error) {
	return shared.MarshalJSON(meta, true)
}

// BaseName derives a file name stem from a playlist name.
func BaseName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "playlist"
	}
	r := strings.NewReplacer(" ", "_", "/", "_", string(filepath.Separator), "_")
	return r.Replace(name)
}

// RunExportResult contains the paths of files created by WriteRunExport. Optional files are empty
// when there was nothing to write.
type RunExportResult struct {
	FullCSV           string
	HighConfidenceCSV string
	URLsFile          string
	MetadataFile      string
	ReportFile        string
}

// Files lists every file that was written.
func (r *RunExportResult) Files() []string {
	var files []string
	for _, f := range []string{r.FullCSV, r.HighConfidenceCSV, r.URLsFile, r.MetadataFile, r.ReportFile} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// RunExportOpts configures WriteRunExport.
type RunExportOpts struct {
	Dir               string  // Output directory, created if missing
	Threshold         float64 // High-confidence cutoff
	IncludeThumbnails bool    // Add thumbnail columns to the CSVs
}

// WriteRunExport writes the files for one run into opts.Dir.
//
// Creates {base}_with_youtube.csv, {base}_metadata.json and {base}_report.txt, plus
// {base}_high_confidence.csv and {base}_youtube_urls.txt when they would not be empty.
func WriteRunExport(meta models.PlaylistMetadata, tracks []models.MatchedTrack, opts RunExportOpts) (*RunExportResult, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := filepath.Join(opts.Dir, BaseName(meta.Name))
	result := &RunExportResult{}

	full, err := ExportToCSV(tracks, opts.IncludeThumbnails)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}
	result.FullCSV = base + "_with_youtube.csv"
	if err := os.WriteFile(result.FullCSV, full, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	high := make([]models.MatchedTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.Confidence() >= opts.Threshold {
			high = append(high, t)
		}
	}
	if len(high) > 0 {
		data, err := ExportToCSV(high, opts.IncludeThumbnails)
		if err != nil {
			return nil, fmt.Errorf("failed to generate CSV: %w", err)
		}
		result.HighConfidenceCSV = base + "_high_confidence.csv"
		if err := os.WriteFile(result.HighConfidenceCSV, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write CSV file: %w", err)
		}
	}

	if urls := ExportURLs(tracks); len(urls) > 0 {
		result.URLsFile = base + "_youtube_urls.txt"
		if err := os.WriteFile(result.URLsFile, urls, 0644); err != nil {
			return nil, fmt.Errorf("failed to write URL list: %w", err)
		}
	}

	metadataJSON, err := ToMetadataJSON(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}
	result.MetadataFile = base + "_metadata.json"
	if err := os.WriteFile(result.MetadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	result.ReportFile = base + "_report.txt"
	report := ExportToText(meta, tracks, models.ComputeStats(tracks, opts.Threshold))
	if err := os.WriteFile(result.ReportFile, report, 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	return result, nil
}

// FormatBytes renders a byte count in IEC units, e.g. "1.2 MiB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// FormatAge renders a timestamp relative to now, e.g. "3 hours ago".
func FormatAge(t time.Time) string {
	return humanize.Time(t)
}

// FormatCount renders an integer with thousands separators.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}
