// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/tunesync/internal/models"
)

// MockSource is a test double for [services.PlaylistSource] serving a single playlist.
type MockSource struct {
	ID          string
	Metadata    models.PlaylistMetadata
	Tracks      []models.Track
	ExtractErr  error
	MetadataErr error
	TracksErr   error
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) ExtractPlaylistID(ref string) (string, error) {
	if m.ExtractErr != nil {
		return "", m.ExtractErr
	}
	return m.ID, nil
}

func (m *MockSource) FetchMetadata(ctx context.Context, playlistID string) (*models.PlaylistMetadata, error) {
	if m.MetadataErr != nil {
		return nil, m.MetadataErr
	}
	meta := m.Metadata
	return &meta, nil
}

func (m *MockSource) FetchTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	return m.Tracks, nil
}

// MockSearcher is a test double for [services.CatalogSearcher] keyed by query string.
type MockSearcher struct {
	Results map[string][]models.MatchCandidate
	Errs    map[string]error
}

func (m *MockSearcher) Search(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error) {
	if err, ok := m.Errs[query]; ok {
		return nil, err
	}
	return m.Results[query], nil
}

// MockWriter is a test double for [services.PlaylistWriter] that records calls.
type MockWriter struct {
	mu        sync.Mutex
	CreateErr error
	AppendErr map[string]error // keyed by video id
	Created   []string         // titles passed to CreatePlaylist
	Desc      []string         // descriptions passed to CreatePlaylist
	Privacy   []string         // visibilities passed to CreatePlaylist
	Appended  []string         // video ids successfully appended
	Calls     int              // AppendTrack calls, successful or not
}

func (m *MockWriter) CreatePlaylist(ctx context.Context, title, description, visibility string) (*models.PlaylistHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = append(m.Created, title)
	m.Desc = append(m.Desc, description)
	m.Privacy = append(m.Privacy, visibility)
	id := fmt.Sprintf("PL%d", len(m.Created))
	return &models.PlaylistHandle{ID: id, Title: title, URL: "https://www.youtube.com/playlist?list=" + id}, nil
}

func (m *MockWriter) AppendTrack(ctx context.Context, playlistID, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if err, ok := m.AppendErr[videoID]; ok {
		return err
	}
	m.Appended = append(m.Appended, videoID)
	return nil
}

// StaticAuth is a test double for an authorizer with a fixed readiness.
type StaticAuth bool

func (s StaticAuth) IsReady() bool { return bool(s) }

// Matched builds a matched track fixture. An empty videoID yields the empty-match sentinel.
func Matched(title, artist, videoID string, confidence float64) models.MatchedTrack {
	mt := models.MatchedTrack{
		Track: models.Track{
			Title:     title,
			Artists:   []string{artist},
			Album:     title + " (Album)",
			SourceURL: "https://open.spotify.com/track/" + title,
		},
	}
	if videoID == "" {
		return mt
	}
	mt.Match = models.ScoredCandidate{
		MatchCandidate: models.MatchCandidate{
			Title:        title,
			Artists:      []string{artist},
			Album:        title + " (Album)",
			Duration:     "3:30",
			TargetURL:    "https://music.youtube.com/watch?v=" + videoID,
			TargetID:     videoID,
			ThumbnailURL: "https://img.example.com/" + videoID + ".jpg",
		},
		Confidence: confidence,
	}
	return mt
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
