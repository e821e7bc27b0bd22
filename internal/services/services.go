// package services defines clients for the HTTP APIs tunesync talks to
//
// Spotify (source), YouTube Music search (via proxy), YouTube Data API (playlist writes)
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/tunesync/internal/models"
)

// PlaylistSource extracts playlists from the source catalog.
type PlaylistSource interface {
	// ExtractPlaylistID finds the playlist id in a playlist URL.
	ExtractPlaylistID(ref string) (string, error)

	// FetchTracks returns every track in the playlist, in catalog order.
	FetchTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// FetchMetadata returns name, description, track count and owner.
	FetchMetadata(ctx context.Context, playlistID string) (*models.PlaylistMetadata, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// CatalogSearcher runs free-text song searches against the target catalog.
type CatalogSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error)
}

// PlaylistWriter creates playlists on the target catalog.
type PlaylistWriter interface {
	// CreatePlaylist creates an empty playlist with the given visibility ("private", "unlisted", "public").
	CreatePlaylist(ctx context.Context, title, description, visibility string) (*models.PlaylistHandle, error)

	// AppendTrack appends one video to the end of a playlist.
	AppendTrack(ctx context.Context, playlistID, videoID string) error
}

// ClientSource yields an HTTP client carrying the caller's credentials.
type ClientSource interface {
	Client(ctx context.Context) *http.Client
}

// decodeJSON decodes a response body into result, tolerating a nil result.
func decodeJSON(body io.Reader, result any) error {
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func isSuccess(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
