// YouTube Music search implementation of [CatalogSearcher]
//
// Communicates with the FastAPI proxy server wrapping the ytmusicapi Python library.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

const (
	defaultYTMusicURL = "http://localhost:8080"
	ytMusicWatchURL   = "https://music.youtube.com/watch?v="
)

// YouTubeImage represents an image/thumbnail from YouTube Music.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeSearchResult is one song result from ytmusicapi's search with filter=songs.
type YouTubeSearchResult struct {
	VideoID    string          `json:"videoId"`
	Title      string          `json:"title"`
	Artists    []YouTubeArtist `json:"artists"`
	Album      *youtubeAlbum   `json:"album"`
	Duration   string          `json:"duration"`
	Thumbnails []YouTubeImage  `json:"thumbnails"`
}

// ToCandidate converts a search result into a [models.MatchCandidate].
//
// The largest thumbnail is the last one ytmusicapi returns.
func (r YouTubeSearchResult) ToCandidate() models.MatchCandidate {
	c := models.MatchCandidate{
		Title:    r.Title,
		Artists:  make([]string, 0, len(r.Artists)),
		Duration: r.Duration,
		TargetID: r.VideoID,
	}
	for _, a := range r.Artists {
		c.Artists = append(c.Artists, a.Name)
	}
	if r.Album != nil {
		c.Album = r.Album.Name
	}
	if r.VideoID != "" {
		c.TargetURL = ytMusicWatchURL + r.VideoID
	}
	if n := len(r.Thumbnails); n > 0 {
		c.ThumbnailURL = r.Thumbnails[n-1].URL
	}
	return c
}

// YTMusicService implements [CatalogSearcher] via the ytmusicapi proxy.
type YTMusicService struct {
	baseURL    string
	httpClient *http.Client
}

// NewYTMusicService creates a new YouTube Music search client. timeout <= 0 means no client timeout.
func NewYTMusicService(baseURL string, timeout time.Duration) *YTMusicService {
	if baseURL == "" {
		baseURL = defaultYTMusicURL
	}

	return &YTMusicService{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the service name.
func (y *YTMusicService) Name() string {
	return "YouTube Music"
}

func (y *YTMusicService) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp) {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("youtube music API error (status %d): %s", resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("youtube music API error: status %d", resp.StatusCode)
	}

	return decodeJSON(resp.Body, result)
}

// Search runs a song-filtered search and returns up to limit candidates in the order the catalog ranked them.
//
// Calls GET /api/search?q={query}&filter=songs&limit={limit} on the proxy.
func (y *YTMusicService) Search(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("filter", "songs")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var results []YouTubeSearchResult
	if err := y.doRequest(ctx, "/api/search?"+params.Encode(), &results); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", shared.ErrSearchFailed, query, err)
	}

	candidates := make([]models.MatchCandidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, r.ToCandidate())
	}
	return candidates, nil
}
