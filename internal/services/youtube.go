// YouTube Data API v3 implementation of [PlaylistWriter]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

const (
	youtubeBaseURL     = "https://www.googleapis.com/youtube/v3"
	youtubePlaylistURL = "https://www.youtube.com/playlist?list="
)

type youtubeSnippet struct {
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	DefaultLanguage string `json:"defaultLanguage,omitempty"`
}

type youtubeStatus struct {
	PrivacyStatus string `json:"privacyStatus"`
}

type youtubePlaylistRequest struct {
	Snippet youtubeSnippet `json:"snippet"`
	Status  youtubeStatus  `json:"status"`
}

type youtubeResourceID struct {
	Kind    string `json:"kind"`
	VideoID string `json:"videoId"`
}

type youtubeItemSnippet struct {
	PlaylistID string            `json:"playlistId"`
	ResourceID youtubeResourceID `json:"resourceId"`
}

type youtubeItemRequest struct {
	Snippet youtubeItemSnippet `json:"snippet"`
}

// YouTubePlaylist is the subset of a playlist resource returned on insert.
type YouTubePlaylist struct {
	ID      string         `json:"id"`
	Snippet youtubeSnippet `json:"snippet"`
}

// YouTubeAPIError is the Google API error envelope.
type YouTubeAPIError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// PlaylistURL returns the public URL of a YouTube playlist.
func PlaylistURL(id string) string {
	return youtubePlaylistURL + id
}

// YouTubeService implements [PlaylistWriter] against the YouTube Data API.
//
// Each request takes its client from the [ClientSource], so a token refreshed mid-run is picked up.
type YouTubeService struct {
	baseURL string
	clients ClientSource
}

// NewYouTubeService creates a YouTube Data API client.
func NewYouTubeService(clients ClientSource, baseURL string) *YouTubeService {
	if baseURL == "" {
		baseURL = youtubeBaseURL
	}
	return &YouTubeService{baseURL: baseURL, clients: clients}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

func (y *YouTubeService) doRequest(ctx context.Context, method, endpoint string, query url.Values, body, result any) error {
	apiURL := y.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, &payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := y.clients.Client(ctx).Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp) {
		var apiErr YouTubeAPIError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	return decodeJSON(resp.Body, result)
}

// CreatePlaylist inserts a playlist and returns its handle.
//
// Calls POST /playlists?part=snippet,status.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, title, description, visibility string) (*models.PlaylistHandle, error) {
	if visibility == "" {
		visibility = "private"
	}

	body := youtubePlaylistRequest{
		Snippet: youtubeSnippet{Title: title, Description: description, DefaultLanguage: "en"},
		Status:  youtubeStatus{PrivacyStatus: visibility},
	}

	query := url.Values{}
	query.Set("part", "snippet,status")

	var created YouTubePlaylist
	if err := y.doRequest(ctx, http.MethodPost, "/playlists", query, body, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("%w: playlist insert returned no id", shared.ErrAPIRequest)
	}

	return &models.PlaylistHandle{
		ID:    created.ID,
		Title: title,
		URL:   PlaylistURL(created.ID),
	}, nil
}

// AppendTrack inserts a video at the end of a playlist.
//
// Calls POST /playlistItems?part=snippet.
func (y *YouTubeService) AppendTrack(ctx context.Context, playlistID, videoID string) error {
	body := youtubeItemRequest{
		Snippet: youtubeItemSnippet{
			PlaylistID: playlistID,
			ResourceID: youtubeResourceID{Kind: "youtube#video", VideoID: videoID},
		},
	}

	query := url.Values{}
	query.Set("part", "snippet")

	return y.doRequest(ctx, http.MethodPost, "/playlistItems", query, body, nil)
}

// ChannelTitle returns the authorized user's channel title.
//
// Calls GET /channels?part=snippet&mine=true.
func (y *YouTubeService) ChannelTitle(ctx context.Context) (string, error) {
	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("mine", "true")

	var resp struct {
		Items []struct {
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := y.doRequest(ctx, http.MethodGet, "/channels", query, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("%w: no channel for authorized user", shared.ErrAPIRequest)
	}
	return resp.Items[0].Snippet.Title, nil
}
