// Spotify Web API implementation of [PlaylistSource]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyPageSize     = 100
	spotifyTrackFields  = "items(track(name,artists(name),album(name),external_urls.spotify)),next"
	spotifyPlaylistMeta = "name,description,tracks.total,owner.display_name"
)

var spotifyPlaylistPattern = regexp.MustCompile(`https://open\.spotify\.com/playlist/([a-zA-Z0-9]+)`)

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	Name string `json:"name"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents the track fields requested from a playlist page.
type SpotifyTrack struct {
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

// SpotifyPlaylistTrack wraps a track within a playlist. Track is nil for removed or local items.
type SpotifyPlaylistTrack struct {
	Track *SpotifyTrack `json:"track"`
}

// SpotifyTrackPage is one page of playlist items.
type SpotifyTrackPage struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Next  *string                `json:"next"`
}

type spotifyOwner struct {
	DisplayName string `json:"display_name"`
}

type spotifyTrackTotal struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents the playlist metadata fields.
type SpotifyPlaylist struct {
	Name        string            `json:"name"`
	Description *string           `json:"description"`
	Tracks      spotifyTrackTotal `json:"tracks"`
	Owner       spotifyOwner      `json:"owner"`
}

// ToTrack normalizes a Spotify track into a [models.Track].
func (t SpotifyTrack) ToTrack() models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.Track{
		Title:     t.Name,
		Artists:   artists,
		Album:     t.Album.Name,
		SourceURL: t.ExternalURLs.Spotify,
	}
}

// SpotifyService implements [PlaylistSource] using the client-credentials grant.
//
// No user authorization is involved, so only public and collaborative playlists are readable.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
}

// NewSpotifyService creates a Spotify client from credentials.
//
// Required keys are client_id and client_secret. Optional keys token_url and base_url override the
// Spotify endpoints.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	tokenURL := credentials["token_url"]
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	baseURL := credentials["base_url"]
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}

	return &SpotifyService{
		baseURL:    baseURL,
		httpClient: config.Client(context.Background()),
	}, nil
}

// Name returns the service name.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// ExtractPlaylistID finds a playlist URL anywhere in ref and returns its id.
func (s *SpotifyService) ExtractPlaylistID(ref string) (string, error) {
	m := spotifyPlaylistPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", fmt.Errorf("%w: %q", shared.ErrInvalidReference, ref)
	}
	return m[1], nil
}

// doRequest performs an authenticated GET against the Spotify API and decodes the JSON response.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp) {
		return fmt.Errorf("spotify API error: status %d", resp.StatusCode)
	}

	return decodeJSON(resp.Body, result)
}

// FetchTracks pages through the playlist 100 items at a time until the API reports no next page.
//
// Items with a null track are skipped.
func (s *SpotifyService) FetchTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	var tracks []models.Track

	for offset := 0; ; offset += spotifyPageSize {
		query := url.Values{}
		query.Set("limit", fmt.Sprint(spotifyPageSize))
		query.Set("offset", fmt.Sprint(offset))
		query.Set("fields", spotifyTrackFields)

		var page SpotifyTrackPage
		if err := s.doRequest(ctx, endpoint, query, &page); err != nil {
			return nil, fmt.Errorf("%w: playlist %s at offset %d: %v", shared.ErrCatalogUnavailable, playlistID, offset, err)
		}

		for _, item := range page.Items {
			if item.Track == nil {
				continue
			}
			tracks = append(tracks, item.Track.ToTrack())
		}

		if page.Next == nil {
			break
		}
	}

	return tracks, nil
}

// FetchMetadata retrieves the playlist's name, description, size and owner in one request.
func (s *SpotifyService) FetchMetadata(ctx context.Context, playlistID string) (*models.PlaylistMetadata, error) {
	query := url.Values{}
	query.Set("fields", spotifyPlaylistMeta)

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, "/playlists/"+url.PathEscape(playlistID), query, &playlist); err != nil {
		return nil, fmt.Errorf("%w: playlist %s: %v", shared.ErrCatalogUnavailable, playlistID, err)
	}

	meta := &models.PlaylistMetadata{
		ID:         playlistID,
		Name:       playlist.Name,
		TrackCount: playlist.Tracks.Total,
		Owner:      playlist.Owner.DisplayName,
	}
	if playlist.Description != nil {
		meta.Description = *playlist.Description
	}
	return meta, nil
}
