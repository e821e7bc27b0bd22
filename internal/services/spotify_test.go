package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/desertthunder/tunesync/internal/shared"
)

// newSpotifyServer serves the token endpoint at /token and delegates everything under /v1 to api.
func newSpotifyServer(t *testing.T, api http.HandlerFunc) (*httptest.Server, *SpotifyService) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("expected client_credentials grant, got %s", r.Form.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		api(w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	svc, err := NewSpotifyService(map[string]string{
		"client_id":     "id",
		"client_secret": "secret",
		"token_url":     server.URL + "/token",
		"base_url":      server.URL + "/v1",
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return server, svc
}

func trackItem(name string, artists ...string) map[string]any {
	as := make([]map[string]any, len(artists))
	for i, a := range artists {
		as[i] = map[string]any{"name": a}
	}
	return map[string]any{
		"track": map[string]any{
			"name":          name,
			"artists":       as,
			"album":         map[string]any{"name": name + " LP"},
			"external_urls": map[string]any{"spotify": "https://open.spotify.com/track/" + name},
		},
	}
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{"client_id": "id", "client_secret": "secret"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.baseURL != spotifyBaseURL {
				t.Errorf("expected default base URL, got %s", srv.baseURL)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("ExtractPlaylistID", func(t *testing.T) {
		svc := &SpotifyService{}
		tc := []struct {
			name    string
			ref     string
			want    string
			wantErr bool
		}{
			{name: "plain url", ref: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", want: "37i9dQZF1DXcBWIGoYBM5M"},
			{name: "with query string", ref: "https://open.spotify.com/playlist/abc123XYZ?si=deadbeef", want: "abc123XYZ"},
			{name: "embedded in text", ref: "listen: https://open.spotify.com/playlist/Zz9 now", want: "Zz9"},
			{name: "album url", ref: "https://open.spotify.com/album/abc", wantErr: true},
			{name: "http scheme", ref: "http://open.spotify.com/playlist/abc", wantErr: true},
			{name: "bare id", ref: "37i9dQZF1DXcBWIGoYBM5M", wantErr: true},
			{name: "empty", ref: "", wantErr: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				got, err := svc.ExtractPlaylistID(tt.ref)
				if tt.wantErr {
					if !errors.Is(err, shared.ErrInvalidReference) {
						t.Errorf("expected ErrInvalidReference, got %v", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if got != tt.want {
					t.Errorf("ExtractPlaylistID(%q) = %q, want %q", tt.ref, got, tt.want)
				}
			})
		}
	})

	t.Run("FetchTracks", func(t *testing.T) {
		t.Run("paginates and skips null tracks", func(t *testing.T) {
			var offsets []int
			server, svc := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/playlists/pl1/tracks" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				q := r.URL.Query()
				if q.Get("limit") != "100" {
					t.Errorf("expected limit 100, got %s", q.Get("limit"))
				}
				if q.Get("fields") != spotifyTrackFields {
					t.Errorf("expected field filter, got %s", q.Get("fields"))
				}
				offset, _ := strconv.Atoi(q.Get("offset"))
				offsets = append(offsets, offset)

				page := map[string]any{"next": nil}
				switch offset {
				case 0:
					page["items"] = []any{trackItem("One", "A", "B"), map[string]any{"track": nil}, trackItem("Two", "C")}
					page["next"] = "more"
				case 100:
					page["items"] = []any{trackItem("Three", "D")}
				default:
					t.Errorf("unexpected offset %d", offset)
				}
				json.NewEncoder(w).Encode(page)
			})
			_ = server

			tracks, err := svc.FetchTracks(context.Background(), "pl1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 100 {
				t.Errorf("expected offsets [0 100], got %v", offsets)
			}
			if len(tracks) != 3 {
				t.Fatalf("expected 3 tracks, got %d", len(tracks))
			}

			want := []string{"One", "Two", "Three"}
			for i, tr := range tracks {
				if tr.Title != want[i] {
					t.Errorf("track %d: expected %s, got %s", i, want[i], tr.Title)
				}
			}
			if tracks[0].ArtistString() != "A, B" {
				t.Errorf("expected joined artists 'A, B', got %q", tracks[0].ArtistString())
			}
			if tracks[0].Album != "One LP" {
				t.Errorf("expected album 'One LP', got %q", tracks[0].Album)
			}
			if tracks[0].SourceURL != "https://open.spotify.com/track/One" {
				t.Errorf("unexpected source URL %q", tracks[0].SourceURL)
			}
		})

		t.Run("empty playlist", func(t *testing.T) {
			_, svc := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"items":[],"next":null}`)
			})

			tracks, err := svc.FetchTracks(context.Background(), "empty")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 0 {
				t.Errorf("expected no tracks, got %d", len(tracks))
			}
		})

		t.Run("api error is catalog unavailable", func(t *testing.T) {
			_, svc := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})

			_, err := svc.FetchTracks(context.Background(), "missing")
			if !errors.Is(err, shared.ErrCatalogUnavailable) {
				t.Errorf("expected ErrCatalogUnavailable, got %v", err)
			}
		})

		t.Run("token failure is catalog unavailable", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))
			defer server.Close()

			svc, _ := NewSpotifyService(map[string]string{
				"client_id": "id", "client_secret": "bad",
				"token_url": server.URL + "/token", "base_url": server.URL + "/v1",
			})
			_, err := svc.FetchTracks(context.Background(), "pl")
			if !errors.Is(err, shared.ErrCatalogUnavailable) {
				t.Errorf("expected ErrCatalogUnavailable, got %v", err)
			}
		})
	})

	t.Run("FetchMetadata", func(t *testing.T) {
		t.Run("maps fields", func(t *testing.T) {
			_, svc := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/playlists/pl1" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.URL.Query().Get("fields") != spotifyPlaylistMeta {
					t.Errorf("expected metadata field filter, got %s", r.URL.Query().Get("fields"))
				}
				fmt.Fprint(w, `{"name":"Road Trip","description":"Songs","tracks":{"total":42},"owner":{"display_name":"sam"}}`)
			})

			meta, err := svc.FetchMetadata(context.Background(), "pl1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if meta.ID != "pl1" || meta.Name != "Road Trip" || meta.Description != "Songs" || meta.TrackCount != 42 || meta.Owner != "sam" {
				t.Errorf("unexpected metadata %+v", meta)
			}
		})

		t.Run("null description", func(t *testing.T) {
			_, svc := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"name":"X","description":null,"tracks":{"total":0},"owner":{"display_name":"o"}}`)
			})

			meta, err := svc.FetchMetadata(context.Background(), "pl1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if meta.Description != "" {
				t.Errorf("expected empty description, got %q", meta.Description)
			}
		})

		t.Run("error", func(t *testing.T) {
			_, svc := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			})
			if _, err := svc.FetchMetadata(context.Background(), "pl1"); !errors.Is(err, shared.ErrCatalogUnavailable) {
				t.Errorf("expected ErrCatalogUnavailable, got %v", err)
			}
		})
	})
}
