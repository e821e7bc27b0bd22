package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/tunesync/internal/shared"
)

type staticClients struct{ client *http.Client }

func (s staticClients) Client(context.Context) *http.Client { return s.client }

func newYouTubeTestService(t *testing.T, h http.HandlerFunc) *YouTubeService {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewYouTubeService(staticClients{server.Client()}, server.URL)
}

func TestYouTubeService(t *testing.T) {
	t.Run("NewYouTubeService", func(t *testing.T) {
		t.Run("creates service with default URL", func(t *testing.T) {
			if svc := NewYouTubeService(staticClients{http.DefaultClient}, ""); svc.baseURL != youtubeBaseURL {
				t.Errorf("expected baseURL to be %s, got %s", youtubeBaseURL, svc.baseURL)
			}
		})

		t.Run("creates service with custom URL", func(t *testing.T) {
			customURL := "http://localhost:9000"
			if svc := NewYouTubeService(staticClients{http.DefaultClient}, customURL); svc.baseURL != customURL {
				t.Errorf("expected baseURL to be %s, got %s", customURL, svc.baseURL)
			}
		})
	})

	t.Run("PlaylistURL", func(t *testing.T) {
		if got := PlaylistURL("PL123"); got != "https://www.youtube.com/playlist?list=PL123" {
			t.Errorf("unexpected playlist URL %s", got)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		t.Run("sends snippet and status", func(t *testing.T) {
			svc := newYouTubeTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/playlists" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if r.URL.Query().Get("part") != "snippet,status" {
					t.Errorf("unexpected part %q", r.URL.Query().Get("part"))
				}

				var body youtubePlaylistRequest
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body.Snippet.Title != "Mix" || body.Snippet.Description != "desc" {
					t.Errorf("unexpected snippet %+v", body.Snippet)
				}
				if body.Snippet.DefaultLanguage != "en" {
					t.Errorf("expected default language en, got %q", body.Snippet.DefaultLanguage)
				}
				if body.Status.PrivacyStatus != "private" {
					t.Errorf("expected private visibility, got %q", body.Status.PrivacyStatus)
				}
				fmt.Fprint(w, `{"id":"PLnew","snippet":{"title":"Mix"}}`)
			})

			handle, err := svc.CreatePlaylist(context.Background(), "Mix", "desc", "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if handle.ID != "PLnew" || handle.Title != "Mix" || handle.URL != PlaylistURL("PLnew") {
				t.Errorf("unexpected handle %+v", handle)
			}
		})

		t.Run("explicit visibility", func(t *testing.T) {
			svc := newYouTubeTestService(t, func(w http.ResponseWriter, r *http.Request) {
				var body youtubePlaylistRequest
				json.NewDecoder(r.Body).Decode(&body)
				if body.Status.PrivacyStatus != "unlisted" {
					t.Errorf("expected unlisted, got %q", body.Status.PrivacyStatus)
				}
				fmt.Fprint(w, `{"id":"PL2"}`)
			})

			if _, err := svc.CreatePlaylist(context.Background(), "Mix", "", "unlisted"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("missing id", func(t *testing.T) {
			svc := newYouTubeTestService(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{}`)
			})

			if _, err := svc.CreatePlaylist(context.Background(), "Mix", "", ""); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("google error message", func(t *testing.T) {
			svc := newYouTubeTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"error":{"code":403,"message":"quota exceeded","errors":[{"reason":"quotaExceeded"}]}}`)
			})

			_, err := svc.CreatePlaylist(context.Background(), "Mix", "", "")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), "quota exceeded") {
				t.Errorf("expected message in error, got %v", err)
			}
		})
	})

	t.Run("AppendTrack", func(t *testing.T) {
		t.Run("sends resource id", func(t *testing.T) {
			svc := newYouTubeTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/playlistItems" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if r.URL.Query().Get("part") != "snippet" {
					t.Errorf("unexpected part %q", r.URL.Query().Get("part"))
				}

				var body youtubeItemRequest
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body.Snippet.PlaylistID != "PL1" {
					t.Errorf("expected playlist PL1, got %q", body.Snippet.PlaylistID)
				}
				if body.Snippet.ResourceID.Kind != "youtube#video" || body.Snippet.ResourceID.VideoID != "vid" {
					t.Errorf("unexpected resource id %+v", body.Snippet.ResourceID)
				}
				fmt.Fprint(w, `{"id":"item1"}`)
			})

			if err := svc.AppendTrack(context.Background(), "PL1", "vid"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("failure", func(t *testing.T) {
			svc := newYouTubeTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})

			if err := svc.AppendTrack(context.Background(), "PL1", "gone"); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})

	t.Run("ChannelTitle", func(t *testing.T) {
		t.Run("returns first channel", func(t *testing.T) {
			svc := newYouTubeTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("mine") != "true" {
					t.Errorf("expected mine=true")
				}
				fmt.Fprint(w, `{"items":[{"snippet":{"title":"My Channel"}}]}`)
			})

			title, err := svc.ChannelTitle(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if title != "My Channel" {
				t.Errorf("expected 'My Channel', got %q", title)
			}
		})

		t.Run("no channel", func(t *testing.T) {
			svc := newYouTubeTestService(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"items":[]}`)
			})

			if _, err := svc.ChannelTitle(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})
}
