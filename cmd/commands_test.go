package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tunesync/internal/auth"
	"github.com/desertthunder/tunesync/internal/imagecache"
	"github.com/desertthunder/tunesync/internal/repositories"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/tasks"
	tu "github.com/desertthunder/tunesync/internal/testing"
)

func TestMatch(t *testing.T) {
	t.Run("exports and records a single playlist", func(t *testing.T) {
		f := newFixture(t)
		dir := t.TempDir()

		if err := f.run("match", "--out", dir, "pl1"); err != nil {
			t.Fatalf("match failed: %v", err)
		}

		out := f.output.String()
		for _, want := range []string{"Daft Mix", "Matches: 2", "Run saved as", "tunesync sync --run"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}

		tu.AssertFileExists(t, filepath.Join(dir, "Daft_Mix_with_youtube.csv"))
		tu.AssertFileExists(t, filepath.Join(dir, "Daft_Mix_high_confidence.csv"))
		tu.AssertFileExists(t, filepath.Join(dir, "Daft_Mix_youtube_urls.txt"))
		tu.AssertFileExists(t, filepath.Join(dir, "Daft_Mix_metadata.json"))
		tu.AssertFileExists(t, filepath.Join(dir, "Daft_Mix_report.txt"))

		runs, err := repositories.NewRunRepository(f.db).List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 stored run, got %d", len(runs))
		}
		if runs[0].Stats.Matched != 2 || runs[0].Stats.HighConfidence != 1 || runs[0].Threshold != 0.7 {
			t.Errorf("unexpected stored run %+v", runs[0].Stats)
		}
	})

	t.Run("prints JSON", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("match", "--json", "--out", t.TempDir(), "--threshold", "0.5", "pl1"); err != nil {
			t.Fatalf("match failed: %v", err)
		}

		var got matchOutput
		if err := json.Unmarshal(f.output.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, f.output.String())
		}
		if got.Stats.Total != 3 || got.Stats.HighConfidence != 2 || got.Threshold != 0.5 {
			t.Errorf("unexpected stats %+v at threshold %v", got.Stats, got.Threshold)
		}
		if len(got.Tracks) != 3 || got.Tracks[0].Match.TargetID != "omt" || got.Tracks[1].HasMatch() {
			t.Errorf("unexpected tracks %+v", got.Tracks)
		}
		if got.RunID == "" || len(got.Files) != 5 {
			t.Errorf("expected run id and 5 files, got %q and %v", got.RunID, got.Files)
		}
	})

	t.Run("matches several playlists", func(t *testing.T) {
		f := newFixture(t)
		dir := t.TempDir()

		if err := f.run("match", "--out", dir, "--workers", "1", "--rate", "100", "a", "b"); err != nil {
			t.Fatalf("match failed: %v", err)
		}

		if !strings.Contains(f.output.String(), "Succeeded: 2/2") {
			t.Errorf("expected summary, got:\n%s", f.output.String())
		}
		manifest := tu.MustReadFile(t, filepath.Join(dir, "export_manifest.json"))
		if !strings.Contains(manifest, `"successful_exports": 2`) {
			t.Errorf("unexpected manifest %s", manifest)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "pl1", "Daft_Mix_with_youtube.csv"))
	})

	t.Run("requires a playlist", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("match"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("returns extraction errors", func(t *testing.T) {
		f := newFixture(t)
		f.runner.source = &tu.MockSource{ExtractErr: shared.ErrInvalidReference}

		if err := f.run("match", "--out", t.TempDir(), "not a playlist"); !errors.Is(err, shared.ErrInvalidReference) {
			t.Errorf("expected ErrInvalidReference, got %v", err)
		}
	})
}

func TestSync(t *testing.T) {
	t.Run("syncs the latest stored run", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("match", "--out", t.TempDir(), "pl1"); err != nil {
			t.Fatalf("match failed: %v", err)
		}
		f.output.Reset()

		if err := f.run("sync", "--run", "latest"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		if len(f.writer.Created) != 1 || f.writer.Created[0] != "Daft Mix" {
			t.Errorf("expected playlist named after the source, got %v", f.writer.Created)
		}
		if f.writer.Privacy[0] != tasks.DefaultVisibility {
			t.Errorf("expected private playlist, got %s", f.writer.Privacy[0])
		}
		if strings.Join(f.writer.Appended, ",") != "omt" {
			t.Errorf("expected only the high-confidence track, got %v", f.writer.Appended)
		}

		run, err := repositories.NewRunRepository(f.db).Latest()
		if err != nil {
			t.Fatalf("failed to load run: %v", err)
		}
		syncs, err := repositories.NewSyncRepository(f.db).List(map[string]any{"run_id": run.ID()})
		if err != nil {
			t.Fatalf("failed to list syncs: %v", err)
		}
		if len(syncs) != 1 || !syncs[0].Result.Success || syncs[0].Result.AddedCount != 1 {
			t.Errorf("expected one successful recorded sync, got %+v", syncs)
		}
	})

	t.Run("matches and syncs a playlist reference", func(t *testing.T) {
		f := newFixture(t)

		err := f.run("sync", "--name", "Road Trip", "--description", "for the car", "--threshold", "0.5", "--json", "pl1")
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		if f.writer.Created[0] != "Road Trip" || f.writer.Desc[0] != "for the car" {
			t.Errorf("unexpected playlist %v %v", f.writer.Created, f.writer.Desc)
		}
		if strings.Join(f.writer.Appended, ",") != "omt,dl" {
			t.Errorf("expected both matches in order, got %v", f.writer.Appended)
		}
		if !strings.Contains(f.output.String(), `"successfully_added": 2`) {
			t.Errorf("expected JSON result, got %s", f.output.String())
		}
	})

	t.Run("requires authorization", func(t *testing.T) {
		f := newFixture(t)
		f.session.ready = false

		err := f.run("sync", "pl1")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
		if len(f.writer.Created) != 0 {
			t.Error("no playlist should be created without authorization")
		}

		syncs, err := repositories.NewSyncRepository(f.db).List(nil)
		if err != nil {
			t.Fatalf("failed to list syncs: %v", err)
		}
		if len(syncs) != 1 || syncs[0].Result.Error != tasks.ErrMsgAuthRequired {
			t.Errorf("expected the failed attempt to be recorded, got %+v", syncs)
		}
	})

	t.Run("reports playlist creation failures", func(t *testing.T) {
		f := newFixture(t)
		f.writer.CreateErr = errors.New("quota exceeded")

		err := f.run("sync", "pl1")
		if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
			t.Errorf("expected creation error, got %v", err)
		}
	})

	t.Run("requires a run or playlist", func(t *testing.T) {
		f := newFixture(t)
		err := f.run("sync")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Fatalf("expected ErrMissingArgument, got %v", err)
		}
		if !strings.Contains(err.Error(), "Spotify playlist url, or --run") {
			t.Errorf("expected usage hint in error, got %v", err)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("sync", "--run", "missing"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	if err := f.run("match", "--out", t.TempDir(), "pl1"); err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if err := f.run("sync", "--run", "latest"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	run, err := repositories.NewRunRepository(f.db).Latest()
	if err != nil {
		t.Fatalf("failed to load run: %v", err)
	}

	t.Run("list", func(t *testing.T) {
		f.output.Reset()
		if err := f.run("history", "list"); err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, run.ID()) || !strings.Contains(out, "2/3 matched") {
			t.Errorf("unexpected listing:\n%s", out)
		}
	})

	t.Run("list filtered", func(t *testing.T) {
		f.output.Reset()
		if err := f.run("history", "list", "--playlist", "other", "--json"); err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		if strings.TrimSpace(f.output.String()) != "[]" {
			t.Errorf("expected no runs, got %s", f.output.String())
		}
	})

	t.Run("show", func(t *testing.T) {
		f.output.Reset()
		if err := f.run("history", "show", "--json", "latest"); err != nil {
			t.Fatalf("history show failed: %v", err)
		}

		var view runView
		if err := json.Unmarshal(f.output.Bytes(), &view); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if view.ID != run.ID() || len(view.Tracks) != 3 || len(view.Syncs) != 1 {
			t.Errorf("unexpected view %+v", view)
		}
		if view.Syncs[0].Result.PlaylistURL == "" {
			t.Error("expected the sync's playlist url")
		}
	})

	t.Run("show plain", func(t *testing.T) {
		f.output.Reset()
		if err := f.run("history", "show", run.ID()); err != nil {
			t.Fatalf("history show failed: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "One More Time") || !strings.Contains(out, "1/1 added") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := f.run("history", "delete", run.ID()); err != nil {
			t.Fatalf("history delete failed: %v", err)
		}
		if err := f.run("history", "show", run.ID()); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound after delete, got %v", err)
		}
		if err := f.run("history", "delete", run.ID()); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound deleting twice, got %v", err)
		}
	})
}

// freePort reserves an ephemeral port and releases it for the callback server.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestAuth(t *testing.T) {
	newAuthFixture := func(t *testing.T, query string) *fixture {
		f := newFixture(t)
		f.session.ready = false
		f.session.state = auth.StateAbsent

		port := freePort(t)
		config := f.runner.config
		config.Server.Host = "127.0.0.1"
		config.Server.Port = port
		config.Credentials.YouTube.RedirectURI = fmt.Sprintf("http://127.0.0.1:%d/oauth/callback", port)
		f.session.url = config.Credentials.YouTube.RedirectURI + "?" + query

		f.runner.browse = func(u string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(u)
			if err != nil {
				return err
			}
			return resp.Body.Close()
		}
		return f
	}

	t.Run("youtube completes the flow", func(t *testing.T) {
		f := newAuthFixture(t, "state=state-1&code=abc")

		if err := f.run("auth", "youtube"); err != nil {
			t.Fatalf("auth failed: %v", err)
		}
		if len(f.session.codes) != 1 || f.session.codes[0] != "abc" {
			t.Errorf("expected the code to be exchanged, got %v", f.session.codes)
		}
		if !strings.Contains(f.output.String(), "Authorization successful") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}
	})

	t.Run("youtube reports a denied consent", func(t *testing.T) {
		f := newAuthFixture(t, "state=state-1&error=access_denied")

		err := f.run("auth", "youtube")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if len(f.session.codes) != 0 {
			t.Error("no code should be exchanged")
		}
	})

	t.Run("youtube rejects a forged state", func(t *testing.T) {
		f := newAuthFixture(t, "state=forged&code=abc")

		if err := f.run("auth", "youtube"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("status", func(t *testing.T) {
		f := newFixture(t)
		f.session.ready = false
		f.session.state = auth.StateAbsent

		if err := f.run("auth", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "State: absent") || !strings.Contains(out, "Not authorized") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("logout", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("auth", "logout"); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		if f.session.loggedOut != 1 || f.session.ready {
			t.Error("expected the session to be cleared")
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		f := newFixture(t)
		f.runner.session = nil
		f.runner.writer = nil
		f.runner.config.Credentials.YouTube.ClientID = ""

		if err := f.run("auth", "status"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestCache(t *testing.T) {
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG fake"))
	}))
	t.Cleanup(images.Close)

	f := newFixture(t)
	cache, err := imagecache.New(t.TempDir(), imagecache.WithBatchInterval(time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	f.runner.images = cache

	t.Run("fetch", func(t *testing.T) {
		if err := f.run("cache", "fetch", images.URL+"/a.png", images.URL+"/b.png"); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if strings.Count(f.output.String(), "✓") != 2 {
			t.Errorf("expected two fetched images, got:\n%s", f.output.String())
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		err := f.run("cache", "fetch", images.URL+"/missing.jpg")
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
	})

	t.Run("stats", func(t *testing.T) {
		f.output.Reset()
		if err := f.run("cache", "stats"); err != nil {
			t.Fatalf("stats failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "Files: 2") {
			t.Errorf("unexpected stats:\n%s", f.output.String())
		}
	})

	t.Run("evict", func(t *testing.T) {
		entries, err := os.ReadDir(cache.Dir())
		if err != nil {
			t.Fatal(err)
		}
		old := time.Now().Add(-40 * 24 * time.Hour)
		for _, e := range entries {
			if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
				os.Chtimes(filepath.Join(cache.Dir(), e.Name()), old, old)
				break
			}
		}

		f.output.Reset()
		if err := f.run("cache", "evict"); err != nil {
			t.Fatalf("evict failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "Removed 1 files older than 30 days") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	config := newTestConfig(t)
	configPath := filepath.Join(dir, "tunesync", "config.toml")
	output := &strings.Builder{}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     shared.DiscardLogger(),
		Output:     output,
	})
	if err := runner.app().Run(t.Context(), []string{"tunesync", "setup"}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, configPath)
	tu.AssertFileExists(t, config.Database.Path)

	out := output.String()
	for _, want := range []string{"Config file created", "Database ready", "Spotify credentials missing"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}
