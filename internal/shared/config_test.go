package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.YTMusic.ProxyURL != "http://127.0.0.1:8080" {
			t.Errorf("expected ytmusic proxy URL http://127.0.0.1:8080, got %s", config.YTMusic.ProxyURL)
		}

		if config.Matching.TopK != 3 {
			t.Errorf("expected top_k 3, got %d", config.Matching.TopK)
		}

		if config.Matching.Threshold != 0.7 {
			t.Errorf("expected threshold 0.7, got %v", config.Matching.Threshold)
		}

		if config.Cache.MaxAgeDays != 30 {
			t.Errorf("expected max_age_days 30, got %d", config.Cache.MaxAgeDays)
		}

		if len(config.Credentials.YouTube.Scopes) != 1 || config.Credentials.YouTube.Scopes[0] != "https://www.googleapis.com/auth/youtube" {
			t.Errorf("expected youtube scope, got %v", config.Credentials.YouTube.Scopes)
		}

		if config.Credentials.Spotify.Valid() {
			t.Error("expected empty spotify credentials to be invalid")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Server.Addr() != defaultConfig.Server.Addr() {
			t.Errorf("created config server address doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[matching]
threshold = 0.5
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected server address 0.0.0.0:8080, got %s", config.Server.Addr())
		}

		if !config.Credentials.Spotify.Valid() {
			t.Error("expected spotify credentials to be valid")
		}

		if config.Matching.Threshold != 0.5 {
			t.Errorf("expected threshold 0.5, got %v", config.Matching.Threshold)
		}

		if config.Matching.TopK != 3 {
			t.Errorf("expected unset top_k to keep default 3, got %d", config.Matching.TopK)
		}
	})

	t.Run("LoadConfig Invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[server\nport = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Matching.Workers = 4

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Matching.Workers != 4 {
			t.Errorf("expected workers 4, got %d", loaded.Matching.Workers)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env_id")
		t.Setenv("SPOTIFY_CLIENT_SECRET", "env_secret")
		t.Setenv("YOUTUBE_CLIENT_ID", "")

		config := DefaultConfig()
		config.Credentials.Spotify.ClientID = "file_id"
		config.Credentials.YouTube.ClientID = "file_yt"
		config.ApplyEnv()

		if config.Credentials.Spotify.ClientID != "env_id" {
			t.Errorf("expected env to win, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.ClientSecret != "env_secret" {
			t.Errorf("expected env secret, got %s", config.Credentials.Spotify.ClientSecret)
		}
		if config.Credentials.YouTube.ClientID != "file_yt" {
			t.Errorf("expected empty env value to be ignored, got %s", config.Credentials.YouTube.ClientID)
		}
	})

	t.Run("LoadEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("YOUTUBE_CLIENT_SECRET=from_dotenv\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv("YOUTUBE_CLIENT_SECRET", "")
		os.Unsetenv("YOUTUBE_CLIENT_SECRET")

		if err := LoadEnv(envPath, filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Fatalf("expected missing files to be skipped, got %v", err)
		}
		if got := os.Getenv("YOUTUBE_CLIENT_SECRET"); got != "from_dotenv" {
			t.Errorf("expected value from .env, got %q", got)
		}
	})

	t.Run("ResolvePaths", func(t *testing.T) {
		config := DefaultConfig()
		config.Cache.Dir = "/explicit/cache"
		config.ResolvePaths()

		if config.Cache.Dir != "/explicit/cache" {
			t.Errorf("expected explicit cache dir to be kept, got %s", config.Cache.Dir)
		}
		if !strings.Contains(config.Session.Path, AppName) {
			t.Errorf("expected session path under %s, got %s", AppName, config.Session.Path)
		}
		if !strings.HasSuffix(config.Database.Path, AppName+".db") {
			t.Errorf("expected database file %s.db, got %s", AppName, config.Database.Path)
		}
	})
}
