package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// AppName names the per-user data and cache directories.
const AppName = "tunesync"

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	YTMusic     YTMusicConfig     `toml:"ytmusic"`
	Matching    MatchingConfig    `toml:"matching"`
	Cache       CacheConfig       `toml:"cache"`
	Session     SessionConfig     `toml:"session"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify client-credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Valid reports whether both halves of the client credentials are present.
func (s SpotifyConfig) Valid() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// YouTubeConfig contains the Google OAuth client used for playlist writes.
type YouTubeConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
}

// Valid reports whether both halves of the OAuth client are present.
func (y YouTubeConfig) Valid() bool {
	return y.ClientID != "" && y.ClientSecret != ""
}

// YTMusicConfig points at the ytmusicapi search proxy.
type YTMusicConfig struct {
	ProxyURL       string `toml:"proxy_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// MatchingConfig holds matcher defaults.
type MatchingConfig struct {
	TopK      int     `toml:"top_k"`
	Threshold float64 `toml:"threshold"`
	Workers   int     `toml:"workers"`
}

// CacheConfig holds image cache settings.
type CacheConfig struct {
	Dir        string `toml:"dir"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// SessionConfig holds the OAuth session file location.
type SessionConfig struct {
	Path string `toml:"path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for the callback listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes the configuration as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// LoadEnv loads variables from the given .env files into the process environment.
//
// Missing files are not an error. Variables already set in the environment are never overwritten.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays credentials found in the environment onto the config.
func (c *Config) ApplyEnv() {
	overlay := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	overlay(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	overlay(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	overlay(&c.Credentials.YouTube.ClientID, "YOUTUBE_CLIENT_ID")
	overlay(&c.Credentials.YouTube.ClientSecret, "YOUTUBE_CLIENT_SECRET")
}

// ResolvePaths fills empty filesystem locations with per-user XDG defaults.
func (c *Config) ResolvePaths() {
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(xdg.CacheHome, AppName, "images")
	}
	if c.Session.Path == "" {
		c.Session.Path = filepath.Join(xdg.DataHome, AppName, "youtube_session.json")
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(xdg.DataHome, AppName, AppName+".db")
	}
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.toml")
}
