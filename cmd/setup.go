package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the template when it is missing and brings the history database schema
// up to date.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	config := r.settings()

	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			r.writePlain("✓ Config file created at %s\n", r.configPath)
		} else {
			r.writePlain("✓ Using config file %s\n", r.configPath)
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	if err := r.store(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	version, err := shared.CurrentVersion(r.db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)

	r.writePlain("✓ Database ready at %s (schema version %d)\n", config.Database.Path, version)
	r.writePlain("  Cache directory: %s\n", config.Cache.Dir)
	r.writePlain("  Session file: %s\n", config.Session.Path)

	if !config.Credentials.Spotify.Valid() {
		r.writePlainln("⚠ Spotify credentials missing: set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET")
	}
	if !config.Credentials.YouTube.Valid() {
		r.writePlainln("⚠ YouTube credentials missing: set YOUTUBE_CLIENT_ID and YOUTUBE_CLIENT_SECRET")
	}
	return nil
}
