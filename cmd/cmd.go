// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func topKFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "top-k",
		Usage: "Candidates to request per track (default from config)",
	}
}

func thresholdFlag() cli.Flag {
	return &cli.FloatFlag{
		Name:    "threshold",
		Aliases: []string{"t"},
		Usage:   "Minimum confidence for a track to count as high confidence (default from config)",
	}
}

// setupCommand handles first-run setup for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize the history database",
		Action: r.Setup,
	}
}

// matchCommand matches one or more Spotify playlists and writes the exports.
func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "match",
		Usage:     "Match Spotify playlists against YouTube Music and export the results",
		ArgsUsage: "<Spotify playlist url>...",
		Flags: []cli.Flag{
			topKFlag(),
			thresholdFlag(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: current directory, or tunesync_export_{epoch} for several playlists)",
			},
			&cli.BoolFlag{
				Name:  "thumbnails",
				Usage: "Cache match thumbnails and add thumbnail columns to the CSVs",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Playlists matched concurrently when several are given",
				Value: 2,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Playlists started per second when several are given",
				Value: 1,
			},
		},
		Action: r.Match,
	}
}

// syncCommand creates a YouTube playlist from a stored run or a fresh match.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Create a private YouTube playlist from matched tracks",
		ArgsUsage: "[Spotify playlist url]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "run",
				Usage: "Stored run id to sync, or \"latest\"",
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Target playlist name (default: source playlist name)",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "Target playlist description",
			},
			topKFlag(),
			thresholdFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
		},
		Action: r.Sync,
	}
}

// reviewCommand launches the interactive review screen.
func reviewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "review",
		Aliases:   []string{"ui"},
		Usage:     "Match a playlist, review the matches and sync interactively",
		ArgsUsage: "<Spotify playlist url>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Target playlist name (default: source playlist name)",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "Target playlist description",
			},
			topKFlag(),
			thresholdFlag(),
		},
		Action: r.Review,
	}
}

// authCommand handles YouTube authorization.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage YouTube authorization",
		Commands: []*cli.Command{
			{
				Name:    "youtube",
				Aliases: []string{"yt", "login"},
				Usage:   "Authorize playlist writes through the browser",
				Action:  r.AuthYouTube,
			},
			{
				Name:   "status",
				Usage:  "Show the stored session state",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the stored session",
				Action: r.AuthLogout,
			},
		},
	}
}

// cacheCommand manages the thumbnail cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the thumbnail cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache location, file count and size",
				Action: r.CacheStats,
			},
			{
				Name:  "evict",
				Usage: "Delete cached files older than the given age",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "Maximum age in days (default from config)",
					},
				},
				Action: r.CacheEvict,
			},
			{
				Name:      "fetch",
				Usage:     "Download images into the cache",
				ArgsUsage: "<url>...",
				Action:    r.CacheFetch,
			},
		},
	}
}

// historyCommand inspects stored runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect stored match runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Only runs for this Spotify playlist id",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the runs as JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show a stored run and its syncs",
				ArgsUsage: "<run id | latest>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the run as JSON",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:      "delete",
				Usage:     "Delete a stored run",
				ArgsUsage: "<run id>",
				Action:    r.HistoryDelete,
			},
		},
	}
}
