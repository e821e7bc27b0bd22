package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/auth"
	"github.com/desertthunder/tunesync/internal/imagecache"
	"github.com/desertthunder/tunesync/internal/matcher"
	"github.com/desertthunder/tunesync/internal/repositories"
	"github.com/desertthunder/tunesync/internal/server"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// authSession is the slice of [auth.Manager] the commands use.
type authSession interface {
	server.Authorizer
	services.ClientSource
	AuthorizationURL() string
	IsReady() bool
	State() auth.State
	Err() error
	Logout() error
}

// channelLookup is implemented by writers that can name the authorized account.
type channelLookup interface {
	ChannelTitle(ctx context.Context) (string, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies not supplied through [RunnerOpts] are built from the loaded configuration the first
// time a command needs them.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	browse     func(url string) error

	source   services.PlaylistSource
	searcher services.CatalogSearcher
	writer   services.PlaylistWriter
	session  authSession
	images   *imagecache.Cache
	runs     *repositories.RunRepository
	syncs    *repositories.SyncRepository
	db       *sql.DB
	ownsDB   bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Browser    func(url string) error
	Source     services.PlaylistSource
	Searcher   services.CatalogSearcher
	Writer     services.PlaylistWriter
	Session    authSession
	Images     *imagecache.Cache
	DB         *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Browser == nil {
		opts.Browser = shared.OpenBrowser
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		browse:     opts.Browser,
		source:     opts.Source,
		searcher:   opts.Searcher,
		writer:     opts.Writer,
		session:    opts.Session,
		images:     opts.Images,
		db:         opts.DB,
	}
	if opts.DB != nil {
		r.runs = repositories.NewRunRepository(opts.DB)
		r.syncs = repositories.NewSyncRepository(opts.DB)
	}
	return r
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "tunesync",
		Usage:   "Match Spotify playlists against YouTube Music and recreate them on YouTube",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Sources: cli.EnvVars("TUNESYNC_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.bootstrap,
		After:    r.close,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, matchCommand, syncCommand, reviewCommand, authCommand, cacheCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// bootstrap loads .env and the configuration file unless a config was injected.
func (r *Runner) bootstrap(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if r.config != nil {
		return ctx, nil
	}

	if err := shared.LoadEnv(); err != nil {
		r.logger.Warn("failed to load .env", "error", err)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configPath == "" {
		r.configPath = shared.DefaultConfigPath()
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(r.configPath); err == nil {
		loaded, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		config = loaded
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	config.ApplyEnv()
	config.ResolvePaths()
	r.config = config
	return ctx, nil
}

// close releases the database opened by store. An injected database is left open.
func (r *Runner) close(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db, r.runs, r.syncs = nil, nil, nil
	return err
}

func (r *Runner) settings() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
		r.config.ResolvePaths()
	}
	return r.config
}

// store opens the history database on first use.
func (r *Runner) store() error {
	if r.runs != nil && r.syncs != nil {
		return nil
	}
	db, err := shared.OpenDatabase(r.settings().Database)
	if err != nil {
		return err
	}
	r.db, r.ownsDB = db, true
	r.runs = repositories.NewRunRepository(db)
	r.syncs = repositories.NewSyncRepository(db)
	return nil
}

func (r *Runner) spotify() (services.PlaylistSource, error) {
	if r.source != nil {
		return r.source, nil
	}
	creds := r.settings().Credentials.Spotify
	svc, err := services.NewSpotifyService(map[string]string{
		"client_id":     creds.ClientID,
		"client_secret": creds.ClientSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET)", err)
	}
	r.source = svc
	return svc, nil
}

func (r *Runner) catalog() services.CatalogSearcher {
	if r.searcher == nil {
		cfg := r.settings().YTMusic
		r.searcher = services.NewYTMusicService(cfg.ProxyURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
	}
	return r.searcher
}

func (r *Runner) imageCache() (*imagecache.Cache, error) {
	if r.images != nil {
		return r.images, nil
	}
	cache, err := imagecache.New(r.settings().Cache.Dir, imagecache.WithLogger(shared.WithLogger(r.logger, "component", "imagecache")))
	if err != nil {
		return nil, err
	}
	r.images = cache
	return cache, nil
}

// authManager loads the stored YouTube session, refreshing it when it has expired.
func (r *Runner) authManager(ctx context.Context) (authSession, error) {
	if r.session != nil {
		return r.session, nil
	}
	cfg := r.settings()
	if !cfg.Credentials.YouTube.Valid() {
		return nil, fmt.Errorf("%w: set YOUTUBE_CLIENT_ID and YOUTUBE_CLIENT_SECRET", shared.ErrMissingCredentials)
	}
	logger := shared.WithLogger(r.logger, "component", "auth")
	store := auth.NewSessionStore(cfg.Session.Path, logger)
	r.session = auth.NewManager(ctx, auth.NewGoogleConfig(cfg.Credentials.YouTube), store, logger)
	return r.session, nil
}

func (r *Runner) youtube(ctx context.Context) (services.PlaylistWriter, error) {
	if r.writer != nil {
		return r.writer, nil
	}
	session, err := r.authManager(ctx)
	if err != nil {
		return nil, err
	}
	r.writer = services.NewYouTubeService(session, "")
	return r.writer, nil
}

// pipeline wires extraction, matching and run history. Thumbnails are only cached when asked for.
func (r *Runner) pipeline(thumbnails bool) (*tasks.Pipeline, error) {
	source, err := r.spotify()
	if err != nil {
		return nil, err
	}
	if err := r.store(); err != nil {
		return nil, err
	}

	opts := []matcher.Option{
		matcher.WithLogger(shared.WithLogger(r.logger, "component", "matcher")),
		matcher.WithWorkers(r.settings().Matching.Workers),
	}
	if thumbnails {
		cache, err := r.imageCache()
		if err != nil {
			return nil, err
		}
		opts = append(opts, matcher.WithImages(cache))
	}

	return tasks.NewPipeline(source, matcher.New(r.catalog(), opts...),
		tasks.WithRunRecorder(r.runs),
		tasks.WithPipelineLogger(shared.WithLogger(r.logger, "component", "pipeline")),
	), nil
}

func (r *Runner) builder(ctx context.Context) (*tasks.PlaylistBuilder, error) {
	session, err := r.authManager(ctx)
	if err != nil {
		return nil, err
	}
	writer, err := r.youtube(ctx)
	if err != nil {
		return nil, err
	}
	return tasks.NewPlaylistBuilder(session, writer, shared.WithLogger(r.logger, "component", "builder")), nil
}

// topK reads --top-k, falling back to the configured default.
func (r *Runner) topK(cmd *cli.Command) int {
	if cmd.IsSet("top-k") {
		return cmd.Int("top-k")
	}
	if k := r.settings().Matching.TopK; k > 0 {
		return k
	}
	return matcher.DefaultTopK
}

// threshold reads --threshold, falling back to the configured default.
func (r *Runner) threshold(cmd *cli.Command) (float64, error) {
	t := r.settings().Matching.Threshold
	if cmd.IsSet("threshold") {
		t = cmd.Float("threshold")
	}
	if t < 0 || t > 1 {
		return 0, fmt.Errorf("%w: threshold must be within [0, 1], got %v", shared.ErrInvalidArgument, t)
	}
	return t, nil
}

// printProgress writes updates until progress is closed. The returned channel closes when it is done.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.MatchTracks, tasks.AddTracks:
				if update.Step == 0 {
					r.writePlain("→ %s\n", update.Message)
				} else {
					r.writePlain("  [%d/%d] %s\n", update.Step, update.Total, update.Message)
				}
			default:
				r.writePlain("→ %s\n", update.Message)
			}
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
