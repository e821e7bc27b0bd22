package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/tunesync/internal/auth"
	"github.com/desertthunder/tunesync/internal/server"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

const authTimeout = 2 * time.Minute

// AuthYouTube performs the OAuth2 authorization code flow for YouTube.
//
// Starts a local HTTP server, opens browser for user authorization, and stores the session once the
// callback has been exchanged for tokens.
func (r *Runner) AuthYouTube(ctx context.Context, cmd *cli.Command) error {
	session, err := r.authManager(ctx)
	if err != nil {
		return err
	}
	if session.IsReady() {
		r.logger.Info("replacing existing session")
	}

	if err := r.doOAuth(ctx, session); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Session saved to %s\n", r.settings().Session.Path)
	r.writeChannel(ctx)
	r.writePlain("\nYou can now use: tunesync sync --run latest\n")
	return nil
}

// AuthStatus reports the stored session state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	session, err := r.authManager(ctx)
	if err != nil {
		return err
	}

	state := session.State()
	r.writePlain("Session: %s\n", r.settings().Session.Path)
	r.writePlain("State: %s\n", state)
	if err := session.Err(); err != nil {
		r.writePlain("Last error: %v\n", err)
	}

	switch {
	case session.IsReady():
		r.writeChannel(ctx)
	case state == auth.StateExpired:
		r.writePlain("Session expired and cannot be refreshed. Run `tunesync auth youtube`.\n")
	default:
		r.writePlain("Not authorized. Run `tunesync auth youtube`.\n")
	}
	return nil
}

// AuthLogout deletes the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	session, err := r.authManager(ctx)
	if err != nil {
		return err
	}
	if err := session.Logout(); err != nil {
		return err
	}
	r.writePlain("✓ Logged out, removed %s\n", r.settings().Session.Path)
	return nil
}

// writeChannel prints the authorized channel when the writer can look it up.
func (r *Runner) writeChannel(ctx context.Context) {
	writer, err := r.youtube(ctx)
	if err != nil {
		return
	}
	lookup, ok := writer.(channelLookup)
	if !ok {
		return
	}
	title, err := lookup.ChannelTitle(ctx)
	if err != nil {
		r.logger.Warn("failed to look up channel", "error", err)
		return
	}
	r.writePlain("Channel: %s\n", title)
}

// callbackPath is the path component of the configured redirect URI.
func callbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" {
		return server.DefaultCallbackPath
	}
	return u.Path
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, session authSession) error {
	cfg := r.settings()

	oauthHandler := server.NewOAuthHandler(session, callbackPath(cfg.Credentials.YouTube.RedirectURI))
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(shared.WithLogger(r.logger, "component", "callback")))
	router.Handler(oauthHandler)

	serverAddr := cfg.Server.Addr()
	ln, err := net.Listen("tcp", serverAddr)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", serverAddr)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := session.AuthorizationURL()
	r.writePlain("→ Opening browser for YouTube authorization...\n")
	if err := r.browse(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	select {
	case result := <-oauthHandler.Result():
		if result.Err != nil {
			return fmt.Errorf("authorization failed: %w", result.Err)
		}
		return nil
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
