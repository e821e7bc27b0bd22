// package auth manages the OAuth session used for YouTube playlist writes
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/shared"
	"golang.org/x/oauth2"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
)

// DefaultScopes grants playlist management on the user's YouTube account.
var DefaultScopes = []string{"https://www.googleapis.com/auth/youtube"}

// State is the lifecycle position of the OAuth session.
type State int

const (
	StateAbsent State = iota
	StatePending
	StateAuthorized
	StateExpired
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePending:
		return "pending-authorization"
	case StateAuthorized:
		return "authorized"
	case StateExpired:
		return "expired"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewGoogleConfig builds the OAuth client for the YouTube Data API from configuration.
func NewGoogleConfig(cfg shared.YouTubeConfig) *oauth2.Config {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleAuthURL,
			TokenURL: googleTokenURL,
		},
	}
}

type pendingFlow struct {
	state    string
	verifier string
}

// Manager owns the OAuth session for playlist writes.
//
// It walks the session through absent, pending-authorization, authorized and expired, persisting
// every token it obtains through its [SessionStore]. Safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	config  *oauth2.Config
	store   *SessionStore
	logger  *log.Logger
	session *Session
	pending *pendingFlow
	lastErr error
}

// NewManager loads any stored session.
//
// An expired session with a refresh token is refreshed immediately and the new token saved. When
// that refresh fails, or the session expired with no refresh token, the stored session is
// discarded and the manager starts absent.
func NewManager(ctx context.Context, config *oauth2.Config, store *SessionStore, logger *log.Logger) *Manager {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	m := &Manager{config: config, store: store, logger: logger}

	sess := store.Load()
	if sess == nil {
		return m
	}

	if !sess.Expired() {
		m.session = sess
		return m
	}

	if !sess.CanRefresh() {
		m.logger.Info("stored session expired without refresh token, discarding")
		m.discard()
		return m
	}

	tok, err := config.TokenSource(ctx, sess.Token()).Token()
	if err != nil {
		m.logger.Warn("session refresh failed, discarding", "error", err)
		m.discard()
		return m
	}

	m.session = NewSession(tok, sess.Scopes)
	if err := store.Save(m.session); err != nil {
		m.logger.Warn("failed to persist refreshed session", "error", err)
	}
	m.logger.Debug("refreshed stored session")
	return m
}

func (m *Manager) discard() {
	m.session = nil
	if err := m.store.Delete(); err != nil {
		m.logger.Warn("failed to remove session file", "error", err)
	}
}

// AuthorizationURL starts a new authorization flow and returns the consent URL.
//
// The flow requests offline access and incremental scopes, and is protected by PKCE and a random
// state value. Starting a new flow replaces any pending one.
func (m *Manager) AuthorizationURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	flow := &pendingFlow{state: shared.GenerateState(), verifier: oauth2.GenerateVerifier()}
	m.pending = flow
	m.lastErr = nil

	return m.config.AuthCodeURL(flow.state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		oauth2.S256ChallengeOption(flow.verifier),
	)
}

// PendingState returns the state value of the pending flow, or "" when none is pending.
func (m *Manager) PendingState() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return ""
	}
	return m.pending.state
}

// CompleteAuthorization exchanges an authorization code for a token and persists it.
//
// Returns [shared.ErrNoPendingFlow] when no flow was started, and a wrapped [shared.ErrAuthFailed]
// when the exchange is rejected. Neither leaves the manager unusable: a new flow may be started.
func (m *Manager) CompleteAuthorization(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return shared.ErrNoPendingFlow
	}
	flow := m.pending
	m.pending = nil

	tok, err := m.config.Exchange(ctx, code, oauth2.VerifierOption(flow.verifier))
	if err != nil {
		m.lastErr = fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		m.logger.Error("authorization code exchange failed", "error", err)
		return m.lastErr
	}

	m.session = NewSession(tok, m.config.Scopes)
	m.lastErr = nil
	if err := m.store.Save(m.session); err != nil {
		m.logger.Warn("failed to persist session", "path", m.store.Path(), "error", err)
	}
	m.logger.Info("authorization complete")
	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.session != nil && m.session.Expired():
		return StateExpired
	case m.session != nil:
		return StateAuthorized
	case m.pending != nil:
		return StatePending
	case m.lastErr != nil:
		return StateFailed
	default:
		return StateAbsent
	}
}

// Err returns the error from the last failed authorization or refresh.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// IsReady reports whether the session holds a token that has not expired.
func (m *Manager) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && !m.session.Expired()
}

// Client returns an HTTP client that authorizes requests with the session token.
//
// Tokens refreshed by the client are persisted. Without a session, every request fails with
// [shared.ErrNotAuthenticated].
func (m *Manager) Client(ctx context.Context) *http.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return oauth2.NewClient(ctx, errTokenSource{})
	}

	base := m.config.TokenSource(ctx, m.session.Token())
	return oauth2.NewClient(ctx, &persistingSource{base: base, m: m})
}

// Logout forgets the session and deletes its file.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	m.pending = nil
	m.lastErr = nil
	return m.store.Delete()
}

// updateToken records tok when it differs from the current session token. It is a no-op after
// Logout.
func (m *Manager) updateToken(tok *oauth2.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || m.session.AccessToken == tok.AccessToken {
		return
	}

	m.session = NewSession(tok, m.session.Scopes)
	if err := m.store.Save(m.session); err != nil {
		m.logger.Warn("failed to persist refreshed session", "error", err)
		return
	}
	m.logger.Debug("persisted refreshed token")
}

type persistingSource struct {
	base oauth2.TokenSource
	m    *Manager
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		err = fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		p.m.refreshFailed(err)
		return nil, err
	}
	p.m.updateToken(tok)
	return tok, nil
}

// refreshFailed drops the session after a failed refresh, leaving the manager failed until the
// next authorization.
func (m *Manager) refreshFailed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return
	}
	m.logger.Warn("session refresh failed, discarding", "error", err)
	m.discard()
	m.lastErr = err
}

type errTokenSource struct{}

func (errTokenSource) Token() (*oauth2.Token, error) {
	return nil, shared.ErrNotAuthenticated
}
