package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/shared"
	"golang.org/x/oauth2"
)

// SessionVersion is the only session file layout this build reads and writes.
const SessionVersion = 1

// Session is the persisted form of an authorized OAuth token.
type Session struct {
	Version      int       `json:"version"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// NewSession captures tok and the scopes it was granted for.
func NewSession(tok *oauth2.Token, scopes []string) *Session {
	return &Session{
		Version:      SessionVersion,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       scopes,
	}
}

// Token converts the session back into an [oauth2.Token].
func (s *Session) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.Expiry,
	}
}

// Expired reports whether the access token can no longer be used without a refresh.
func (s *Session) Expired() bool {
	return !s.Token().Valid()
}

// CanRefresh reports whether a refresh token is available.
func (s *Session) CanRefresh() bool {
	return s.RefreshToken != ""
}

// Validate checks the layout version and that there is some credential to use.
func (s *Session) Validate() error {
	if s.Version != SessionVersion {
		return fmt.Errorf("%w: unsupported version %d", shared.ErrInvalidSession, s.Version)
	}
	if s.AccessToken == "" && s.RefreshToken == "" {
		return fmt.Errorf("%w: no access or refresh token", shared.ErrInvalidSession)
	}
	return nil
}

// SessionStore reads and writes a single session file.
type SessionStore struct {
	path   string
	logger *log.Logger
}

// NewSessionStore creates a store backed by the file at path.
func NewSessionStore(path string, logger *log.Logger) *SessionStore {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &SessionStore{path: path, logger: logger}
}

// Path returns the session file location.
func (s *SessionStore) Path() string {
	return s.path
}

// Load returns the stored session, or nil when there is none.
//
// A file that cannot be read, parsed or validated is treated as no session and logged.
func (s *SessionStore) Load() *Session {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read session", "path", s.path, "error", err)
		}
		return nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn("ignoring malformed session", "path", s.path, "error", err)
		return nil
	}
	if err := sess.Validate(); err != nil {
		s.logger.Warn("ignoring session", "path", s.path, "error", err)
		return nil
	}
	return &sess
}

// Save writes the session atomically with owner-only permissions.
func (s *SessionStore) Save(sess *Session) error {
	data, err := shared.MarshalJSON(sess, true)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := shared.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes the session file. A missing file is not an error.
func (s *SessionStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
