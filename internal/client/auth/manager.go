// Package auth is the client's authentication context. A Manager holds the
// registered portal servers, a challenge handler and the credentials it has
// obtained; callers ask it for a credential scoped to a service URL.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/apperr"
)

// TokenAuthenticationType selects how a server issues tokens.
type TokenAuthenticationType int

const (
	// OAuthImplicit is the OAuth 2.0 implicit grant: the token comes back in the redirect URL fragment.
	OAuthImplicit TokenAuthenticationType = iota + 1
)

func (t TokenAuthenticationType) String() string {
	if t == OAuthImplicit {
		return "oauth_implicit"
	}
	return fmt.Sprintf("TokenAuthenticationType(%d)", int(t))
}

// OAuthClientInfo identifies this application to the server.
type OAuthClientInfo struct {
	ClientID    string
	RedirectURL string
}

// ServerInfo describes a server credentials can be obtained from.
type ServerInfo struct {
	ServerURL               string
	TokenAuthenticationType TokenAuthenticationType
	OAuthClientInfo         OAuthClientInfo
}

// Validate checks that info is complete enough to run an OAuth flow.
func (info ServerInfo) Validate() error {
	u, err := url.Parse(info.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server url %q", info.ServerURL)
	}
	if info.TokenAuthenticationType != OAuthImplicit {
		return fmt.Errorf("unsupported token authentication type %s", info.TokenAuthenticationType)
	}
	if info.OAuthClientInfo.ClientID == "" {
		return errors.New("oauth client id is required")
	}
	r, err := url.Parse(info.OAuthClientInfo.RedirectURL)
	if err != nil || r.Scheme == "" || r.Host == "" {
		return fmt.Errorf("invalid redirect url %q", info.OAuthClientInfo.RedirectURL)
	}
	return nil
}

// CredentialRequest asks for a credential to access ServiceURL.
type CredentialRequest struct {
	ServiceURL              string
	TokenAuthenticationType TokenAuthenticationType
}

// Credential is a token scoped to one service URL.
type Credential struct {
	ServiceURL string
	Token      string
	Username   string
	ExpiresAt  time.Time
}

// Expired reports whether the credential is unusable at now. A zero expiry never expires.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ChallengeHandler produces a credential for a request, or returns an error
// matching apperr.ErrAuthenticationCancelled when the user declines.
type ChallengeHandler func(ctx context.Context, req CredentialRequest) (*Credential, error)

// Authorizer runs the interactive flow against a registered server.
type Authorizer interface {
	Authorize(ctx context.Context, info ServerInfo) (*Credential, error)
}

// Manager is the authentication context passed to components that need credentials.
type Manager struct {
	mu         sync.Mutex
	servers    []ServerInfo
	creds      map[string]*Credential
	challenge  ChallengeHandler
	authorizer Authorizer
	log        *zap.Logger
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager) error

// WithServer registers a server at construction time.
func WithServer(info ServerInfo) Option {
	return func(m *Manager) error {
		return m.registerLocked(info)
	}
}

// WithAuthorizer sets the interactive flow used by GenerateCredential.
func WithAuthorizer(a Authorizer) Option {
	return func(m *Manager) error {
		m.authorizer = a
		return nil
	}
}

// WithChallengeHandler replaces the default handler, which calls GenerateCredential.
func WithChallengeHandler(h ChallengeHandler) Option {
	return func(m *Manager) error {
		m.challenge = h
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) error {
		if l != nil {
			m.log = l
		}
		return nil
	}
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) error {
		m.now = now
		return nil
	}
}

// WithCredential seeds the cache, e.g. with a credential restored from disk.
func WithCredential(c *Credential) Option {
	return func(m *Manager) error {
		if c == nil || c.Token == "" || c.ServiceURL == "" {
			return errors.New("seed credential needs a token and a service url")
		}
		m.creds[normalize(c.ServiceURL)] = c
		return nil
	}
}

// NewManager builds an authentication context from opts.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		creds: make(map[string]*Credential),
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.challenge == nil {
		m.challenge = m.defaultChallenge
	}
	return m, nil
}

// RegisterServer adds or replaces a server.
func (m *Manager) RegisterServer(info ServerInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerLocked(info)
}

func (m *Manager) registerLocked(info ServerInfo) error {
	if err := info.Validate(); err != nil {
		return fmt.Errorf("register server: %w", err)
	}
	info.ServerURL = normalize(info.ServerURL)
	for i, s := range m.servers {
		if s.ServerURL == info.ServerURL {
			m.servers[i] = info
			return nil
		}
	}
	m.servers = append(m.servers, info)
	return nil
}

// ServerFor returns the registered server whose URL is the longest prefix of serviceURL.
func (m *Manager) ServerFor(serviceURL string) (ServerInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serverForLocked(serviceURL)
}

func (m *Manager) serverForLocked(serviceURL string) (ServerInfo, bool) {
	target := normalize(serviceURL)
	var best ServerInfo
	found := false
	for _, s := range m.servers {
		if target == s.ServerURL || strings.HasPrefix(target, s.ServerURL+"/") {
			if !found || len(s.ServerURL) > len(best.ServerURL) {
				best, found = s, true
			}
		}
	}
	return best, found
}

// GetCredential returns a cached credential for req.ServiceURL, or runs the
// challenge handler when none is cached, it has expired, or retry is set.
// Errors match apperr.ErrAuthenticationCancelled or apperr.ErrAuthenticationFailure.
func (m *Manager) GetCredential(ctx context.Context, req CredentialRequest, retry bool) (*Credential, error) {
	key := normalize(req.ServiceURL)
	m.mu.Lock()
	cached, ok := m.creds[key]
	handler := m.challenge
	m.mu.Unlock()

	if ok && !retry && !cached.Expired(m.now()) {
		return cached, nil
	}

	cred, err := handler(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if cred == nil || cred.Token == "" {
		return nil, fmt.Errorf("%w: challenge handler returned no token", apperr.ErrAuthenticationFailure)
	}
	if cred.ServiceURL == "" {
		cred.ServiceURL = req.ServiceURL
	}

	m.mu.Lock()
	m.creds[key] = cred
	m.mu.Unlock()
	m.log.Info("credential acquired", zap.String("service", req.ServiceURL), zap.String("user", cred.Username))
	return cred, nil
}

// GenerateCredential runs the authorizer against the server registered for serviceURL.
func (m *Manager) GenerateCredential(ctx context.Context, serviceURL string) (*Credential, error) {
	m.mu.Lock()
	info, ok := m.serverForLocked(serviceURL)
	authorizer := m.authorizer
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: no server registered for %s", apperr.ErrAuthenticationFailure, serviceURL)
	}
	if authorizer == nil {
		return nil, fmt.Errorf("%w: no authorizer configured", apperr.ErrAuthenticationFailure)
	}
	cred, err := authorizer.Authorize(ctx, info)
	if err != nil {
		return nil, classify(err)
	}
	cred.ServiceURL = serviceURL
	return cred, nil
}

func (m *Manager) defaultChallenge(ctx context.Context, req CredentialRequest) (*Credential, error) {
	return m.GenerateCredential(ctx, req.ServiceURL)
}

// Credential returns the cached credential for serviceURL, if any.
func (m *Manager) Credential(serviceURL string) (*Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[normalize(serviceURL)]
	return c, ok
}

// RemoveCredentials forgets every cached credential.
func (m *Manager) RemoveCredentials() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = make(map[string]*Credential)
}

func classify(err error) error {
	switch {
	case errors.Is(err, apperr.ErrAuthenticationCancelled), errors.Is(err, apperr.ErrAuthenticationFailure):
		return err
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", apperr.ErrAuthenticationCancelled, err)
	}
	return fmt.Errorf("%w: %w", apperr.ErrAuthenticationFailure, err)
}

func normalize(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
