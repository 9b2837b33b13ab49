package auth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/apperr"
)

// ImplicitAuthorizer runs the OAuth implicit grant in the system browser and
// receives the token on a loopback redirect server.
type ImplicitAuthorizer struct {
	// OpenURL shows the authorize page to the user. Defaults to browser.OpenURL.
	OpenURL func(url string) error
	// Expiration is the token lifetime requested from the server. Zero lets the server decide.
	Expiration time.Duration
	// Log receives progress messages.
	Log *zap.Logger
	// Now is used to compute the expiry of the returned credential.
	Now func() time.Time
}

// AuthorizeURL builds the authorize endpoint URL for info.
func AuthorizeURL(info ServerInfo, redirectURL, state string, expiration time.Duration) string {
	q := url.Values{}
	q.Set("client_id", info.OAuthClientInfo.ClientID)
	q.Set("response_type", "token")
	q.Set("redirect_uri", redirectURL)
	q.Set("state", state)
	if expiration > 0 {
		q.Set("expiration", strconv.Itoa(int(expiration/time.Minute)))
	}
	return normalize(info.ServerURL) + "/oauth2/authorize?" + q.Encode()
}

// Authorize implements Authorizer.
func (a *ImplicitAuthorizer) Authorize(ctx context.Context, info ServerInfo) (*Credential, error) {
	open := a.OpenURL
	if open == nil {
		open = browser.OpenURL
	}
	log := a.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := a.Now
	if now == nil {
		now = time.Now
	}

	state := uuid.NewString()
	srv, err := newRedirectServer(info.OAuthClientInfo.RedirectURL, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrAuthenticationFailure, err)
	}
	defer srv.Shutdown()

	authURL := AuthorizeURL(info, srv.URL, state, a.Expiration)
	log.Info("opening browser for sign-in", zap.String("server", info.ServerURL), zap.String("redirect", srv.URL))
	if err := open(authURL); err != nil {
		return nil, fmt.Errorf("%w: open browser: %w", apperr.ErrAuthenticationFailure, err)
	}

	res := srv.Result(ctx)
	if res.Err != nil {
		return nil, classify(res.Err)
	}

	cred := &Credential{ServiceURL: info.ServerURL, Token: res.Token, Username: res.Username}
	if res.ExpiresIn > 0 {
		cred.ExpiresAt = now().Add(res.ExpiresIn)
	}
	return cred, nil
}
