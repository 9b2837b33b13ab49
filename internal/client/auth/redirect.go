package auth

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/atinyakov/GophMaps/internal/apperr"
)

// relayPage moves the implicit-grant fragment into the query string so the
// loopback server can read it.
var relayPage = []byte(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8" /><title>Signing in</title></head>
<body>
<p id="msg">Completing sign-in...</p>
<script>
if (window.location.hash.length > 1) {
  window.location.replace(window.location.pathname + "?" + window.location.hash.substring(1));
} else {
  document.getElementById("msg").innerText = "No sign-in response was received.";
}
</script>
</body>
</html>
`)

var okPage = []byte(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8" /><title>Sign-in complete</title></head>
<body><p>Sign-in complete. You can return to the map client and close this tab.</p></body>
</html>
`)

var failPage = []byte(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8" /><title>Sign-in not completed</title></head>
<body><p>Sign-in was not completed: {{.Err}}. You can return to the map client and close this tab.</p></body>
</html>
`)

var errPlaceholder = []byte("{{.Err}}")

// redirectResult is what the portal sent back to the redirect URL.
type redirectResult struct {
	Token     string
	Username  string
	ExpiresIn time.Duration
	Err       error
}

// redirectServer is a one-shot loopback HTTP server receiving the OAuth redirect.
type redirectServer struct {
	// URL is the redirect URL the server answers on.
	URL      string
	path     string
	reqState string
	resultCh chan redirectResult
	s        *http.Server
}

// newRedirectServer listens on the host and port of redirectURL. Port 0 picks a free port.
func newRedirectServer(redirectURL, state string) (*redirectServer, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("parse redirect url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "0"
	}
	l, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("listen for redirect: %w", err)
	}
	_, actualPort, _ := net.SplitHostPort(l.Addr().String())
	if _, err := strconv.Atoi(actualPort); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("unexpected listener address %s", l.Addr())
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	rs := &redirectServer{
		URL:      (&url.URL{Scheme: "http", Host: net.JoinHostPort(host, actualPort), Path: path}).String(),
		path:     path,
		reqState: state,
		resultCh: make(chan redirectResult, 1),
		s:        &http.Server{ReadHeaderTimeout: time.Second},
	}
	rs.s.Handler = http.HandlerFunc(rs.handler)

	go func() {
		if err := rs.s.Serve(l); err != nil && err != http.ErrServerClosed {
			rs.putResult(redirectResult{Err: err})
		}
	}()
	return rs, nil
}

// Result waits for the redirect or for ctx to end.
func (s *redirectServer) Result(ctx context.Context) redirectResult {
	select {
	case <-ctx.Done():
		return redirectResult{Err: ctx.Err()}
	case r := <-s.resultCh:
		return r
	}
}

// Shutdown stops the server.
func (s *redirectServer) Shutdown() {
	_ = s.s.Shutdown(context.Background())
}

func (s *redirectServer) putResult(r redirectResult) {
	select {
	case s.resultCh <- r:
	default:
	}
}

func (s *redirectServer) handler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.path {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if len(q) == 0 {
		_, _ = w.Write(relayPage)
		return
	}

	if oauthErr := q.Get("error"); oauthErr != "" {
		desc := html.EscapeString(q.Get("error_description"))
		if desc == "" {
			desc = html.EscapeString(oauthErr)
		}
		_, _ = w.Write(bytes.ReplaceAll(failPage, errPlaceholder, []byte(desc)))

		if oauthErr == "access_denied" {
			s.putResult(redirectResult{Err: fmt.Errorf("%w: %s", apperr.ErrAuthenticationCancelled, desc)})
			return
		}
		s.putResult(redirectResult{Err: fmt.Errorf("%w: %s: %s", apperr.ErrAuthenticationFailure, oauthErr, desc)})
		return
	}

	switch respState := q.Get("state"); respState {
	case s.reqState:
	case "":
		s.error(w, "server didn't send OAuth state")
		return
	default:
		s.error(w, "mismatched OAuth state")
		return
	}

	token := q.Get("access_token")
	if token == "" {
		s.error(w, "access token missing from redirect")
		return
	}
	res := redirectResult{Token: token, Username: q.Get("username")}
	if exp := q.Get("expires_in"); exp != "" {
		secs, err := strconv.Atoi(exp)
		if err != nil || secs < 0 {
			s.error(w, "invalid expires_in")
			return
		}
		res.ExpiresIn = time.Duration(secs) * time.Second
	}

	_, _ = w.Write(okPage)
	s.putResult(res)
}

func (s *redirectServer) error(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write(bytes.ReplaceAll(failPage, errPlaceholder, []byte(html.EscapeString(msg))))
	s.putResult(redirectResult{Err: fmt.Errorf("%w: %s", apperr.ErrAuthenticationFailure, msg)})
}
