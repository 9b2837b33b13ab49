// Package http provides the portal's HTTP handlers: account registration,
// the OAuth implicit grant and item content.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/middleware"
	"github.com/atinyakov/GophMaps/internal/models"
	"github.com/atinyakov/GophMaps/internal/service"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Register creates an account.
	Register(ctx context.Context, username, password string) error
	// Authenticate checks a password and returns the account.
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	// IssueToken signs an access token, at most want long if want > 0.
	IssueToken(username string, want time.Duration) (string, time.Duration, error)
	// ValidateClient checks an OAuth client id and its redirect URI.
	ValidateClient(clientID, redirectURI string) error
}

// AuthHandler handles HTTP requests for accounts and OAuth sign-in.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	// Log receives internal errors. May be nil.
	Log *zap.Logger
}

// RegisterRequest represents the JSON payload for user registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles POST /community/users.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.Log, service.ErrInvalidInput)
		return
	}
	if err := h.AuthService.Register(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "username": req.Username})
}

// Self handles GET /community/self and reports the token owner.
func (h *AuthHandler) Self(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"username": middleware.GetUserIDFromContext(r.Context()),
	})
}

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html><head><title>Sign in</title></head>
<body>
<h1>Sign in to GophMaps portal</h1>
{{if .Error}}<p style="color:red">{{.Error}}</p>{{end}}
<form method="post">
<input type="hidden" name="client_id" value="{{.ClientID}}">
<input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
<input type="hidden" name="response_type" value="token">
<input type="hidden" name="state" value="{{.State}}">
<input type="hidden" name="expiration" value="{{.Expiration}}">
<p><label>Username <input name="username" value="{{.Username}}" autofocus></label></p>
<p><label>Password <input name="password" type="password"></label></p>
<p><button name="action" value="signin">Sign in</button>
<button name="action" value="deny">Cancel</button></p>
</form>
</body></html>
`))

type loginView struct {
	ClientID    string
	RedirectURI string
	State       string
	Expiration  string
	Username    string
	Error       string
}

func authorizeParams(v url.Values) loginView {
	return loginView{
		ClientID:    v.Get("client_id"),
		RedirectURI: v.Get("redirect_uri"),
		State:       v.Get("state"),
		Expiration:  v.Get("expiration"),
	}
}

// AuthorizeForm handles GET /oauth2/authorize and renders the sign-in form.
func (h *AuthHandler) AuthorizeForm(w http.ResponseWriter, r *http.Request) {
	view := authorizeParams(r.URL.Query())
	if err := h.AuthService.ValidateClient(view.ClientID, view.RedirectURI); err != nil {
		// never redirect to an unverified uri
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if rt := r.URL.Query().Get("response_type"); rt != "token" {
		redirectFragment(w, r, view.RedirectURI, url.Values{
			"error":             {"unsupported_response_type"},
			"error_description": {"only response_type=token is supported"},
			"state":             {view.State},
		})
		return
	}
	h.renderLogin(w, http.StatusOK, view)
}

// Authorize handles POST /oauth2/authorize: the user either signs in, which
// redirects back with an access token in the URL fragment, or cancels.
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	view := authorizeParams(r.PostForm)
	if err := h.AuthService.ValidateClient(view.ClientID, view.RedirectURI); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if r.PostForm.Get("action") == "deny" {
		redirectFragment(w, r, view.RedirectURI, url.Values{
			"error":             {"access_denied"},
			"error_description": {"The user denied the request"},
			"state":             {view.State},
		})
		return
	}

	view.Username = r.PostForm.Get("username")
	user, err := h.AuthService.Authenticate(r.Context(), view.Username, r.PostForm.Get("password"))
	if errors.Is(err, service.ErrInvalidCredentials) {
		view.Error = "Invalid username or password."
		h.renderLogin(w, http.StatusUnauthorized, view)
		return
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	var want time.Duration
	if m, err := strconv.Atoi(view.Expiration); err == nil && m > 0 {
		want = time.Duration(m) * time.Minute
	}
	token, ttl, err := h.AuthService.IssueToken(user.Username, want)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	redirectFragment(w, r, view.RedirectURI, url.Values{
		"access_token": {token},
		"expires_in":   {strconv.Itoa(int(ttl / time.Second))},
		"username":     {user.Username},
		"state":        {view.State},
	})
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, code int, view loginView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := loginPage.Execute(w, view); err != nil && h.Log != nil {
		h.Log.Error("render login page", zap.Error(err))
	}
}

func redirectFragment(w http.ResponseWriter, r *http.Request, redirectURI string, v url.Values) {
	if v.Get("state") == "" {
		v.Del("state")
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, redirectURI+"#"+v.Encode(), http.StatusFound)
}
