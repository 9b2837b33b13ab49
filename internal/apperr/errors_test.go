package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestMessage_DistinctPerKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", Validation("title is required"), "Invalid input: title is required"},
		{"cancelled", fmt.Errorf("sign in: %w", ErrAuthenticationCancelled), "Sign-in was cancelled"},
		{"unknown basemap", fmt.Errorf("%w: %q", ErrUnknownBasemap, "Moon"), `Unknown basemap: "Moon"`},
		{"in progress", ErrSaveInProgress, "A save is already in progress, please wait"},
		{"auth failure", fmt.Errorf("%w: bad token", ErrAuthenticationFailure), "Sign-in failed: authentication failed: bad token"},
		{"network", fmt.Errorf("%w: timeout", ErrNetwork), "Could not reach the service: network error: timeout"},
		{"other", errors.New("boom"), "Error: boom"},
		{"nil", nil, ""},
	}

	seen := map[string]string{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Message(tt.err)
			if got != tt.want {
				t.Errorf("Message() = %q; want %q", got, tt.want)
			}
			if prev, ok := seen[got]; ok && got != "" {
				t.Errorf("message %q shared by %s and %s", got, prev, tt.name)
			}
			seen[got] = tt.name
		})
	}
}

func TestCallErr_Kinds(t *testing.T) {
	u, _ := url.Parse("https://portal.example/sharing/rest/community/self")
	req := &http.Request{Method: http.MethodGet, URL: u}

	transport := CallErr{Req: req, Err: errors.New("connection refused")}
	if !errors.Is(transport, ErrNetwork) {
		t.Error("transport failure should match ErrNetwork")
	}
	if errors.Is(transport, ErrAuthenticationFailure) {
		t.Error("transport failure should not match ErrAuthenticationFailure")
	}

	unauthorized := CallErr{Req: req, Resp: &http.Response{StatusCode: http.StatusUnauthorized}, Err: errors.New("401")}
	wrapped := fmt.Errorf("create item: %w", unauthorized)
	if !errors.Is(wrapped, ErrAuthenticationFailure) || !errors.Is(wrapped, ErrNetwork) {
		t.Error("401 should match both ErrAuthenticationFailure and ErrNetwork")
	}
}

func TestVerbose(t *testing.T) {
	u, _ := url.Parse("https://portal.example/x")
	err := fmt.Errorf("wrap: %w", CallErr{Req: &http.Request{Method: "POST", URL: u}, Err: errors.New("down")})
	out := Verbose(err)
	if !strings.Contains(out, "Request:") || !strings.Contains(out, "POST") {
		t.Errorf("Verbose output missing request details: %s", out)
	}

	plain := errors.New("plain")
	if Verbose(plain) != "plain" {
		t.Errorf("Verbose(plain) = %q", Verbose(plain))
	}
}

func TestVerbose_RedactsCredentials(t *testing.T) {
	u, _ := url.Parse("https://portal.example/sharing/rest/content/users/alice/addItem")
	req := &http.Request{Method: "POST", URL: u, Header: http.Header{}}
	req.Header.Set("Authorization", "Bearer SECRET-TOKEN")
	req.Header.Set("Content-Type", "application/json")
	resp := &http.Response{StatusCode: http.StatusUnauthorized, Request: req, Header: http.Header{}}
	resp.Header.Set("Set-Cookie", "session=SECRET-COOKIE")

	out := CallErr{Req: req, Resp: resp, Err: errors.New("rejected")}.Verbose()
	for _, secret := range []string{"SECRET-TOKEN", "SECRET-COOKIE"} {
		if strings.Contains(out, secret) {
			t.Errorf("Verbose leaked %s: %s", secret, out)
		}
	}
	if !strings.Contains(out, "REDACTED") || !strings.Contains(out, "application/json") {
		t.Errorf("Verbose output missing headers: %s", out)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer SECRET-TOKEN" {
		t.Errorf("original request header changed to %q", got)
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(fmt.Errorf("x: %w", ErrAuthenticationCancelled)) {
		t.Error("expected cancelled")
	}
	if IsCancelled(ErrAuthenticationFailure) {
		t.Error("failure is not a cancellation")
	}
}
