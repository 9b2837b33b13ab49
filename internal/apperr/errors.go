// Package apperr defines the error kinds surfaced by the map client and the
// human-readable messages shown for each of them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kylelemons/godebug/pretty"
)

// Error kinds. Every error returned by the session, save flow, auth manager
// or portal client matches exactly one of these with errors.Is.
var (
	// ErrValidation reports missing or malformed user input.
	ErrValidation = errors.New("validation error")
	// ErrAuthenticationCancelled reports that the user dismissed the sign-in prompt.
	ErrAuthenticationCancelled = errors.New("authentication cancelled")
	// ErrAuthenticationFailure reports that a credential could not be obtained or was rejected.
	ErrAuthenticationFailure = errors.New("authentication failed")
	// ErrNetwork reports a failed call to the portal or a map service.
	ErrNetwork = errors.New("network error")
	// ErrUnknownBasemap reports a basemap name that is not in the catalog.
	ErrUnknownBasemap = errors.New("unknown basemap")
	// ErrSaveInProgress reports a save attempted while another one is outstanding.
	ErrSaveInProgress = errors.New("save already in progress")
)

var prettyConf = &pretty.Config{IncludeUnexported: false, SkipZeroFields: true, TrackCycles: true}

// Validation returns an ErrValidation with the given detail.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// CallErr represents a failed HTTP call. It always matches ErrNetwork and,
// for 401/403 responses, ErrAuthenticationFailure as well.
type CallErr struct {
	Req  *http.Request
	Resp *http.Response
	Err  error
}

// Error implements error.
func (e CallErr) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e CallErr) Unwrap() error {
	return e.Err
}

// Is reports whether target is one of the kinds this call error belongs to.
func (e CallErr) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return true
	case ErrAuthenticationFailure:
		return e.Resp != nil && (e.Resp.StatusCode == http.StatusUnauthorized || e.Resp.StatusCode == http.StatusForbidden)
	}
	return false
}

// Verbose prints the error with the request and response that produced it.
// Credential headers are redacted.
func (e CallErr) Verbose() string {
	req := redactRequest(e.Req)
	var resp *http.Response
	if e.Resp != nil {
		r := *e.Resp
		r.Header = redactHeader(r.Header)
		r.Request = redactRequest(r.Request)
		resp = &r
	}
	return fmt.Sprintf("%s:\n\tRequest:\n%s\n\tResponse:\n%s", e.Err, prettyConf.Sprint(req), prettyConf.Sprint(resp))
}

var secretHeaders = []string{"Authorization", "Cookie", "Set-Cookie", "Proxy-Authorization"}

func redactRequest(req *http.Request) *http.Request {
	if req == nil {
		return nil
	}
	r := *req
	r.Header = redactHeader(req.Header)
	if r.URL != nil && r.URL.User != nil {
		u := *r.URL
		u.User = nil
		r.URL = &u
	}
	return &r
}

func redactHeader(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := h.Clone()
	for _, k := range secretHeaders {
		if _, ok := out[k]; ok {
			out[k] = []string{"REDACTED"}
		}
	}
	return out
}

type verboser interface {
	Verbose() string
}

// Verbose returns the most detailed description err offers.
func Verbose(err error) string {
	var v verboser
	if errors.As(err, &v) {
		return v.Verbose()
	}
	return err.Error()
}

// IsCancelled reports whether err is an expected user cancellation rather than a fault.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrAuthenticationCancelled)
}

// Message renders err for the user. Each kind gets its own wording.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthenticationCancelled):
		return "Sign-in was cancelled"
	case errors.Is(err, ErrValidation):
		return "Invalid input: " + detail(err, ErrValidation)
	case errors.Is(err, ErrUnknownBasemap):
		return "Unknown basemap: " + detail(err, ErrUnknownBasemap)
	case errors.Is(err, ErrSaveInProgress):
		return "A save is already in progress, please wait"
	case errors.Is(err, ErrAuthenticationFailure):
		return "Sign-in failed: " + err.Error()
	case errors.Is(err, ErrNetwork):
		return "Could not reach the service: " + err.Error()
	}
	return "Error: " + err.Error()
}

// detail strips the "<kind>: " prefix added by the wrapping helpers.
func detail(err, kind error) string {
	msg := err.Error()
	prefix := kind.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
