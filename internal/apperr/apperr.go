// Package apperr defines the error taxonomy shared by every layer. HTTP status
// mapping happens once, in the kit error handler.
package apperr

import (
	"errors"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrUnauthenticated means no principal was resolved for the request.
	ErrUnauthenticated = goerr.New("authentication required")
	// ErrNotFound covers both true absence and resources outside the caller's
	// workspace. The two must stay indistinguishable.
	ErrNotFound = goerr.New("not found")
	// ErrActionDisallowed means the caller can see the resource but the
	// operation is not enabled for it.
	ErrActionDisallowed = goerr.New("action not allowed")
	// ErrConflict is a uniqueness violation.
	ErrConflict = goerr.New("conflict")
	// ErrBadRequest is a malformed request outside field validation (bad JSON, bad query).
	ErrBadRequest = goerr.New("bad request")
)

// Context keys for error values
const (
	ResourceKey  = "resource"
	IDKey        = "id"
	WorkspaceKey = "workspace_id"
	ParentKey    = "parent_id"
	ActionKey    = "action"
)

// NotFound wraps ErrNotFound with diagnostic values. The values are logged,
// never rendered to the client.
func NotFound(msg string, opts ...goerr.Option) error {
	return goerr.Wrap(ErrNotFound, msg, opts...)
}

// Disallowed wraps ErrActionDisallowed.
func Disallowed(msg string, opts ...goerr.Option) error {
	return goerr.Wrap(ErrActionDisallowed, msg, opts...)
}

// Conflict wraps ErrConflict around the storage error that caused it.
func Conflict(cause error, msg string, opts ...goerr.Option) error {
	return goerr.Wrap(ErrConflict, msg, append(opts, goerr.V("cause", cause.Error()))...)
}

// BadRequest wraps ErrBadRequest.
func BadRequest(msg string, opts ...goerr.Option) error {
	return goerr.Wrap(ErrBadRequest, msg, opts...)
}

// ValidationError reports every failing field independently.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Add records a message for key, keeping the first message reported for a field.
func (e *ValidationError) Add(key, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[key]; !ok {
		e.Fields[key] = msg
	}
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

// AsValidation extracts a ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
