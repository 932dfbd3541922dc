package graphql

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthentication is matched by every *AuthenticationError
	ErrAuthentication = errors.New("authentication failed")

	// ErrTransport is matched by every *TransportError
	ErrTransport = errors.New("transport error")

	// ErrGraphQL is matched by every *GraphQLError
	ErrGraphQL = errors.New("graphql error")
)

// AuthReason says why authentication failed
type AuthReason string

const (
	// ReasonInvalidCredentials means the provider rejected a login
	ReasonInvalidCredentials AuthReason = "invalid_credentials"
	// ReasonRefreshRejected means the provider rejected a token renewal; a new login is required
	ReasonRefreshRejected AuthReason = "refresh_rejected"
	// ReasonNotAuthenticated means no session exists for an authenticated query
	ReasonNotAuthenticated AuthReason = "not_authenticated"
	// ReasonUnauthorized means the provider rejected the token attached to a query
	ReasonUnauthorized AuthReason = "unauthorized"
)

// Messages the provider uses for rejected or missing credentials
var authErrorMessages = map[string]bool{
	"user-error:auth-not-authorised": true,
	"user-error:auth-required":       true,
}

// AuthenticationError reports credentials or tokens the provider did not accept.
// It is kept apart from TransportError so callers can tell stale credentials
// from an unreachable endpoint.
type AuthenticationError struct {
	Reason     AuthReason
	StatusCode int
	Errors     []ErrorEntry
	Err        error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("authentication failed (%s)", e.Reason)
	if len(e.Errors) > 0 {
		msg += ": " + joinMessages(e.Errors)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// TransportError covers connection failures, timeouts, unreadable bodies and
// unexpected HTTP statuses
type TransportError struct {
	// StatusCode is 0 when no response was received
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// GraphQLError is a well-formed response that reports query-level errors.
// Data holds any partial result the server returned alongside them.
type GraphQLError struct {
	Errors []ErrorEntry
	Data   json.RawMessage
}

func (e *GraphQLError) Error() string {
	return "graphql: " + joinMessages(e.Errors)
}

func (e *GraphQLError) Is(target error) bool { return target == ErrGraphQL }

// IsAuthError reports whether any entry is an authentication rejection
func IsAuthError(errs []ErrorEntry) bool {
	for _, e := range errs {
		if authErrorMessages[e.Message] {
			return true
		}
		if code, ok := e.Extensions["code"].(string); ok && (code == "UNAUTHENTICATED" || code == "FORBIDDEN") {
			return true
		}
	}
	return false
}

func joinMessages(errs []ErrorEntry) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}
