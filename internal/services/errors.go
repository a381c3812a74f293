package services

import (
	"errors"
	"fmt"

	"github.com/desertthunder/rhythmiq/internal/shared"
)

// AuthErrorKind classifies failures of the authorization flow and of authenticated calls.
type AuthErrorKind int

const (
	NoAuthorizationCode AuthErrorKind = iota + 1
	ProviderDeniedAuth
	ExchangeFailed
	NoSession
	RequestFailed
	MalformedResponse
)

func (k AuthErrorKind) String() string {
	switch k {
	case NoAuthorizationCode:
		return "NoAuthorizationCode"
	case ProviderDeniedAuth:
		return "ProviderDeniedAuth"
	case ExchangeFailed:
		return "ExchangeFailed"
	case NoSession:
		return "NoSession"
	case RequestFailed:
		return "RequestFailed"
	case MalformedResponse:
		return "MalformedResponse"
	default:
		return fmt.Sprintf("AuthErrorKind(%d)", int(k))
	}
}

func (k AuthErrorKind) sentinel() error {
	switch k {
	case NoAuthorizationCode:
		return shared.ErrNoAuthorizationCode
	case ProviderDeniedAuth:
		return shared.ErrProviderDeniedAuth
	case ExchangeFailed:
		return shared.ErrExchangeFailed
	case NoSession:
		return shared.ErrNoSession
	case RequestFailed:
		return shared.ErrRequestFailed
	case MalformedResponse:
		return shared.ErrMalformedResponse
	default:
		return nil
	}
}

// AuthError is the single error type surfaced by the client side of the flow.
//
// Endpoint and Status are set for [RequestFailed] and [MalformedResponse].
// errors.Is matches the [shared] sentinel for Kind as well as anything Err wraps.
type AuthError struct {
	Kind     AuthErrorKind
	Endpoint string
	Status   int
	Err      error
}

func (e *AuthError) Error() string {
	msg := e.Kind.String()
	if sentinel := e.Kind.sentinel(); sentinel != nil {
		msg = sentinel.Error()
	}
	switch e.Kind {
	case RequestFailed:
		msg = fmt.Sprintf("%s: %s returned %d", msg, e.Endpoint, e.Status)
	case MalformedResponse:
		msg = fmt.Sprintf("%s from %s", msg, e.Endpoint)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Message is the text shown to the user for this error.
func (e *AuthError) Message() string {
	switch e.Kind {
	case NoAuthorizationCode:
		return "No authorization code received"
	case ProviderDeniedAuth:
		return "Authorization was denied"
	case ExchangeFailed:
		return "Failed to exchange code for token"
	case NoSession:
		if errors.Is(e.Err, shared.ErrTokenExpired) {
			return "Session expired, please log in again"
		}
		return "Not logged in"
	case RequestFailed:
		return fmt.Sprintf("Request to %s failed with status %d", e.Endpoint, e.Status)
	case MalformedResponse:
		return fmt.Sprintf("Unexpected response from %s", e.Endpoint)
	default:
		return e.Error()
	}
}

// AsAuthError unwraps err to an [*AuthError].
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// UpstreamError is a non-2xx response from the Spotify Web API.
type UpstreamError struct {
	Endpoint string
	Status   int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%v: spotify %s returned %d", shared.ErrRequestFailed, e.Endpoint, e.Status)
}

func (e *UpstreamError) Unwrap() error { return shared.ErrRequestFailed }
