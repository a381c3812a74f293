package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authorization flow errors
	ErrNoAuthorizationCode = fmt.Errorf("no authorization code received")
	ErrProviderDeniedAuth  = fmt.Errorf("provider denied authorization")
	ErrStateMismatch       = fmt.Errorf("invalid state parameter")
	ErrExchangeFailed      = fmt.Errorf("failed to exchange code for token")
	ErrCodeReused          = fmt.Errorf("authorization code already submitted")

	// Session errors
	ErrNoSession        = fmt.Errorf("no session established")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("session expired")
	ErrSessionNotFound  = fmt.Errorf("session not found")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrRequestFailed      = fmt.Errorf("API request failed")
	ErrMalformedResponse  = fmt.Errorf("malformed response")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
