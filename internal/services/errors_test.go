package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/desertthunder/rhythmiq/internal/shared"
)

func TestAuthError(t *testing.T) {
	t.Run("matches sentinel for kind", func(t *testing.T) {
		cases := map[AuthErrorKind]error{
			NoAuthorizationCode: shared.ErrNoAuthorizationCode,
			ProviderDeniedAuth:  shared.ErrProviderDeniedAuth,
			ExchangeFailed:      shared.ErrExchangeFailed,
			NoSession:           shared.ErrNoSession,
			RequestFailed:       shared.ErrRequestFailed,
			MalformedResponse:   shared.ErrMalformedResponse,
		}

		for kind, sentinel := range cases {
			err := fmt.Errorf("wrapped: %w", &AuthError{Kind: kind})
			if !errors.Is(err, sentinel) {
				t.Errorf("%s: expected errors.Is to match %v", kind, sentinel)
			}
		}
	})

	t.Run("does not match other kinds", func(t *testing.T) {
		err := &AuthError{Kind: NoSession}
		if errors.Is(err, shared.ErrExchangeFailed) {
			t.Error("NoSession should not match ErrExchangeFailed")
		}
	})

	t.Run("unwraps cause", func(t *testing.T) {
		err := &AuthError{Kind: NoSession, Err: shared.ErrTokenExpired}
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Error("expected cause to be reachable")
		}
		if !strings.Contains(err.Error(), "session expired") {
			t.Errorf("expected cause in message, got %q", err.Error())
		}
	})

	t.Run("request failed carries endpoint and status", func(t *testing.T) {
		err := &AuthError{Kind: RequestFailed, Endpoint: ProfilePath, Status: 500}
		if !strings.Contains(err.Error(), ProfilePath) || !strings.Contains(err.Error(), "500") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		if got := (&AuthError{}).Error(); got != "AuthErrorKind(0)" {
			t.Errorf("unexpected message %q", got)
		}
		err := &AuthError{Kind: AuthErrorKind(42), Err: shared.ErrTimeout}
		if got := err.Error(); !strings.Contains(got, "AuthErrorKind(42)") || !strings.Contains(got, "timed out") {
			t.Errorf("unexpected message %q", got)
		}
		if got := err.Message(); got != err.Error() {
			t.Errorf("expected Message to fall back to Error, got %q", got)
		}
		if errors.Is(err, nil) {
			t.Error("unknown kind should not match nil")
		}
	})

	t.Run("Message", func(t *testing.T) {
		if got := (&AuthError{Kind: ExchangeFailed}).Message(); got != "Failed to exchange code for token" {
			t.Errorf("unexpected exchange message %q", got)
		}
		if got := (&AuthError{Kind: NoSession, Err: shared.ErrTokenExpired}).Message(); !strings.Contains(got, "expired") {
			t.Errorf("unexpected expired message %q", got)
		}
		if got := (&AuthError{Kind: RequestFailed, Endpoint: "/x", Status: 404}).Message(); !strings.Contains(got, "404") {
			t.Errorf("unexpected request message %q", got)
		}
	})

	t.Run("AsAuthError", func(t *testing.T) {
		if _, ok := AsAuthError(errors.New("plain")); ok {
			t.Error("plain error should not convert")
		}
		authErr, ok := AsAuthError(fmt.Errorf("ctx: %w", &AuthError{Kind: MalformedResponse}))
		if !ok || authErr.Kind != MalformedResponse {
			t.Errorf("expected MalformedResponse, got %v", authErr)
		}
	})

	t.Run("UpstreamError", func(t *testing.T) {
		err := &UpstreamError{Endpoint: "/me", Status: 429}
		if !errors.Is(err, shared.ErrRequestFailed) {
			t.Error("expected upstream error to wrap ErrRequestFailed")
		}
	})
}
