// Package services talks HTTP on both sides of the control plane.
//
// # Client Side
//
// [TokenStore] holds the opaque session identifier issued by the control plane together with its absolute expiry.
// [ExchangeClient] trades a one-time authorization code for that identifier (POST /api/spotify/token) and never
// submits the same code twice. [Client] performs authenticated calls against the control plane, attaching the
// session cookie and sessionId query parameter, and refuses to send anything once the session has expired.
//
// # Server Side
//
// [SpotifyProvider] holds the client secret and talks to the Spotify accounts service and Web API.
// Upstream calls are rate limited and made through an [oauth2.TokenSource] that reports refreshed tokens
// so callers can persist them.
//
// # Error Handling
//
// Client-side failures are reported as [*AuthError] values whose Kind selects one of:
//   - [shared.ErrNoAuthorizationCode] : callback carried no code
//   - [shared.ErrProviderDeniedAuth] : provider returned an error parameter
//   - [shared.ErrExchangeFailed] : code exchange failed (never retried)
//   - [shared.ErrNoSession] : no session, or an expired one
//   - [shared.ErrRequestFailed] : non-2xx from the control plane
//   - [shared.ErrMalformedResponse] : 2xx body that could not be decoded or validated
//
// Upstream Spotify failures are [*UpstreamError] values wrapping [shared.ErrRequestFailed].
package services
