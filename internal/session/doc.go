// Package session owns the client-side authentication state.
//
// [CallbackController] turns one provider redirect into at most one code exchange and exactly one navigation,
// no matter how many times the redirect handler is invoked. [Manager] is the session context: it publishes
// {IsAuthenticated, UserProfile, IsLoading, Error}, performs login, logout and the post-callback exchange,
// and guards protected views with [Manager.RequireAuth].
package session
