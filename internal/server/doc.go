// Package server provides HTTP routing, middleware, the local OAuth callback listener and the control-plane backend.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Chain] and [BasicRouter.Use] apply [Middleware] with the first one outermost.
//
// The [BasicRouter] implementation registers method patterns ("GET /path") on an [http.ServeMux].
//
// # Callback Handler
//
// [CallbackHandler] adapts [session.CallbackController] to HTTP. The CLI starts it on the callback origin,
// opens the browser and waits on [CallbackHandler.Result] for the single navigation.
//
// # Control Plane
//
// [ControlPlane] serves /api/spotify/*. It exchanges authorization codes with the client secret, stores the
// provider token in SQLite and hands the client an opaque session id (cookie and JSON body). Authenticated
// routes resolve the session from the cookie, the sessionId query parameter or a bearer token, in that order.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
