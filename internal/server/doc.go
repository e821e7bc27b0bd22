// Package server provides HTTP routing, middleware, and the OAuth callback handler used during
// YouTube authorization.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] receives the authorization code redirect. It validates the state parameter against
// the pending flow of its [Authorizer] (CSRF protection), hands the code over for the token exchange,
// and sends the outcome through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Current Usage
//
// When the user runs `tunesync auth youtube`, a temporary HTTP server starts on the configured
// host and port (localhost:3000 by default), handles the callback, and shuts down after the session
// is stored.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
