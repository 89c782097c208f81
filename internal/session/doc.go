// Package session is the client side of the embedded analytics bridge.
//
// A Resolver obtains an access token from the supplydash backend in strict
// priority order:
//
//  1. a cached token that has not expired (TokenCache)
//  2. guest login through /api/auth/guest, using the stored refresh token
//  3. interactive login: an Authorizer obtains an authorization code which is
//     exchanged through /api/auth/token
//
// A Client then opens exactly one engine connection per session through the
// backend tunnel and keeps reusing it until it closes. The next call to
// Client.Session after a close resolves a token again and reconnects, since
// access tokens are short-lived.
//
// Session speaks the engine's JSON-RPC 2.0 dialect. Hypercube layouts are
// decoded into typed rows by field title, so reordering columns in an object
// definition cannot silently shift values.
package session
