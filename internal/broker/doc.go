// Package broker exchanges OAuth authorization codes and refresh tokens at
// the identity provider's token endpoint on behalf of the browser.
//
// Each Exchange call performs exactly one outbound POST and never retries.
// A refresh token returned by a code exchange is written to the configured
// tokenstore.Store before the call returns, which is what later enables
// Guest logins. Failures are reported as *Error values carrying a Kind so
// callers can map them to HTTP statuses without string matching.
package broker
