// Package tokenstore persists the single refresh token that backs guest
// access.
//
// There is exactly one slot. Save overwrites it (last writer wins), Load
// returns it or ErrNotFound, and Clear empties it. Token values are opaque
// and never logged.
//
// Backends:
//   - FileStore: one file, written atomically with 0600 permissions
//   - EnvStore: a read-only environment variable
//   - RedisStore: one Redis key without expiry
//   - MemoryStore: process memory, for tests and throwaway deployments
package tokenstore
