// Package logging provides subsystem-tagged structured logging for supplydash.
//
// The package wraps Go's log/slog with a small, process-wide API so every
// component logs the same way:
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("Proxy", "Tunnel mounted at %s", prefix)
//	logging.Debug("Broker", "Token endpoint %s", endpoint)
//	logging.Warn("TokenStore", "Store is read-only, refresh token not persisted")
//	logging.Error("Server", err, "Failed to encode response")
//
// Components that accept an injected *slog.Logger get one from Logger, which
// carries the same subsystem attribute.
//
// Token values must never be passed to these functions. Use the redacted
// wrappers provided by the broker package when a token needs to appear in a
// formatted value.
package logging
