// Package cli holds helpers shared by the supplydash commands: typed errors
// that map to process exit codes, and go-pretty table rendering.
package cli
