package config

import (
	"fmt"
	"strings"
)

// Error types reported by ConfigurationError.
const (
	ErrorTypeIO    = "io"
	ErrorTypeParse = "parse"
	ErrorTypeEnv   = "env"
)

// ConfigurationError represents a structured error that occurs while loading
// the configuration file or its environment overrides.
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`
	ErrorType   string   `json:"errorType"` // io, parse, env
	Message     string   `json:"message"`
	Details     string   `json:"details"`
	Suggestions []string `json:"suggestions"`
	Err         error    `json:"-"`
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	if ce.FilePath == "" {
		return fmt.Sprintf("config %s error: %s", ce.ErrorType, ce.Message)
	}
	return fmt.Sprintf("config %s error in %s: %s", ce.ErrorType, ce.FilePath, ce.Message)
}

func (ce *ConfigurationError) Unwrap() error {
	return ce.Err
}

// DetailedError returns a multi-line message with suggestions, for CLI output.
func (ce *ConfigurationError) DetailedError() string {
	parts := []string{ce.Error()}
	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}
	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, s := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", s))
		}
	}
	return strings.Join(parts, "\n")
}

func newParseError(path string, err error) *ConfigurationError {
	return &ConfigurationError{
		FilePath:  path,
		ErrorType: ErrorTypeParse,
		Message:   "invalid YAML",
		Details:   err.Error(),
		Suggestions: []string{
			"Check indentation (YAML uses spaces, not tabs)",
			"Durations are written like 30s or 2m",
		},
		Err: err,
	}
}

func newIOError(path string, err error) *ConfigurationError {
	return &ConfigurationError{
		FilePath:  path,
		ErrorType: ErrorTypeIO,
		Message:   "cannot read configuration file",
		Details:   err.Error(),
		Err:       err,
	}
}
