package tokenstore

import (
	"context"
	"strings"
)

// EnvStore reads the refresh token from an environment variable. It is for
// deployments where the token is injected as a secret; Save and Clear
// return ErrReadOnly.
type EnvStore struct {
	variable string
	lookup   func(string) (string, bool)
}

// NewEnvStore returns a read-only store over variable. lookup is normally
// os.LookupEnv.
func NewEnvStore(variable string, lookup func(string) (string, bool)) *EnvStore {
	return &EnvStore{variable: variable, lookup: lookup}
}

func (s *EnvStore) Describe() string {
	return "env:" + s.variable
}

func (s *EnvStore) Save(context.Context, string) error {
	return ErrReadOnly
}

func (s *EnvStore) Load(context.Context) (string, error) {
	v, ok := s.lookup(s.variable)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *EnvStore) Clear(context.Context) error {
	return ErrReadOnly
}
