// Package credentials resolves named credential references into plaintext
// values usable by node executors. Encryption at rest is entirely the
// backing store's responsibility; the engine only ever sees resolved values.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound indicates the reference resolves to no credential.
var ErrNotFound = errors.New("credential not found")

// Store resolves credential references to plaintext values.
type Store interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// EnvStore resolves credentials from environment variables. A reference
// "slack_token" resolves to the variable FLOWMESH_CREDENTIAL_SLACK_TOKEN
// (with the default prefix).
type EnvStore struct {
	Prefix string
}

// NewEnvStore returns an EnvStore with the default prefix.
func NewEnvStore() *EnvStore {
	return &EnvStore{Prefix: "FLOWMESH_CREDENTIAL_"}
}

func (s *EnvStore) Resolve(_ context.Context, ref string) (string, error) {
	name := s.Prefix + strings.ToUpper(strings.ReplaceAll(ref, "-", "_"))
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: %q (env %s)", ErrNotFound, ref, name)
	}
	return value, nil
}

// StaticStore is a fixed in-memory mapping, for tests and embedded use.
type StaticStore map[string]string

func (s StaticStore) Resolve(_ context.Context, ref string) (string, error) {
	value, ok := s[ref]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	return value, nil
}
