// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package auth

import (
	"crypto/subtle"
	"log/slog"

	"github.com/samber/oops"

	"github.com/maroonlab/maroon/pkg/errutil"
)

// Verifier decides whether a presented username/password pair matches the
// session credentials.
type Verifier interface {
	Match(username, password string) bool
}

// CredentialStore holds the single username/password pair of a session.
// It is read-only after construction and safe for concurrent use.
type CredentialStore struct {
	username string
	password string
	hash     string
	hasher   PasswordHasher
	logger   *slog.Logger
}

// StoreOption configures a CredentialStore.
type StoreOption func(*CredentialStore)

// WithStoreLogger sets the logger that reports hash verification failures.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *CredentialStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func newStore(s *CredentialStore, opts []StoreOption) *CredentialStore {
	s.logger = slog.New(slog.DiscardHandler)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewCredentialStore creates a store comparing against a plaintext password.
func NewCredentialStore(username, password string, opts ...StoreOption) (*CredentialStore, error) {
	if username == "" || password == "" {
		return nil, oops.Code("AUTH_EMPTY_CREDENTIALS").
			With("username_set", username != "").
			Errorf("username and password are required")
	}
	return newStore(&CredentialStore{username: username, password: password}, opts), nil
}

// NewHashedCredentialStore creates a store comparing against an argon2id hash
// of the password. The hash is checked for well-formedness up front.
func NewHashedCredentialStore(username, hash string, hasher PasswordHasher, opts ...StoreOption) (*CredentialStore, error) {
	if username == "" || hash == "" {
		return nil, oops.Code("AUTH_EMPTY_CREDENTIALS").
			With("username_set", username != "").
			Errorf("username and password hash are required")
	}
	if hasher == nil {
		hasher = NewArgon2idHasher()
	}
	if _, err := parsePHC(hash); err != nil {
		return nil, err
	}
	return newStore(&CredentialStore{username: username, hash: hash, hasher: hasher}, opts), nil
}

// Username returns the configured username.
func (s *CredentialStore) Username() string {
	return s.username
}

// Match reports whether username and password equal the configured pair exactly.
func (s *CredentialStore) Match(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1

	if s.hasher == nil {
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
		return userOK && passOK
	}

	passOK, err := s.hasher.Verify(password, s.hash)
	if err != nil {
		errutil.LogError(s.logger, "credential hash verification failed", err)
		return false
	}
	return userOK && passOK
}

var _ Verifier = (*CredentialStore)(nil)
