// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package auth_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maroonlab/maroon/internal/auth"
	"github.com/maroonlab/maroon/pkg/errutil"
)

func TestCredentialStore_Match(t *testing.T) {
	plain, err := auth.NewCredentialStore("demo", "demo123")
	require.NoError(t, err)

	hash, err := auth.NewArgon2idHasher().Hash("demo123")
	require.NoError(t, err)
	hashed, err := auth.NewHashedCredentialStore("demo", hash, nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"exact match", "demo", "demo123", true},
		{"wrong password", "demo", "wrong", false},
		{"wrong username", "admin", "demo123", false},
		{"case differs", "Demo", "demo123", false},
		{"trailing space", "demo", "demo123 ", false},
		{"prefix of password", "demo", "demo12", false},
		{"empty pair", "", "", false},
	}
	for _, store := range []struct {
		name  string
		store *auth.CredentialStore
	}{{"plain", plain}, {"hashed", hashed}} {
		for _, tt := range tests {
			t.Run(store.name+"/"+tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, store.store.Match(tt.username, tt.password))
			})
		}
	}
	assert.Equal(t, "demo", plain.Username())
}

func TestNewCredentialStore_RequiresBothFields(t *testing.T) {
	_, err := auth.NewCredentialStore("", "demo123")
	errutil.AssertErrorCode(t, err, "AUTH_EMPTY_CREDENTIALS")
	errutil.AssertErrorContext(t, err, "username_set", false)

	_, err = auth.NewCredentialStore("demo", "")
	errutil.AssertErrorCode(t, err, "AUTH_EMPTY_CREDENTIALS")
}

func TestNewHashedCredentialStore_Validation(t *testing.T) {
	_, err := auth.NewHashedCredentialStore("demo", "", nil)
	errutil.AssertErrorCode(t, err, "AUTH_EMPTY_CREDENTIALS")

	_, err = auth.NewHashedCredentialStore("demo", "$2a$10$bcryptlooking", nil)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
}

type brokenHasher struct{}

func (brokenHasher) Hash(string) (string, error) { return "", nil }

func (brokenHasher) Verify(string, string) (bool, error) {
	return false, oops.Code("AUTH_INVALID_HASH").Errorf("unreadable hash")
}

func TestCredentialStore_VerifyFailureGoesToInjectedLogger(t *testing.T) {
	hash, err := auth.NewArgon2idHasher().Hash("demo123")
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	store, err := auth.NewHashedCredentialStore("demo", hash, brokenHasher{}, auth.WithStoreLogger(logger))
	require.NoError(t, err)

	assert.False(t, store.Match("demo", "demo123"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "credential hash verification failed", entry["msg"])
	assert.Equal(t, "AUTH_INVALID_HASH", entry["code"])
}
