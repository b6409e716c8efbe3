// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir(t *testing.T) {
	tests := []struct {
		name string
		xdg  string
		want string
	}{
		{"env var", "/custom/config", "/custom/config/maroon"},
		{"home fallback", "", "/home/testuser/.config/maroon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CONFIG_HOME", tt.xdg)
			t.Setenv("HOME", "/home/testuser")

			got, err := ConfigDir()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/testuser")

	got, err := StateDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/testuser/.local/state/maroon", got)

	t.Setenv("XDG_STATE_HOME", "/custom/state")
	got, err = StateDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/state/maroon", got)
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	got, err := ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/maroon/config.yaml", got)
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, EnsureDir(path))
	require.NoError(t, EnsureDir(path), "second call is a no-op")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}
