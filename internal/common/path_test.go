// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/.tether/tether.yml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".tether/tether.yml"), got)

	got, err = ExpandPath("/etc/tether/tether.yml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/tether/tether.yml", got)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir, 0755))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestUUID7(t *testing.T) {
	a, b := UUID7(), UUID7()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
