// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"

	"github.com/stratastor/tether/internal/common"
	"github.com/stratastor/tether/internal/constants"
)

// GetConfigDir returns the configuration directory, falling back to the
// working directory when the home directory cannot be resolved
func GetConfigDir() string {
	dir, err := common.GetConfigDir()
	if err != nil {
		return filepath.Join(".", constants.ConfigDirName)
	}
	return dir
}

// DefaultConfigPath is the config file inside GetConfigDir
func DefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), constants.ConfigFileName)
}

// GetRuntimeDir holds the PID file and daemon logs
func GetRuntimeDir() string {
	if os.Geteuid() == 0 {
		return "/var/run/tether"
	}
	return filepath.Join(GetConfigDir(), "run")
}

// PIDFilePath is where the watch process records its PID
func PIDFilePath() string {
	return filepath.Join(GetRuntimeDir(), constants.TetherPIDFileName)
}

// EnsureDirectories creates the config and runtime directories
func EnsureDirectories() error {
	for _, dir := range []string{GetConfigDir(), GetRuntimeDir()} {
		if err := common.EnsureDir(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
