// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileEnvFlagLayering(t *testing.T) {
	dataDir := t.TempDir()
	path := ConfigPath(dataDir)

	onDisk := Config{DataDir: dataDir, Network: "regtest", LogLevel: "warn", LogFile: filepath.Join(dataDir, "vest.log")}
	require.NoError(t, SaveConfig(path, onDisk))

	base, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, onDisk, base)

	env := EnvMap([]string{
		EnvLogLevel + "=error",
		EnvLogFile + "=",
		"UNRELATED=1",
	})
	got, err := Resolve(base, env, &Config{LogLevel: "debug"})
	require.NoError(t, err)

	assert.Equal(t, dataDir, got.DataDir, "file")
	assert.Equal(t, "regtest", got.Network, "file")
	assert.Equal(t, "debug", got.LogLevel, "flag beats env")
	assert.Equal(t, onDisk.LogFile, got.LogFile, "empty env value leaves file value")
	assert.Equal(t, filepath.Join(dataDir, LedgerFileName), got.LedgerPath())

	got, err = Resolve(base, env, nil)
	require.NoError(t, err)
	assert.Equal(t, "error", got.LogLevel, "env beats file")
}

func TestLoadConfig(t *testing.T) {
	write := func(t *testing.T, content string) string {
		path := filepath.Join(t.TempDir(), ConfigFileName)
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
		return path
	}

	t.Run("missing", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope"))
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := LoadConfig(write(t, "# ok\nnetwork testnet\n"))
		assert.ErrorIs(t, err, ErrInvalidConfigLine)
		assert.ErrorContains(t, err, "line 2")
	})

	t.Run("partial", func(t *testing.T) {
		cfg, err := LoadConfig(write(t, "\n  LogFile = /tmp/a=b.log \nfuture = 1\n"))
		require.NoError(t, err)
		assert.Equal(t, "/tmp/a=b.log", cfg.LogFile)
		assert.Equal(t, DefaultConfig().Network, cfg.Network)
		assert.Equal(t, DefaultDataDir(), cfg.DataDir)
	})
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"regtest", func(c *Config) { c.Network = "regtest" }, nil},
		{"mixed case level", func(c *Config) { c.LogLevel = "Warn" }, nil},
		{"empty datadir", func(c *Config) { c.DataDir = "" }, ErrEmptyDataDir},
		{"devnet", func(c *Config) { c.Network = "devnet" }, ErrInvalidNetwork},
		{"verbose", func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidLogLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := ValidateConfig(cfg)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	_, err := Resolve(DefaultConfig(), map[string]string{EnvNetwork: "devnet"}, nil)
	assert.ErrorIs(t, err, ErrInvalidNetwork, "Resolve validates the merged result")
}

func TestLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"Error": slog.LevelError,
		"":      slog.LevelInfo,
		"trace": slog.LevelInfo,
	} {
		assert.Equal(t, want, Config{LogLevel: in}.Level(), "level %q", in)
	}
}
