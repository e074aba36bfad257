// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "strings"

// Environment variables consulted by Resolve.
const (
	EnvDataDir  = "VESTLEDGER_DATADIR"
	EnvNetwork  = "VESTLEDGER_NETWORK"
	EnvLogLevel = "VESTLEDGER_LOGLEVEL"
	EnvLogFile  = "VESTLEDGER_LOGFILE"
)

// Resolve merges configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority; empty fields are unset)
//  2. Environment variables (VESTLEDGER_DATADIR, VESTLEDGER_NETWORK, ...)
//  3. base, usually the config file layered over DefaultConfig
//
// The merged result is validated.
func Resolve(base Config, env map[string]string, flags *Config) (Config, error) {
	result := base

	// Layer 2: environment variables override the file.
	if env != nil {
		if v, ok := env[EnvDataDir]; ok && v != "" {
			result.DataDir = v
		}
		if v, ok := env[EnvNetwork]; ok && v != "" {
			result.Network = v
		}
		if v, ok := env[EnvLogLevel]; ok && v != "" {
			result.LogLevel = v
		}
		if v, ok := env[EnvLogFile]; ok && v != "" {
			result.LogFile = v
		}
	}

	// Layer 3: CLI flags have highest priority.
	if flags != nil {
		if flags.DataDir != "" {
			result.DataDir = flags.DataDir
		}
		if flags.Network != "" {
			result.Network = flags.Network
		}
		if flags.LogLevel != "" {
			result.LogLevel = flags.LogLevel
		}
		if flags.LogFile != "" {
			result.LogFile = flags.LogFile
		}
	}

	if err := ValidateConfig(result); err != nil {
		return result, err
	}
	return result, nil
}

// EnvMap converts os.Environ-style "KEY=value" pairs into a map.
func EnvMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
