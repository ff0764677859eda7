// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-lifecycle.
//
// go-lifecycle is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package cli wires configuration, providers and the reconciliation
// engine together for the lifecyclectl command.
package cli

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ErrProviderUnknown is returned for an unrecognized provider name.
var ErrProviderUnknown = errors.New("unknown provider")

// Config holds the CLI configuration settings.
type Config struct {
	Provider     string // "s3" or "memory"
	Region       string
	Endpoint     string // custom endpoint for S3-compatible stores
	AccessKey    string
	SecretKey    string
	UsePathStyle bool

	RulesFile    string
	OutputFormat string

	AuditLog        string // path to the JSONL audit log; empty = log-only
	AuditLogMaxSize int64

	HookURL     string
	HookTimeout time.Duration

	MaxAttempts     int
	ProviderTimeout time.Duration
}

// InitConfig initializes the configuration using Viper.
// Configuration priority: flags > env vars > config file > defaults.
func InitConfig(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("provider", "s3")
	v.SetDefault("rules", "lifecycle.yaml")
	v.SetDefault("output-format", "text")
	v.SetDefault("audit-log-max-size", int64(64*1024*1024))
	v.SetDefault("hook-timeout", "30s")
	v.SetDefault("max-attempts", 4)
	v.SetDefault("provider-timeout", "30s")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".lifecyclectl")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LIFECYCLE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return v, nil
}

// GetConfig extracts the configuration from Viper into a Config struct.
func GetConfig(v *viper.Viper) *Config {
	return &Config{
		Provider:        v.GetString("provider"),
		Region:          v.GetString("region"),
		Endpoint:        v.GetString("endpoint"),
		AccessKey:       v.GetString("access-key"),
		SecretKey:       v.GetString("secret-key"),
		UsePathStyle:    v.GetBool("use-path-style"),
		RulesFile:       v.GetString("rules"),
		OutputFormat:    v.GetString("output-format"),
		AuditLog:        v.GetString("audit-log"),
		AuditLogMaxSize: v.GetInt64("audit-log-max-size"),
		HookURL:         v.GetString("hook-url"),
		HookTimeout:     v.GetDuration("hook-timeout"),
		MaxAttempts:     v.GetInt("max-attempts"),
		ProviderTimeout: v.GetDuration("provider-timeout"),
	}
}
