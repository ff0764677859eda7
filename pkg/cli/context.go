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

package cli

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-lifecycle/pkg/adapters"
	"github.com/jeremyhahn/go-lifecycle/pkg/audit"
	"github.com/jeremyhahn/go-lifecycle/pkg/hook"
	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
	"github.com/jeremyhahn/go-lifecycle/pkg/provider"
	"github.com/jeremyhahn/go-lifecycle/pkg/provider/memory"
	s3provider "github.com/jeremyhahn/go-lifecycle/pkg/provider/s3"
	"github.com/jeremyhahn/go-lifecycle/pkg/reconcile"
)

// CommandContext holds the collaborators for executing commands.
type CommandContext struct {
	Engine   *reconcile.Engine
	Provider provider.Provider
	Config   *Config
	Logger   adapters.Logger

	auditLog audit.Logger
}

// NewCommandContext builds an engine and its collaborators from the
// configuration.
func NewCommandContext(cfg *Config) (*CommandContext, error) {
	logger := adapters.NewDefaultLogger()

	prov, keys, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	var auditLog audit.Logger
	if cfg.AuditLog != "" {
		auditLog, err = audit.NewJSONLLog(cfg.AuditLog, cfg.AuditLogMaxSize, logger)
		if err != nil {
			return nil, err
		}
	} else {
		auditLog = audit.NewLogOnly(logger)
	}

	var preHook hook.Hook
	if cfg.HookURL != "" {
		preHook = hook.NewWebhook(cfg.HookURL, hook.WithTimeout(cfg.HookTimeout))
	}

	engine := reconcile.New(reconcile.Config{
		Provider: prov,
		Keys:     keys,
		Hook:     preHook,
		Audit:    auditLog,
		Logger:   logger,
		Retry: reconcile.RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
		},
	})

	return &CommandContext{
		Engine:   engine,
		Provider: prov,
		Config:   cfg,
		Logger:   logger,
		auditLog: auditLog,
	}, nil
}

// Close releases the command context's resources.
func (c *CommandContext) Close() error {
	if c.auditLog != nil {
		return c.auditLog.Close()
	}
	return nil
}

// Run reconciles the bucket against the configured rules file.
func (c *CommandContext) Run(ctx context.Context, bucket string, prune, dryRun bool) (*reconcile.Result, error) {
	target, err := policy.NewTarget(bucket)
	if err != nil {
		return nil, err
	}

	rules, err := policy.LoadRuleSet(c.Config.RulesFile)
	if err != nil {
		return nil, err
	}

	return c.Engine.Reconcile(ctx, target, rules, reconcile.Options{
		Prune:       prune,
		DryRun:      dryRun,
		MaxAttempts: c.Config.MaxAttempts,
	})
}

// Validate loads and validates the configured rules file without touching
// the provider.
func (c *CommandContext) Validate() ([]policy.ConflictWarning, error) {
	rules, err := policy.LoadRuleSet(c.Config.RulesFile)
	if err != nil {
		return nil, err
	}
	if errs := policy.Validate(rules); len(errs) > 0 {
		return nil, &reconcile.ValidationFailedError{Errors: errs}
	}
	return policy.DetectConflicts(rules), nil
}

func newProvider(cfg *Config) (provider.Provider, provider.KeyLister, error) {
	switch cfg.Provider {
	case "s3", "":
		p := s3provider.New()
		settings := map[string]string{
			"region":    cfg.Region,
			"endpoint":  cfg.Endpoint,
			"accessKey": cfg.AccessKey,
			"secretKey": cfg.SecretKey,
		}
		if cfg.UsePathStyle {
			settings["usePathStyle"] = "true"
		}
		if cfg.ProviderTimeout > 0 {
			settings["timeout"] = cfg.ProviderTimeout.String()
		}
		if err := p.Configure(settings); err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case "memory":
		m := memory.New()
		return m, m, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrProviderUnknown, cfg.Provider)
	}
}
