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
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeremyhahn/go-lifecycle/pkg/adapters"
)

const watchDebounce = 500 * time.Millisecond

// WatchRules watches the rules file and invokes onChange, debounced, each
// time it is written. Editors replace files on save, so the parent
// directory is watched and events are filtered by name. Blocks until the
// context is cancelled.
func (c *CommandContext) WatchRules(ctx context.Context, onChange func(context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	rulesPath, err := filepath.Abs(c.Config.RulesFile)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(rulesPath)); err != nil {
		return err
	}

	c.Logger.Info(ctx, "watching rules file", adapters.Field{Key: "path", Value: rulesPath})

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != rulesPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			onChange(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.Logger.Warn(ctx, "watcher error", adapters.Field{Key: "error", Value: err.Error()})
		}
	}
}
