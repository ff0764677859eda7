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

package reconcile

import (
	"sort"

	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
	"github.com/jeremyhahn/go-lifecycle/pkg/provider"
)

// ComputeDiff compares a declared rule set against provider state and
// partitions every rule id into exactly one of create, update, delete or
// unchanged. Pure, deterministic and side-effect-free; id lists come back
// sorted so equal inputs always produce identical output. Provider-added
// metadata outside the declared model never influences the comparison.
func ComputeDiff(local policy.RuleSet, state *provider.State) Diff {
	var diff Diff

	remote := make(map[string]policy.Rule, len(state.Rules))
	for _, r := range state.Rules {
		remote[r.ID] = r
	}

	declared := make(map[string]bool, len(local.Rules))
	for _, r := range local.Rules {
		declared[r.ID] = true
		current, ok := remote[r.ID]
		switch {
		case !ok:
			diff.ToCreate = append(diff.ToCreate, r.ID)
		case r.Equivalent(current):
			diff.Unchanged = append(diff.Unchanged, r.ID)
		default:
			diff.ToUpdate = append(diff.ToUpdate, r.ID)
		}
	}

	for _, r := range state.Rules {
		if !declared[r.ID] {
			diff.ToDelete = append(diff.ToDelete, r.ID)
		}
	}

	sort.Strings(diff.ToCreate)
	sort.Strings(diff.ToUpdate)
	sort.Strings(diff.ToDelete)
	sort.Strings(diff.Unchanged)
	return diff
}
