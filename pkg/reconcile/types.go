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

// Package reconcile computes and applies the minimal change set between a
// declared rule set and the live lifecycle configuration of a target.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
)

// Action is the per-rule apply outcome.
type Action string

const (
	ActionCreated Action = "Created"
	ActionUpdated Action = "Updated"
	ActionDeleted Action = "Deleted"
	ActionSkipped Action = "Skipped"
	ActionFailed  Action = "Failed"
)

// Diff partitions the union of local and provider rule ids into four
// disjoint sets. ToDelete is drift: acted on only under prune semantics,
// otherwise reported.
type Diff struct {
	ToCreate  []string `json:"to_create,omitempty"`
	ToUpdate  []string `json:"to_update,omitempty"`
	ToDelete  []string `json:"to_delete,omitempty"`
	Unchanged []string `json:"unchanged,omitempty"`
}

// Empty reports whether the diff calls for no creates or updates.
// Drifted rules do not count; without prune they are left alone.
func (d Diff) Empty() bool {
	return len(d.ToCreate) == 0 && len(d.ToUpdate) == 0
}

func (d Diff) String() string {
	return fmt.Sprintf("create=%d update=%d delete=%d unchanged=%d",
		len(d.ToCreate), len(d.ToUpdate), len(d.ToDelete), len(d.Unchanged))
}

// Outcome is the per-rule result of an apply.
type Outcome struct {
	RuleID   string `json:"rule_id"`
	Action   Action `json:"action"`
	Attempts int    `json:"attempts"`
	Err      error  `json:"-"`
}

// Result is what one reconciliation run returns to the caller.
type Result struct {
	Target       policy.Target            `json:"-"`
	RunID        string                   `json:"run_id"`
	Diff         Diff                     `json:"diff"`
	Outcomes     []Outcome                `json:"outcomes,omitempty"`
	Warnings     []policy.ConflictWarning `json:"warnings,omitempty"`
	SnapshotHash string                   `json:"snapshot_hash,omitempty"`
	Duration     time.Duration            `json:"duration"`

	// AuditErr reports a failure to record the run in the audit trail.
	// Non-fatal: operational state is never lost over an audit issue.
	AuditErr error `json:"-"`
}

// Failed reports whether any rule outcome failed.
func (r *Result) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Action == ActionFailed {
			return true
		}
	}
	return false
}

// ValidationFailedError aborts a reconciliation before any provider call.
type ValidationFailedError struct {
	Errors []*policy.ValidationError
}

func (e *ValidationFailedError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("rule set validation failed: %s", strings.Join(msgs, "; "))
}
