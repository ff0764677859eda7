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

// Package audit records every reconciliation attempt and its outcome.
// The log is append-only; a logging failure never rolls back an
// already-successful apply.
package audit

import (
	"context"
	"time"
)

// Action is the audited per-rule action.
type Action string

const (
	ActionCreated Action = "Created"
	ActionUpdated Action = "Updated"
	ActionDeleted Action = "Deleted"
	ActionSkipped Action = "Skipped"
	ActionFailed  Action = "Failed"
)

// DiffSummary captures which rule ids fell into each diff bucket.
type DiffSummary struct {
	ToCreate  []string `json:"to_create,omitempty"`
	ToUpdate  []string `json:"to_update,omitempty"`
	ToDelete  []string `json:"to_delete,omitempty"`
	Unchanged []string `json:"unchanged,omitempty"`
}

// Outcome is the audited result for a single rule.
type Outcome struct {
	RuleID   string `json:"rule_id"`
	Action   Action `json:"action"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// Record is a single audit log entry covering one reconciliation run.
type Record struct {
	// Timestamp when the reconciliation completed.
	Timestamp time.Time `json:"timestamp"`

	// RunID uniquely identifies the reconciliation run.
	RunID string `json:"run_id"`

	// Target is the bucket the run reconciled.
	Target string `json:"target"`

	// Prune indicates whether drifted rules were eligible for deletion.
	Prune bool `json:"prune"`

	// Diff summarizes the computed change set.
	Diff DiffSummary `json:"diff"`

	// Outcomes holds the per-rule results.
	Outcomes []Outcome `json:"outcomes,omitempty"`

	// SnapshotHash is a hash of the target's final configuration, for
	// comparison across runs.
	SnapshotHash string `json:"snapshot_hash,omitempty"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration,omitempty"`

	// Warnings carries non-fatal findings (rule conflicts and the like).
	Warnings []string `json:"warnings,omitempty"`
}

// Logger is the audit trail. Implementations must be safe for concurrent
// use; Record failures are reported to callers as non-fatal warnings.
type Logger interface {
	// Record appends one reconciliation record to the trail.
	Record(ctx context.Context, record *Record) error

	// Close releases any underlying resources.
	Close() error
}
