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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
	"github.com/jeremyhahn/go-lifecycle/pkg/reconcile"
)

// OutputFormat defines the output format type.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// FormatResult renders a reconciliation result in the specified format.
func FormatResult(result *reconcile.Result, format OutputFormat) string {
	if format == FormatJSON {
		return formatJSON(resultPayload(result))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Target:   %s\n", result.Target)
	fmt.Fprintf(&b, "Run:      %s\n", result.RunID)
	fmt.Fprintf(&b, "Diff:     %s\n", result.Diff)
	if result.SnapshotHash != "" {
		fmt.Fprintf(&b, "Snapshot: %s\n", result.SnapshotHash)
	}
	for _, o := range result.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(&b, "  %-20s %s (attempts=%d): %v\n", o.RuleID, o.Action, o.Attempts, o.Err)
		} else {
			fmt.Fprintf(&b, "  %-20s %s (attempts=%d)\n", o.RuleID, o.Action, o.Attempts)
		}
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(&b, "Warning:  %s\n", w.Message)
	}
	if result.AuditErr != nil {
		fmt.Fprintf(&b, "Warning:  audit record not written: %v\n", result.AuditErr)
	}
	return b.String()
}

// FormatDiff renders a diff in the specified format.
func FormatDiff(diff reconcile.Diff, format OutputFormat) string {
	if format == FormatJSON {
		return formatJSON(diff)
	}

	var b strings.Builder
	section := func(name string, ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", name)
		for _, id := range ids {
			fmt.Fprintf(&b, "  %s\n", id)
		}
	}
	section("To create", diff.ToCreate)
	section("To update", diff.ToUpdate)
	section("Drift (delete under --prune)", diff.ToDelete)
	section("Unchanged", diff.Unchanged)
	if b.Len() == 0 {
		return "No rules on either side\n"
	}
	return b.String()
}

// FormatWarnings renders conflict warnings in the specified format.
func FormatWarnings(warnings []policy.ConflictWarning, format OutputFormat) string {
	if len(warnings) == 0 {
		return ""
	}
	if format == FormatJSON {
		return formatJSON(map[string]any{"warnings": warnings})
	}
	var b strings.Builder
	for _, w := range warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w.Message)
	}
	return b.String()
}

// FormatError formats an error message in the specified format.
func FormatError(err error, format OutputFormat) string {
	if format == FormatJSON {
		return formatJSON(map[string]any{"success": false, "error": err.Error()})
	}
	return fmt.Sprintf("Error: %s\n", err.Error())
}

func resultPayload(result *reconcile.Result) map[string]any {
	outcomes := make([]map[string]any, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		entry := map[string]any{
			"rule_id":  o.RuleID,
			"action":   string(o.Action),
			"attempts": o.Attempts,
		}
		if o.Err != nil {
			entry["error"] = o.Err.Error()
		}
		outcomes = append(outcomes, entry)
	}
	payload := map[string]any{
		"target":        result.Target.String(),
		"run_id":        result.RunID,
		"diff":          result.Diff,
		"outcomes":      outcomes,
		"snapshot_hash": result.SnapshotHash,
		"failed":        result.Failed(),
	}
	if len(result.Warnings) > 0 {
		payload["warnings"] = result.Warnings
	}
	if result.AuditErr != nil {
		payload["audit_error"] = result.AuditErr.Error()
	}
	return payload
}

func formatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data) + "\n"
}
