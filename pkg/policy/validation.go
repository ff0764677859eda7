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

package policy

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error on a rule set.
type ValidationError struct {
	RuleID  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("rule %q: validation error on field '%s': %s", e.RuleID, e.Field, e.Message)
	}
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ConflictWarning reports two enabled rules whose prefixes overlap but whose
// transition schedules differ. The provider resolves prefix precedence on its
// own terms (most-specific-prefix-wins on S3), so this is surfaced to the
// operator rather than rejected.
type ConflictWarning struct {
	RuleID      string `json:"rule_id"`
	OtherRuleID string `json:"other_rule_id"`
	Message     string `json:"message"`
}

// Validate checks a rule set against the structural invariants:
// unique ids, positive day counts, strictly increasing transition days,
// monotonically colder transition classes, and expiration strictly after
// the final transition. It is pure and side-effect-free; an empty result
// means the rule set is valid.
func Validate(rs RuleSet) []*ValidationError {
	var errs []*ValidationError

	seen := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.ID == "" {
			errs = append(errs, &ValidationError{Field: "id", Message: "rule id cannot be empty"})
			continue
		}
		if seen[r.ID] {
			errs = append(errs, &ValidationError{RuleID: r.ID, Field: "id", Message: "duplicate rule id"})
			continue
		}
		seen[r.ID] = true
		errs = append(errs, validateRule(r)...)
	}

	return errs
}

func validateRule(r Rule) []*ValidationError {
	var errs []*ValidationError

	if !r.Status.Valid() {
		errs = append(errs, &ValidationError{
			RuleID:  r.ID,
			Field:   "status",
			Message: fmt.Sprintf("unknown status %q", r.Status),
		})
	}

	prevDays := 0
	prevColdness := -1
	for i, t := range r.Transitions {
		field := fmt.Sprintf("transitions[%d]", i)
		if t.AfterDays <= 0 {
			errs = append(errs, &ValidationError{
				RuleID:  r.ID,
				Field:   field,
				Message: fmt.Sprintf("afterDays must be positive, got %d", t.AfterDays),
			})
		}
		if !t.StorageClass.Valid() {
			errs = append(errs, &ValidationError{
				RuleID:  r.ID,
				Field:   field,
				Message: fmt.Sprintf("unknown storage class %q", t.StorageClass),
			})
			continue
		}
		if i > 0 {
			if t.AfterDays <= prevDays {
				errs = append(errs, &ValidationError{
					RuleID: r.ID,
					Field:  field,
					Message: fmt.Sprintf("transition days must be strictly increasing: %d follows %d",
						t.AfterDays, prevDays),
				})
			}
			if t.StorageClass.Coldness() < prevColdness {
				errs = append(errs, &ValidationError{
					RuleID: r.ID,
					Field:  field,
					Message: fmt.Sprintf("transition to %q is warmer than a prior transition",
						t.StorageClass),
				})
			}
		}
		prevDays = t.AfterDays
		prevColdness = t.StorageClass.Coldness()
	}

	if r.Expiration != nil {
		if r.Expiration.AfterDays <= 0 {
			errs = append(errs, &ValidationError{
				RuleID:  r.ID,
				Field:   "expiration",
				Message: fmt.Sprintf("afterDays must be positive, got %d", r.Expiration.AfterDays),
			})
		} else if len(r.Transitions) > 0 && r.Expiration.AfterDays <= prevDays {
			errs = append(errs, &ValidationError{
				RuleID: r.ID,
				Field:  "expiration",
				Message: fmt.Sprintf("expiration after %d days does not exceed final transition at %d days",
					r.Expiration.AfterDays, prevDays),
			})
		}
	}

	return errs
}

// DetectConflicts reports pairs of enabled rules with overlapping prefixes
// and differing transition schedules. An empty prefix overlaps everything.
func DetectConflicts(rs RuleSet) []ConflictWarning {
	var warnings []ConflictWarning

	for i, a := range rs.Rules {
		if a.Status != StatusEnabled {
			continue
		}
		for _, b := range rs.Rules[i+1:] {
			if b.Status != StatusEnabled {
				continue
			}
			if !prefixesOverlap(a.Prefix, b.Prefix) {
				continue
			}
			if transitionsEqual(a.Transitions, b.Transitions) {
				continue
			}
			warnings = append(warnings, ConflictWarning{
				RuleID:      a.ID,
				OtherRuleID: b.ID,
				Message: fmt.Sprintf("rules %q and %q both match prefix %q with different transition schedules; "+
					"the provider decides precedence", a.ID, b.ID, longerPrefix(a.Prefix, b.Prefix)),
			})
		}
	}

	return warnings
}

func prefixesOverlap(a, b string) bool {
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

func transitionsEqual(a, b []Transition) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func longerPrefix(a, b string) string {
	if len(a) >= len(b) {
		return a
	}
	return b
}
