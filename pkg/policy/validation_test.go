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
	"strings"
	"testing"
)

func validRuleSet() RuleSet {
	return RuleSet{Rules: []Rule{
		{
			ID:     "r1",
			Prefix: "logs/",
			Status: StatusEnabled,
			Transitions: []Transition{
				{AfterDays: 30, StorageClass: StorageClassArchive},
				{AfterDays: 365, StorageClass: StorageClassDeepArchive},
			},
			Expiration: &Expiration{AfterDays: 3650},
		},
	}}
}

func TestValidate_ValidRuleSet(t *testing.T) {
	errs := Validate(validRuleSet())
	if len(errs) != 0 {
		t.Errorf("Expected no validation errors, got %v", errs)
	}
}

func TestValidate_EmptyRuleSet(t *testing.T) {
	errs := Validate(RuleSet{})
	if len(errs) != 0 {
		t.Errorf("Expected empty rule set to be valid, got %v", errs)
	}
}

func TestValidate_DecreasingTransitionDays(t *testing.T) {
	rs := RuleSet{Rules: []Rule{{
		ID:     "r1",
		Status: StatusEnabled,
		Transitions: []Transition{
			{AfterDays: 60, StorageClass: StorageClassArchive},
			{AfterDays: 30, StorageClass: StorageClassDeepArchive},
		},
	}}}

	errs := Validate(rs)
	if len(errs) == 0 {
		t.Fatal("Expected validation error for decreasing transition days")
	}
	if !strings.Contains(errs[0].Message, "strictly increasing") {
		t.Errorf("Expected ordering error, got %q", errs[0].Message)
	}
}

func TestValidate_WarmerTransition(t *testing.T) {
	rs := RuleSet{Rules: []Rule{{
		ID:     "r1",
		Status: StatusEnabled,
		Transitions: []Transition{
			{AfterDays: 30, StorageClass: StorageClassDeepArchive},
			{AfterDays: 60, StorageClass: StorageClassInfrequentAccess},
		},
	}}}

	errs := Validate(rs)
	if len(errs) == 0 {
		t.Fatal("Expected validation error for warmer transition")
	}
	if !strings.Contains(errs[0].Message, "warmer") {
		t.Errorf("Expected warmer-class error, got %q", errs[0].Message)
	}
}

func TestValidate_ExpirationBeforeFinalTransition(t *testing.T) {
	rs := RuleSet{Rules: []Rule{{
		ID:     "r1",
		Status: StatusEnabled,
		Transitions: []Transition{
			{AfterDays: 100, StorageClass: StorageClassArchive},
		},
		Expiration: &Expiration{AfterDays: 100},
	}}}

	errs := Validate(rs)
	if len(errs) == 0 {
		t.Fatal("Expected validation error for expiration not exceeding final transition")
	}
	if errs[0].Field != "expiration" {
		t.Errorf("Expected error on field 'expiration', got %q", errs[0].Field)
	}
}

func TestValidate_DuplicateIDs(t *testing.T) {
	rs := RuleSet{Rules: []Rule{
		{ID: "r1", Status: StatusEnabled},
		{ID: "r1", Status: StatusEnabled},
	}}

	errs := Validate(rs)
	if len(errs) != 1 {
		t.Fatalf("Expected 1 validation error, got %d: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Message, "duplicate") {
		t.Errorf("Expected duplicate-id error, got %q", errs[0].Message)
	}
}

func TestValidate_EmptyID(t *testing.T) {
	rs := RuleSet{Rules: []Rule{{Status: StatusEnabled}}}

	errs := Validate(rs)
	if len(errs) != 1 {
		t.Fatalf("Expected 1 validation error, got %d", len(errs))
	}
}

func TestValidate_UnknownStorageClass(t *testing.T) {
	rs := RuleSet{Rules: []Rule{{
		ID:     "r1",
		Status: StatusEnabled,
		Transitions: []Transition{
			{AfterDays: 30, StorageClass: StorageClass("LUKEWARM")},
		},
	}}}

	errs := Validate(rs)
	if len(errs) == 0 {
		t.Fatal("Expected validation error for unknown storage class")
	}
}

func TestValidate_UnknownStatus(t *testing.T) {
	rs := RuleSet{Rules: []Rule{{ID: "r1", Status: RuleStatus("PAUSED")}}}

	errs := Validate(rs)
	if len(errs) == 0 {
		t.Fatal("Expected validation error for unknown status")
	}
}

func TestValidate_NonPositiveDays(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{
			name: "zero transition days",
			rule: Rule{ID: "r1", Status: StatusEnabled,
				Transitions: []Transition{{AfterDays: 0, StorageClass: StorageClassArchive}}},
		},
		{
			name: "negative transition days",
			rule: Rule{ID: "r1", Status: StatusEnabled,
				Transitions: []Transition{{AfterDays: -5, StorageClass: StorageClassArchive}}},
		},
		{
			name: "zero expiration days",
			rule: Rule{ID: "r1", Status: StatusEnabled, Expiration: &Expiration{AfterDays: 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(RuleSet{Rules: []Rule{tt.rule}})
			if len(errs) == 0 {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestDetectConflicts_OverlappingPrefixes(t *testing.T) {
	rs := RuleSet{Rules: []Rule{
		{
			ID: "broad", Prefix: "", Status: StatusEnabled,
			Transitions: []Transition{{AfterDays: 30, StorageClass: StorageClassArchive}},
		},
		{
			ID: "narrow", Prefix: "logs/", Status: StatusEnabled,
			Transitions: []Transition{{AfterDays: 90, StorageClass: StorageClassArchive}},
		},
	}}

	warnings := DetectConflicts(rs)
	if len(warnings) != 1 {
		t.Fatalf("Expected 1 conflict warning, got %d", len(warnings))
	}
	if warnings[0].RuleID != "broad" || warnings[0].OtherRuleID != "narrow" {
		t.Errorf("Unexpected warning pair: %+v", warnings[0])
	}
}

func TestDetectConflicts_DisabledRuleIgnored(t *testing.T) {
	rs := RuleSet{Rules: []Rule{
		{
			ID: "broad", Prefix: "", Status: StatusDisabled,
			Transitions: []Transition{{AfterDays: 30, StorageClass: StorageClassArchive}},
		},
		{
			ID: "narrow", Prefix: "logs/", Status: StatusEnabled,
			Transitions: []Transition{{AfterDays: 90, StorageClass: StorageClassArchive}},
		},
	}}

	if warnings := DetectConflicts(rs); len(warnings) != 0 {
		t.Errorf("Expected no warnings with a disabled rule, got %v", warnings)
	}
}

func TestDetectConflicts_SameScheduleNoConflict(t *testing.T) {
	transitions := []Transition{{AfterDays: 30, StorageClass: StorageClassArchive}}
	rs := RuleSet{Rules: []Rule{
		{ID: "a", Prefix: "logs/", Status: StatusEnabled, Transitions: transitions},
		{ID: "b", Prefix: "logs/app/", Status: StatusEnabled, Transitions: transitions},
	}}

	if warnings := DetectConflicts(rs); len(warnings) != 0 {
		t.Errorf("Expected no warnings for identical schedules, got %v", warnings)
	}
}

func TestDetectConflicts_DisjointPrefixes(t *testing.T) {
	rs := RuleSet{Rules: []Rule{
		{
			ID: "a", Prefix: "logs/", Status: StatusEnabled,
			Transitions: []Transition{{AfterDays: 30, StorageClass: StorageClassArchive}},
		},
		{
			ID: "b", Prefix: "backups/", Status: StatusEnabled,
			Transitions: []Transition{{AfterDays: 90, StorageClass: StorageClassArchive}},
		},
	}}

	if warnings := DetectConflicts(rs); len(warnings) != 0 {
		t.Errorf("Expected no warnings for disjoint prefixes, got %v", warnings)
	}
}
