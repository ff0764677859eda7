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

// Package policy defines the declarative lifecycle rule model and its
// validation rules.
package policy

import (
	"errors"
	"fmt"
)

// ErrBucketNotSet is returned when a target is constructed without a bucket name.
var ErrBucketNotSet = errors.New("bucket not set")

// Target identifies the storage container a rule set applies to.
// Immutable once constructed.
type Target struct {
	bucket string
}

// NewTarget creates a Target for the given bucket name.
func NewTarget(bucket string) (Target, error) {
	if bucket == "" {
		return Target{}, ErrBucketNotSet
	}
	return Target{bucket: bucket}, nil
}

// Bucket returns the bucket name.
func (t Target) Bucket() string {
	return t.bucket
}

// Key returns a stable identity string, suitable for lock and map keys.
func (t Target) Key() string {
	return t.bucket
}

func (t Target) String() string {
	return t.bucket
}

// StorageClass is a storage tier, ordered from warmest to coldest.
type StorageClass string

const (
	StorageClassStandard         StorageClass = "STANDARD"
	StorageClassInfrequentAccess StorageClass = "INFREQUENT_ACCESS"
	StorageClassArchive          StorageClass = "ARCHIVE"
	StorageClassDeepArchive      StorageClass = "DEEP_ARCHIVE"
)

var storageClassColdness = map[StorageClass]int{
	StorageClassStandard:         0,
	StorageClassInfrequentAccess: 1,
	StorageClassArchive:          2,
	StorageClassDeepArchive:      3,
}

// Valid reports whether the storage class is a known tier.
func (c StorageClass) Valid() bool {
	_, ok := storageClassColdness[c]
	return ok
}

// Coldness returns the tier ordering rank. Higher is colder.
// Unknown classes rank below STANDARD.
func (c StorageClass) Coldness() int {
	rank, ok := storageClassColdness[c]
	if !ok {
		return -1
	}
	return rank
}

// RuleStatus enables or disables a rule without removing it.
type RuleStatus string

const (
	StatusEnabled  RuleStatus = "ENABLED"
	StatusDisabled RuleStatus = "DISABLED"
)

// Valid reports whether the status is a known value.
func (s RuleStatus) Valid() bool {
	return s == StatusEnabled || s == StatusDisabled
}

// Transition moves matching objects to a colder storage class after a
// number of days.
type Transition struct {
	AfterDays    int          `yaml:"afterDays" json:"after_days"`
	StorageClass StorageClass `yaml:"storageClass" json:"storage_class"`
}

// Expiration deletes matching objects after a number of days.
type Expiration struct {
	AfterDays int `yaml:"afterDays" json:"after_days"`
}

// Rule is a single lifecycle rule. ID is the stable identity used for
// diffing against provider state; it is never inferred from rule content.
type Rule struct {
	ID           string       `yaml:"id" json:"id"`
	Prefix       string       `yaml:"prefix" json:"prefix"`
	Status       RuleStatus   `yaml:"status" json:"status"`
	Transitions  []Transition `yaml:"transitions" json:"transitions,omitempty"`
	Expiration   *Expiration  `yaml:"expiration" json:"expiration,omitempty"`
	RequiresHook bool         `yaml:"requiresHook" json:"requires_hook,omitempty"`
}

// Equivalent reports whether two rules declare the same provider-visible
// state: prefix, status, transition sequence and expiration. RequiresHook
// is engine-local and never reaches the provider, so it does not
// participate in the comparison.
func (r Rule) Equivalent(other Rule) bool {
	if r.ID != other.ID || r.Prefix != other.Prefix || r.Status != other.Status {
		return false
	}
	if len(r.Transitions) != len(other.Transitions) {
		return false
	}
	for i, t := range r.Transitions {
		if t != other.Transitions[i] {
			return false
		}
	}
	if (r.Expiration == nil) != (other.Expiration == nil) {
		return false
	}
	if r.Expiration != nil && *r.Expiration != *other.Expiration {
		return false
	}
	return true
}

func (r Rule) String() string {
	return fmt.Sprintf("rule %q (prefix=%q, status=%s, transitions=%d)",
		r.ID, r.Prefix, r.Status, len(r.Transitions))
}

// RuleSet is an ordered collection of rules, unique by ID. It is created
// by the caller and consumed, never mutated, by the reconciliation engine.
type RuleSet struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// Rule returns the rule with the given id, if present.
func (rs RuleSet) Rule(id string) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// IDs returns the rule ids in declaration order.
func (rs RuleSet) IDs() []string {
	ids := make([]string, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		ids = append(ids, r.ID)
	}
	return ids
}
