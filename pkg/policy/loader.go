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
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRuleSet reads a rule set from a YAML file.
func LoadRuleSet(path string) (RuleSet, error) {
	file, err := os.Open(path) // #nosec G304 -- user-provided rules file path, intended behavior
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer func() { _ = file.Close() }()

	rs, err := ParseRuleSet(file)
	if err != nil {
		return RuleSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// ParseRuleSet decodes a YAML rule set. Unknown fields are rejected so a
// typoed field name fails loudly instead of silently weakening a policy.
func ParseRuleSet(r io.Reader) (RuleSet, error) {
	var rs RuleSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil {
		return RuleSet{}, fmt.Errorf("failed to parse rules: %w", err)
	}
	return rs, nil
}
