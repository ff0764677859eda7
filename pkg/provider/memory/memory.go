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

// Package memory provides an in-memory provider implementation, used by
// tests and for exercising the engine without touching a real store.
package memory

import (
	"context"
	"sync"

	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
	"github.com/jeremyhahn/go-lifecycle/pkg/provider"
)

// Memory is an in-memory implementation of provider.Provider and
// provider.KeyLister. Zero value is not usable; use New.
//
// Failure injection: errors queued with FailGetsWith / FailPutsWith are
// returned, in order, by subsequent calls before any real work happens.
type Memory struct {
	mutex   sync.Mutex
	configs map[string][]policy.Rule
	keys    map[string][]string

	getErrs []error
	putErrs []error

	getCalls int
	putCalls int
	lastPut  []policy.Rule
}

// New creates an empty in-memory provider.
func New() *Memory {
	return &Memory{
		configs: make(map[string][]policy.Rule),
		keys:    make(map[string][]string),
	}
}

// CreateTarget registers a bucket with an empty lifecycle configuration.
func (m *Memory) CreateTarget(target policy.Target) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.configs[target.Key()]; !ok {
		m.configs[target.Key()] = nil
	}
}

// SetRules replaces the stored configuration for a target, bypassing the
// provider contract. Used to simulate drift.
func (m *Memory) SetRules(target policy.Target, rules []policy.Rule) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.configs[target.Key()] = append([]policy.Rule(nil), rules...)
}

// SetKeys sets the object keys returned by ListKeys for a target.
func (m *Memory) SetKeys(target policy.Target, keys []string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.keys[target.Key()] = append([]string(nil), keys...)
}

// FailGetsWith queues errors to be returned by upcoming GetConfiguration calls.
func (m *Memory) FailGetsWith(errs ...error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.getErrs = append(m.getErrs, errs...)
}

// FailPutsWith queues errors to be returned by upcoming PutConfiguration calls.
func (m *Memory) FailPutsWith(errs ...error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.putErrs = append(m.putErrs, errs...)
}

// GetCalls returns how many GetConfiguration calls have been made.
func (m *Memory) GetCalls() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.getCalls
}

// PutCalls returns how many PutConfiguration calls have been made.
func (m *Memory) PutCalls() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.putCalls
}

// LastPut returns the rules submitted by the most recent successful
// PutConfiguration call.
func (m *Memory) LastPut() []policy.Rule {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]policy.Rule(nil), m.lastPut...)
}

// GetConfiguration implements provider.Provider.
func (m *Memory) GetConfiguration(ctx context.Context, target policy.Target) (*provider.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.getCalls++
	if len(m.getErrs) > 0 {
		err := m.getErrs[0]
		m.getErrs = m.getErrs[1:]
		return nil, err
	}

	rules, ok := m.configs[target.Key()]
	if !ok {
		return nil, provider.ErrNotFound
	}

	state := &provider.State{
		Rules: append([]policy.Rule(nil), rules...),
		Raw:   make(map[string]any, len(rules)),
	}
	for _, r := range rules {
		state.Raw[r.ID] = r
	}
	return state, nil
}

// PutConfiguration implements provider.Provider.
func (m *Memory) PutConfiguration(ctx context.Context, target policy.Target, desired []policy.Rule, prior *provider.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.putCalls++
	if len(m.putErrs) > 0 {
		err := m.putErrs[0]
		m.putErrs = m.putErrs[1:]
		return err
	}

	if _, ok := m.configs[target.Key()]; !ok {
		return provider.ErrNotFound
	}

	stored := append([]policy.Rule(nil), desired...)
	m.configs[target.Key()] = stored
	m.lastPut = append([]policy.Rule(nil), desired...)
	return nil
}

// ListKeys implements provider.KeyLister.
func (m *Memory) ListKeys(ctx context.Context, target policy.Target, prefix string, max int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	var keys []string
	for _, k := range m.keys[target.Key()] {
		if prefix == "" || len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
		if max > 0 && len(keys) == max {
			break
		}
	}
	return keys, nil
}
