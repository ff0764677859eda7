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

package s3

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_RequiresRegion(t *testing.T) {
	s := New()
	err := s.Configure(map[string]string{})
	assert.ErrorIs(t, err, ErrRegionNotSet)
}

func TestConfigure_Defaults(t *testing.T) {
	s := New()
	require.NoError(t, s.Configure(map[string]string{"region": "us-east-1"}))

	assert.NotNil(t, s.svc)
	assert.NotNil(t, s.limiter)
	assert.Equal(t, defaultTimeout, s.timeout)
}

func TestConfigure_CustomEndpoint(t *testing.T) {
	s := New()
	err := s.Configure(map[string]string{
		"region":       "us-east-1",
		"endpoint":     "http://localhost:9000",
		"accessKey":    "minioadmin",
		"secretKey":    "minioadmin",
		"usePathStyle": "true",
		"timeout":      "5s",
	})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, s.timeout)
}

func TestConfigure_InvalidTimeout(t *testing.T) {
	s := New()
	err := s.Configure(map[string]string{
		"region":  "us-east-1",
		"timeout": "not-a-duration",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout")
}
