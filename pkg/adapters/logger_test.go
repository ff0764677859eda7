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

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(raw, &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestDefaultLogger_EmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, InfoLevel)

	logger.Info(context.Background(), "configuration applied",
		Field{Key: "target", Value: "photos"},
		Field{Key: "rules", Value: 3},
	)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "configuration applied", lines[0]["msg"])
	assert.Equal(t, "photos", lines[0]["target"])
	assert.Equal(t, float64(3), lines[0]["rules"])
}

func TestDefaultLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, WarnLevel)

	logger.Debug(context.Background(), "debug line")
	logger.Info(context.Background(), "info line")
	logger.Warn(context.Background(), "warn line")
	logger.Error(context.Background(), "error line")

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn line", lines[0]["msg"])
	assert.Equal(t, "error line", lines[1]["msg"])
}

func TestDefaultLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, InfoLevel).WithFields(Field{Key: "run_id", Value: "run-1"})

	logger.Info(context.Background(), "first")
	logger.Info(context.Background(), "second", Field{Key: "extra", Value: "x"})

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, "run-1", lines[1]["run_id"])
	assert.Equal(t, "x", lines[1]["extra"])
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
}

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()
	logger.Info(context.Background(), "dropped")
	assert.NotNil(t, logger.WithFields(Field{Key: "k", Value: "v"}))
}
