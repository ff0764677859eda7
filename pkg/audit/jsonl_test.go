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

package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T, maxSize int64) (*JSONLLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := NewJSONLLog(path, maxSize, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log, path
}

func sampleRecord(runID string) *Record {
	return &Record{
		RunID:  runID,
		Target: "photos",
		Diff: DiffSummary{
			ToCreate:  []string{"r1"},
			Unchanged: []string{"r2"},
		},
		Outcomes: []Outcome{
			{RuleID: "r1", Action: ActionCreated, Attempts: 1},
		},
		SnapshotHash: "abc123",
		Duration:     42 * time.Millisecond,
	}
}

func TestJSONLLog_RecordAndReadAll(t *testing.T) {
	log, _ := newTestLog(t, 0)

	require.NoError(t, log.Record(context.Background(), sampleRecord("run-1")))
	require.NoError(t, log.Record(context.Background(), sampleRecord("run-2")))

	records, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, "run-2", records[1].RunID)
	assert.Equal(t, "photos", records[0].Target)
	assert.Equal(t, []string{"r1"}, records[0].Diff.ToCreate)
	require.Len(t, records[0].Outcomes, 1)
	assert.Equal(t, ActionCreated, records[0].Outcomes[0].Action)
	assert.False(t, records[0].Timestamp.IsZero())
}

func TestJSONLLog_AssignsRunIDAndTimestamp(t *testing.T) {
	log, _ := newTestLog(t, 0)

	require.NoError(t, log.Record(context.Background(), &Record{Target: "photos"}))

	records, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].RunID)
	assert.False(t, records[0].Timestamp.IsZero())
}

func TestJSONLLog_NilRecordIgnored(t *testing.T) {
	log, _ := newTestLog(t, 0)
	require.NoError(t, log.Record(context.Background(), nil))

	records, err := log.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJSONLLog_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	log, err := NewJSONLLog(path, 0, nil)
	require.NoError(t, err)
	require.NoError(t, log.Record(context.Background(), sampleRecord("run-1")))
	require.NoError(t, log.Close())

	log, err = NewJSONLLog(path, 0, nil)
	require.NoError(t, err)
	defer func() { _ = log.Close() }()
	require.NoError(t, log.Record(context.Background(), sampleRecord("run-2")))

	records, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, "run-2", records[1].RunID)
}

func TestJSONLLog_RotatesAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	log, err := NewJSONLLog(path, 128, nil)
	require.NoError(t, err)
	defer func() { _ = log.Close() }()

	// Each record is well over 128 bytes, so every append rotates.
	require.NoError(t, log.Record(context.Background(), sampleRecord("run-1")))
	require.NoError(t, log.Record(context.Background(), sampleRecord("run-2")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	archived := 0
	for _, e := range entries {
		if e.Name() != "audit.jsonl" {
			archived++
		}
	}
	assert.GreaterOrEqual(t, archived, 1, "expected at least one rotated segment")

	// Active file starts fresh after the last rotation.
	records, err := log.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJSONLLog_SkipsCorruptLines(t *testing.T) {
	log, path := newTestLog(t, 0)

	require.NoError(t, log.Record(context.Background(), sampleRecord("run-1")))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("{truncated\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, log.Record(context.Background(), sampleRecord("run-2")))

	records, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, "run-2", records[1].RunID)
}

func TestLogOnly_RecordNeverFails(t *testing.T) {
	sink := NewLogOnly(nil)
	assert.NoError(t, sink.Record(context.Background(), sampleRecord("run-1")))
	assert.NoError(t, sink.Record(context.Background(), nil))
	assert.NoError(t, sink.Close())
}
