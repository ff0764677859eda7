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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-lifecycle/pkg/adapters"
)

// DefaultMaxSize is the log size at which rotation triggers.
const DefaultMaxSize int64 = 64 * 1024 * 1024

// JSONLLog implements Logger using JSON Lines format. Each line in the
// file is one JSON-encoded Record. Thread-safe, synced to disk on every
// append, rotated once the file exceeds maxSize.
type JSONLLog struct {
	file     *os.File
	filePath string
	maxSize  int64
	mutex    sync.Mutex
	logger   adapters.Logger
}

// NewJSONLLog opens (or creates) an append-only JSONL audit log at
// filePath. Records are mirrored through the supplied logger so the trail
// also lands in operational logs.
func NewJSONLLog(filePath string, maxSize int64, logger adapters.Logger) (*JSONLLog, error) {
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0600) // #nosec G304 -- filePath from configuration, not user input
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}

	return &JSONLLog{
		file:     file,
		filePath: filePath,
		maxSize:  maxSize,
		logger:   logger,
	}, nil
}

// Record appends one reconciliation record to the log.
func (l *JSONLLog) Record(ctx context.Context, record *Record) error {
	if record == nil {
		return nil
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if record.RunID == "" {
		record.RunID = uuid.NewString()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}

	l.logger.Info(ctx, "reconciliation recorded",
		adapters.Field{Key: "run_id", Value: record.RunID},
		adapters.Field{Key: "target", Value: record.Target},
		adapters.Field{Key: "outcomes", Value: len(record.Outcomes)},
		adapters.Field{Key: "snapshot_hash", Value: record.SnapshotHash},
	)

	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat audit log: %w", err)
	}
	if info.Size() >= l.maxSize {
		return l.rotate()
	}
	return nil
}

// ReadAll returns every record currently in the log, oldest first.
func (l *JSONLLog) ReadAll() ([]Record, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, err := l.file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("failed to seek audit log: %w", err)
	}

	var records []Record
	scanner := bufio.NewScanner(l.file)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, len(buf))
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			// Partial trailing line from a crash; skip it.
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	if _, err := l.file.Seek(0, 2); err != nil {
		return nil, fmt.Errorf("failed to seek audit log: %w", err)
	}
	return records, nil
}

// Close closes the underlying file.
func (l *JSONLLog) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.file.Close()
}

// rotate archives the current file under a timestamped name and starts a
// fresh one. Caller holds the mutex.
func (l *JSONLLog) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log for rotation: %w", err)
	}

	archived := fmt.Sprintf("%s.%s", l.filePath, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(l.filePath, archived); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	file, err := os.OpenFile(l.filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0600) // #nosec G304 -- filePath from configuration, not user input
	if err != nil {
		return fmt.Errorf("failed to reopen audit log: %w", err)
	}
	l.file = file
	return nil
}

// LogOnly is a Logger that mirrors records through an adapters.Logger
// without persisting them. Used when no audit file is configured.
type LogOnly struct {
	logger adapters.Logger
}

// NewLogOnly creates an audit sink that only emits operational log lines.
func NewLogOnly(logger adapters.Logger) *LogOnly {
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	return &LogOnly{logger: logger}
}

// Record emits the record as a structured log line.
func (l *LogOnly) Record(ctx context.Context, record *Record) error {
	if record == nil {
		return nil
	}
	if record.RunID == "" {
		record.RunID = uuid.NewString()
	}
	l.logger.Info(ctx, "reconciliation recorded",
		adapters.Field{Key: "run_id", Value: record.RunID},
		adapters.Field{Key: "target", Value: record.Target},
		adapters.Field{Key: "outcomes", Value: len(record.Outcomes)},
		adapters.Field{Key: "snapshot_hash", Value: record.SnapshotHash},
	)
	return nil
}

// Close is a no-op.
func (l *LogOnly) Close() error { return nil }
