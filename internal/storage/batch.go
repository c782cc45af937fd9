package storage

import (
	"fmt"
	"strings"
)

// maxSQLParams keeps multi-row inserts under the driver's bound-parameter
// limit. Wide tables flush in more, smaller statements.
const maxSQLParams = 30000

// BatchWriter accumulates rows for one table and writes them in multi-row
// INSERT OR IGNORE statements. Existing rows are left untouched, which is
// what makes loader reruns idempotent.
type BatchWriter struct {
	db      *DB
	table   string
	columns []string
	size    int
	rows    [][]interface{}

	attempted int
	inserted  int
}

// NewBatchWriter creates a writer for the given table and column set.
// size is the flush threshold in rows.
func NewBatchWriter(db *DB, table string, columns []string, size int) *BatchWriter {
	if size <= 0 {
		size = 5000
	}
	if limit := maxSQLParams / len(columns); size > limit {
		size = limit
	}
	return &BatchWriter{
		db:      db,
		table:   table,
		columns: columns,
		size:    size,
	}
}

// Add queues one row. Values must match the writer's column order.
// The batch is flushed automatically when it reaches the size threshold.
func (w *BatchWriter) Add(values ...interface{}) error {
	if len(values) != len(w.columns) {
		return fmt.Errorf("batch writer for %s: got %d values, want %d", w.table, len(values), len(w.columns))
	}
	w.rows = append(w.rows, values)
	w.attempted++
	if len(w.rows) >= w.size {
		return w.Flush()
	}
	return nil
}

// Flush writes all queued rows in a single statement
func (w *BatchWriter) Flush() error {
	if len(w.rows) == 0 {
		return nil
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(w.columns)), ",") + ")"
	var sb strings.Builder
	sb.WriteString("INSERT OR IGNORE INTO ")
	sb.WriteString(w.table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(w.columns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]interface{}, 0, len(w.rows)*len(w.columns))
	for i, row := range w.rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(placeholder)
		args = append(args, row...)
	}

	res, err := w.db.Exec(sb.String(), args...)
	if err != nil {
		return fmt.Errorf("batch insert into %s failed: %w", w.table, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		w.inserted += int(n)
	}
	w.rows = w.rows[:0]
	return nil
}

// Attempted returns the number of rows queued since creation
func (w *BatchWriter) Attempted() int {
	return w.attempted
}

// Inserted returns the number of rows actually written, excluding
// rows ignored as duplicates. Only accurate after Flush.
func (w *BatchWriter) Inserted() int {
	return w.inserted
}

var conflictColumns = []string{
	"source_system", "target_system", "source_code", "target_code",
	"source_description", "reason", "details",
}

// ConflictWriter records mapping conflicts with run-scoped deduplication.
// The first sighting of a (source, target, reason) gap in a run wins; the
// partial unique index on open conflicts dedups across runs.
type ConflictWriter struct {
	w    *BatchWriter
	seen map[string]struct{}
}

// NewConflictWriter creates a conflict writer flushing at the given size
func NewConflictWriter(db *DB, size int) *ConflictWriter {
	return &ConflictWriter{
		w:    NewBatchWriter(db, TableConflicts, conflictColumns, size),
		seen: make(map[string]struct{}),
	}
}

// Add records one conflict unless an identical one was already seen this run
func (cw *ConflictWriter) Add(c Conflict) error {
	key := c.SourceSystem + "|" + c.TargetSystem + "|" + c.SourceCode + "|" + c.TargetCode + "|" + c.Reason
	if _, ok := cw.seen[key]; ok {
		return nil
	}
	cw.seen[key] = struct{}{}
	return cw.w.Add(
		c.SourceSystem, c.TargetSystem, c.SourceCode, nullable(c.TargetCode),
		nullable(c.SourceDescription), c.Reason, nullable(c.Details),
	)
}

// Flush writes queued conflicts
func (cw *ConflictWriter) Flush() error {
	return cw.w.Flush()
}

// Count returns the number of distinct conflicts recorded this run
func (cw *ConflictWriter) Count() int {
	return cw.w.Attempted()
}

// nullable maps the empty string to NULL
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
