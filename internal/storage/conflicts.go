package storage

import (
	"database/sql"
	"fmt"
	"strings"

	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
)

const conflictSelect = `
	SELECT id, source_system, target_system, source_code, COALESCE(target_code, ''),
	       COALESCE(source_description, ''), reason, COALESCE(details, ''),
	       status, COALESCE(resolution, ''), COALESCE(resolved_code, ''),
	       created_at, COALESCE(resolved_at, '')
	FROM mapping_conflicts`

// ConflictFilter narrows conflict listings. Zero values mean no filter.
type ConflictFilter struct {
	Status       string
	SourceSystem string
	TargetSystem string
	Reason       string
	Search       string
	Page         int
	PerPage      int
}

// ListConflicts returns one page of conflicts matching the filter plus the
// total match count.
func (db *DB) ListConflicts(f ConflictFilter) ([]Conflict, int, error) {
	var conds []string
	var args []interface{}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.SourceSystem != "" {
		conds = append(conds, "source_system = ?")
		args = append(args, f.SourceSystem)
	}
	if f.TargetSystem != "" {
		conds = append(conds, "target_system = ?")
		args = append(args, f.TargetSystem)
	}
	if f.Reason != "" {
		conds = append(conds, "reason = ?")
		args = append(args, f.Reason)
	}
	if f.Search != "" {
		conds = append(conds, "(source_code LIKE ? OR target_code LIKE ? OR source_description LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like, like)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM mapping_conflicts"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 500 {
		perPage = 50
	}
	args = append(args, perPage, (page-1)*perPage)

	rows, err := db.Query(conflictSelect+where+" ORDER BY id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Conflict, 0, perPage)
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// GetConflict fetches one conflict by id
func (db *DB) GetConflict(id int64) (*Conflict, error) {
	row := db.QueryRow(conflictSelect+" WHERE id = ?", id)
	c, err := scanConflictRow(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ConflictNotFound, "conflict %d not found", id)
	}
	return c, err
}

// OpenConflicts returns up to limit open conflicts in id order, offset for
// batch iteration by the resolution engine.
func (db *DB) OpenConflicts(limit, offset int) ([]Conflict, error) {
	rows, err := db.Query(
		conflictSelect+" WHERE status = 'open' ORDER BY id LIMIT ? OFFSET ?",
		positiveLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateConflict applies a manual action to one conflict. Valid actions are
// resolve, ignore, and reopen; reopen clears the resolution fields.
func (db *DB) UpdateConflict(id int64, action, resolution, resolvedCode string) (*Conflict, error) {
	if err := validateAction(action); err != nil {
		return nil, err
	}
	if _, err := db.GetConflict(id); err != nil {
		return nil, err
	}
	if _, err := db.applyAction([]int64{id}, action, resolution, resolvedCode); err != nil {
		return nil, err
	}
	return db.GetConflict(id)
}

// BulkUpdateConflicts applies one action to many conflicts atomically and
// returns the number of rows actually updated; unknown ids are not counted.
// An empty id list or unknown action rejects the whole request.
func (db *DB) BulkUpdateConflicts(ids []int64, action, resolution, resolvedCode string) (int, error) {
	if len(ids) == 0 {
		return 0, apperrors.New(apperrors.InvalidAction, "conflict id list is empty")
	}
	if err := validateAction(action); err != nil {
		return 0, err
	}
	updated, err := db.applyAction(ids, action, resolution, resolvedCode)
	if err != nil {
		return 0, err
	}
	return int(updated), nil
}

func validateAction(action string) error {
	switch action {
	case ActionResolve, ActionIgnore, ActionReopen:
		return nil
	default:
		return apperrors.Newf(apperrors.InvalidAction, "unknown conflict action: %q", action)
	}
}

func (db *DB) applyAction(ids []int64, action, resolution, resolvedCode string) (int64, error) {
	var query string
	var prefix []interface{}
	switch action {
	case ActionResolve:
		query = `UPDATE mapping_conflicts
			SET status = 'resolved', resolution = ?, resolved_code = ?, resolved_at = datetime('now')
			WHERE id IN (%s)`
		prefix = []interface{}{nullable(resolution), nullable(resolvedCode)}
	case ActionIgnore:
		query = `UPDATE mapping_conflicts
			SET status = 'ignored', resolution = ?, resolved_at = datetime('now')
			WHERE id IN (%s)`
		prefix = []interface{}{nullable(resolution)}
	case ActionReopen:
		query = `UPDATE mapping_conflicts
			SET status = 'open', resolution = NULL, resolved_code = NULL, resolved_at = NULL
			WHERE id IN (%s)`
	}

	placeholders := make([]string, len(ids))
	args := append([]interface{}{}, prefix...)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	var updated int64
	err := db.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(fmt.Sprintf(query, strings.Join(placeholders, ",")), args...)
		if err != nil {
			return err
		}
		updated, err = res.RowsAffected()
		return err
	})
	return updated, err
}

// MarkConflictResolved is used by the automated resolution engine to close
// a conflict with its resolution note and matched code.
func (db *DB) MarkConflictResolved(id int64, resolution, resolvedCode string) error {
	_, err := db.Exec(`
		UPDATE mapping_conflicts
		SET status = 'resolved', resolution = ?, resolved_code = ?, resolved_at = datetime('now')
		WHERE id = ?`,
		nullable(resolution), nullable(resolvedCode), id)
	return err
}

// MarkConflictIgnored closes a conflict as not actionable
func (db *DB) MarkConflictIgnored(id int64, resolution string) error {
	_, err := db.Exec(`
		UPDATE mapping_conflicts
		SET status = 'ignored', resolution = ?, resolved_at = datetime('now')
		WHERE id = ?`,
		nullable(resolution), id)
	return err
}

// ConflictStats summarizes the conflict table
type ConflictStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	ByPair   map[string]int `json:"byPair"`
	ByReason map[string]int `json:"byReason"`
}

// GetConflictStats aggregates conflicts by status, mapping pair, and reason
func (db *DB) GetConflictStats() (*ConflictStats, error) {
	stats := &ConflictStats{
		ByStatus: make(map[string]int),
		ByPair:   make(map[string]int),
		ByReason: make(map[string]int),
	}

	rows, err := db.Query("SELECT status, COUNT(*) FROM mapping_conflicts GROUP BY status")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByStatus[status] = n
		stats.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.Query(`
		SELECT source_system || ' -> ' || target_system, COUNT(*)
		FROM mapping_conflicts GROUP BY source_system, target_system`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var pair string
		var n int
		if err := rows.Scan(&pair, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByPair[pair] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.Query("SELECT reason, COUNT(*) FROM mapping_conflicts GROUP BY reason")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		stats.ByReason[reason] = n
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConflict(rows *sql.Rows) (*Conflict, error) {
	return scanConflictRow(rows)
}

func scanConflictRow(row rowScanner) (*Conflict, error) {
	var c Conflict
	err := row.Scan(
		&c.ID, &c.SourceSystem, &c.TargetSystem, &c.SourceCode, &c.TargetCode,
		&c.SourceDescription, &c.Reason, &c.Details, &c.Status,
		&c.Resolution, &c.ResolvedCode, &c.CreatedAt, &c.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
