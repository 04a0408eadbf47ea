package storage

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

const (
	uniqueViolation = "23505"
	defaultPageSize = 100
	maxPageSize     = 500
)

// whereClause accumulates AND-ed conditions with positional arguments.
type whereClause struct {
	conditions []string
	args       []any
}

func (w *whereClause) add(condition string, arg any) {
	w.args = append(w.args, arg)
	w.conditions = append(w.conditions, strings.ReplaceAll(condition, "?", "$"+strconv.Itoa(len(w.args))))
}

func (w *whereClause) addIf(value, condition string) {
	if value != "" {
		w.add(condition, value)
	}
}

func (w *whereClause) String() string {
	if len(w.conditions) == 0 {
		return ""
	}

	return " WHERE " + strings.Join(w.conditions, " AND ")
}

// page appends LIMIT and OFFSET, clamping the limit to maxPageSize.
func (w *whereClause) page(limit, offset int) string {
	if limit <= 0 {
		limit = defaultPageSize
	}

	limit = min(limit, maxPageSize)
	offset = max(offset, 0)

	w.args = append(w.args, limit, offset)

	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}

// buildUpdate renders "UPDATE table SET a = $1, b = $2 WHERE id = $3 RETURNING cols"
// from changes. Columns are emitted in sorted order and must appear in allowed.
func buildUpdate(table string, allowed []string, changes map[string]any, id, returning string) (string, []any, error) {
	if len(changes) == 0 {
		return "", nil, ErrNoChanges
	}

	columns := make([]string, 0, len(changes))
	for column := range changes {
		if !slices.Contains(allowed, column) {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
		}

		columns = append(columns, column)
	}

	slices.Sort(columns)

	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns)+1)

	for i, column := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", column, i+1)
		args = append(args, sqlValue(changes[column]))
	}

	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING %s",
		table, strings.Join(sets, ", "), len(args), returning)

	return query, args, nil
}

// sqlValue converts JSON blobs to text so NULL and JSONB are sent correctly.
func sqlValue(v any) any {
	if b, ok := v.([]byte); ok {
		return jsonb(b)
	}

	return v
}

func jsonb(b []byte) any {
	if len(b) == 0 {
		return nil
	}

	return string(b)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
