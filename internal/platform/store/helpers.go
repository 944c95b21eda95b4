package store

import "context"

// ExecAffected runs a write and returns the number of rows it touched
func ExecAffected(ctx context.Context, q RowQuerier, sql string, args ...any) (int64, error) {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	if tag == nil {
		return 0, nil
	}
	return tag.RowsAffected(), nil
}

// Many maps every row of a query through scan
func Many[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	r := &rowFromRows{rows: rows}
	for rows.Next() {
		item, err := scan(r)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Strings collects a single text column, e.g. candidate emails
func Strings(ctx context.Context, q RowQuerier, sql string, args ...any) ([]string, error) {
	return Many(ctx, q, ScanString, sql, args...)
}

// ScanString scans one text column
func ScanString(r Row) (string, error) {
	var s string
	err := r.Scan(&s)
	return s, err
}

// rowFromRows gives a Row facade over a current Rows position
type rowFromRows struct{ rows Rows }

func (r *rowFromRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
