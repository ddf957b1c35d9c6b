package query

import "strconv"

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ClampLimit maps a requested page size into [1, MaxLimit], with zero
// meaning DefaultLimit.
func ClampLimit(limit uint64) uint64 {
	if limit == 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// PaginateQuery appends id based paging to query.
//
// The input query is expected to end with a bracketed WHERE clause:
//
//	"SELECT ... WHERE (...)"
//
// and is returned as:
//
//	"SELECT ... WHERE (...) AND id > $n ORDER BY id ASC LIMIT $n+1"
//
// with the cursor and limit appended to opts.
func PaginateQuery(query string, opts []interface{}, cursor Cursor, limit uint64, direction Ordering) (string, []interface{}) {
	if len(cursor) > 0 {
		v := strconv.Itoa(len(opts) + 1)

		if direction == Ascending {
			query += " AND id > $" + v
		} else {
			query += " AND id < $" + v
		}

		opts = append(opts, cursor.ToUint64())
	}

	if direction == Ascending {
		query += " ORDER BY id ASC"
	} else {
		query += " ORDER BY id DESC"
	}

	if limit > 0 {
		query += " LIMIT $" + strconv.Itoa(len(opts)+1)
		opts = append(opts, limit)
	}

	return query, opts
}
