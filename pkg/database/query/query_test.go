package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	c := ToCursor(42)
	assert.EqualValues(t, 42, c.ToUint64())

	parsed, err := CursorFromBase58(c.ToBase58())
	require.NoError(t, err)
	assert.Equal(t, c, parsed)

	parsed, err = CursorFromBase58("")
	require.NoError(t, err)
	assert.Empty(t, parsed)
	assert.EqualValues(t, 0, parsed.ToUint64())

	_, err = CursorFromBase58("0OIl")
	assert.Equal(t, ErrInvalidCursor, err)

	_, err = CursorFromBase58("2")
	assert.Equal(t, ErrInvalidCursor, err)
}

func TestOrdering(t *testing.T) {
	o, err := ToOrdering("DESC")
	require.NoError(t, err)
	assert.Equal(t, Descending, o)
	assert.Equal(t, "desc", o.String())

	_, err = ToOrdering("sideways")
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.EqualValues(t, DefaultLimit, ClampLimit(0))
	assert.EqualValues(t, 5, ClampLimit(5))
	assert.EqualValues(t, MaxLimit, ClampLimit(MaxLimit+1))
}

func TestPaginateQuery(t *testing.T) {
	base := "SELECT id FROM t WHERE (owner = $1)"

	query, opts := PaginateQuery(base, []interface{}{"a"}, nil, 10, Ascending)
	assert.Equal(t, base+" ORDER BY id ASC LIMIT $2", query)
	assert.Equal(t, []interface{}{"a", uint64(10)}, opts)

	query, opts = PaginateQuery(base, []interface{}{"a"}, ToCursor(7), 10, Descending)
	assert.Equal(t, base+" AND id < $2 ORDER BY id DESC LIMIT $3", query)
	assert.Equal(t, []interface{}{"a", uint64(7), uint64(10)}, opts)

	query, opts = PaginateQuery("SELECT id FROM t WHERE (TRUE)", nil, ToCursor(3), 0, Ascending)
	assert.Equal(t, "SELECT id FROM t WHERE (TRUE) AND id > $1 ORDER BY id ASC", query)
	assert.Equal(t, []interface{}{uint64(3)}, opts)
}
