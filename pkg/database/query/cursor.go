package query

import (
	"encoding/binary"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// Cursor is an opaque page position, the big endian id of the last record
// seen.
type Cursor []byte

var EmptyCursor = Cursor([]byte{})

var ErrInvalidCursor = errors.New("invalid cursor")

func ToCursor(val uint64) Cursor {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val)
	return b
}

// CursorFromBase58 parses a cursor previously returned by ToBase58. An empty
// string is the empty cursor.
func CursorFromBase58(encoded string) (Cursor, error) {
	if len(encoded) == 0 {
		return EmptyCursor, nil
	}

	b, err := base58.Decode(encoded)
	if err != nil || len(b) != 8 {
		return nil, ErrInvalidCursor
	}
	return b, nil
}

func (c Cursor) ToUint64() uint64 {
	if len(c) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(c)
}

func (c Cursor) ToBase58() string {
	return base58.Encode(c)
}
