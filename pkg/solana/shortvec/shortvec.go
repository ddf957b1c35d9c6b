// Package shortvec implements the compact-u16 length prefix used by Solana
// transaction and message encodings.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// maxEncodedBytes is the number of bytes needed to encode math.MaxUint16.
const maxEncodedBytes = 3

// ErrLenTooLarge is returned when a length cannot be represented.
var ErrLenTooLarge = errors.Errorf("len exceeds %d", math.MaxUint16)

// EncodeLen writes the compact-u16 encoding of length to w and returns the
// number of bytes written.
func EncodeLen(w io.Writer, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, ErrLenTooLarge
	}

	var buf [maxEncodedBytes]byte
	n := 0
	for {
		buf[n] = byte(length & 0x7f)
		length >>= 7
		if length == 0 {
			n++
			break
		}

		buf[n] |= 0x80
		n++
	}

	return w.Write(buf[:n])
}

// DecodeLen reads a compact-u16 encoded length from r.
func DecodeLen(r io.Reader) (int, error) {
	var val int
	var one [1]byte

	for i := 0; ; i++ {
		if i >= maxEncodedBytes {
			return 0, errors.Errorf("invalid size: more than %d bytes", maxEncodedBytes)
		}

		if _, err := io.ReadFull(r, one[:]); err != nil {
			return 0, err
		}

		val |= int(one[0]&0x7f) << (i * 7)
		if one[0]&0x80 == 0 {
			break
		}
	}

	return val, nil
}
