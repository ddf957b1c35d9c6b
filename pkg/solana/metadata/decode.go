package metadata

import (
	"encoding/binary"
	"fmt"
	"io"

	solanago "github.com/gagliardetto/solana-go"
)

// DecodeError is returned when the account data ends before a field could be
// read.
type DecodeError struct {
	Field  string
	Offset int
	Need   int
	Have   int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("metadata: unexpected end of data reading %s at offset %d: need %d bytes, have %d", e.Field, e.Offset, e.Need, e.Have)
}

func (e *DecodeError) Unwrap() error {
	return io.ErrUnexpectedEOF
}

// Unmarshal decodes a metadata account. Bytes past the end of the record are
// ignored, since metadata accounts are allocated larger than their contents.
func Unmarshal(b []byte) (*Metadata, error) {
	d := decoder{buf: b}

	var m Metadata

	m.Key = Key(d.readUint8("key"))
	m.UpdateAuthority = d.readKey("update_authority")
	m.Mint = d.readKey("mint")
	m.Data.Name = d.readString("name")
	m.Data.Symbol = d.readString("symbol")
	m.Data.URI = d.readString("uri")
	m.Data.SellerFeeBasisPoints = d.readUint16("seller_fee_basis_points")

	if d.readBool("creators") {
		count := d.readUint32("creators.len")
		if d.err == nil {
			// Each creator is 34 bytes, so a count the buffer can't hold is an
			// underrun and doesn't need to be allocated.
			if need := uint64(count) * creatorSize; need > uint64(d.remaining()) {
				d.fail("creators", int(need))
			} else {
				m.Data.Creators = make([]Creator, count)
			}
		}
		for i := range m.Data.Creators {
			m.Data.Creators[i].Address = d.readKey("creator.address")
			m.Data.Creators[i].Verified = d.readUint8("creator.verified")
			m.Data.Creators[i].Share = d.readUint8("creator.share")
		}
	}

	m.PrimarySaleHappened = d.readBool("primary_sale_happened")
	m.IsMutable = d.readBool("is_mutable")

	if d.err != nil {
		return nil, d.err
	}
	return &m, nil
}

const creatorSize = solanago.PublicKeyLength + 2

// decoder reads sequential little endian fields. After the first underrun all
// reads return zero values and err holds the failure.
type decoder struct {
	buf    []byte
	offset int
	err    *DecodeError
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.offset
}

func (d *decoder) fail(field string, need int) {
	d.err = &DecodeError{
		Field:  field,
		Offset: d.offset,
		Need:   need,
		Have:   d.remaining(),
	}
}

func (d *decoder) next(field string, n int) []byte {
	if d.err != nil {
		return nil
	}
	if n > d.remaining() {
		d.fail(field, n)
		return nil
	}

	b := d.buf[d.offset : d.offset+n]
	d.offset += n
	return b
}

func (d *decoder) readUint8(field string) uint8 {
	b := d.next(field, 1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) readBool(field string) bool {
	return d.readUint8(field) != 0
}

func (d *decoder) readUint16(field string) uint16 {
	b := d.next(field, 2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *decoder) readUint32(field string) uint32 {
	b := d.next(field, 4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) readKey(field string) (key solanago.PublicKey) {
	b := d.next(field, solanago.PublicKeyLength)
	if b != nil {
		copy(key[:], b)
	}
	return key
}

func (d *decoder) readString(field string) string {
	n := d.readUint32(field + ".len")
	if d.err != nil {
		return ""
	}
	if uint64(n) > uint64(d.remaining()) {
		d.fail(field, int(n))
		return ""
	}
	return string(d.next(field, int(n)))
}
