package record

import (
	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/cursor"
	"github.com/MailG/innodb-ruby/internal/page"
)

// ErrSentinel is returned by Decode for infimum/supremum records,
// which carry no user data and are excluded from column decoding
// (spec.md §4.H, "Tie-break / edge rules").
var ErrSentinel = errors.New("record: infimum/supremum carry no user data")

// Value is one decoded column: its name, its Go-typed value (nil if
// SQL NULL), and whether it was NULL.
type Value struct {
	Name  string
	Value interface{}
	Null  bool
}

// Decoded is one record's logical content (spec.md §3, "Record").
type Decoded struct {
	Key             []Value
	Row             []Value // empty for node_pointer records
	ChildPageNumber uint32
	HasChild        bool
	Deleted         bool
	Type            page.RecordType
	HeapNumber      uint16
	Origin          int
}

// Decode decodes one record's columns using d, given the page buffer
// it lives on and its already-parsed structural location. Infimum and
// supremum yield ErrSentinel; callers iterating a whole page should
// skip them (spec.md §4.H).
func Decode(buf []byte, raw page.RawRecord, d Describer) (*Decoded, error) {
	if raw.Header.Type == page.RecordInfimum || raw.Header.Type == page.RecordSupremum {
		return nil, ErrSentinel
	}

	leaf := raw.Header.Type == page.RecordConventional
	keyCols := d.KeyColumns()
	var cols []Column
	cols = append(cols, keyCols...)
	if leaf {
		cols = append(cols, d.RowColumns()...)
	}

	nullable := 0
	for _, c := range cols {
		if c.Nullable {
			nullable++
		}
	}
	nullBitmapLen := (nullable + 7) / 8

	headerStart := raw.Origin - 5
	if headerStart-nullBitmapLen < 0 {
		return nil, errors.New("record: null bitmap runs before page start")
	}
	nullBitmap := buf[headerStart-nullBitmapLen : headerStart]

	isNull := make([]bool, len(cols))
	nullIdx := 0
	for i, c := range cols {
		if !c.Nullable {
			continue
		}
		byteIdx := nullIdx / 8
		bit := 7 - uint(nullIdx%8)
		isNull[i] = (nullBitmap[byteIdx]>>bit)&1 == 1
		nullIdx++
	}

	// Variable-length field vector: one entry per non-NULL variable
	// column, in reverse declaration order, positioned immediately
	// before the NULL bitmap (spec.md §4.H step 3).
	varLen := make([]int, len(cols))
	pos := headerStart - nullBitmapLen
	for i := len(cols) - 1; i >= 0; i-- {
		c := cols[i]
		if isNull[i] || !c.Type.Variable() {
			continue
		}
		if c.MaxSize <= 127 {
			if pos-1 < 0 {
				return nil, errors.New("record: variable-length vector runs before page start")
			}
			pos--
			b := buf[pos]
			varLen[i] = int(b & 0x7F)
		} else {
			if pos-2 < 0 {
				return nil, errors.New("record: variable-length vector runs before page start")
			}
			pos -= 2
			b0 := buf[pos]
			b1 := buf[pos+1]
			full := uint16(b0&0x3F)<<8 | uint16(b1)
			varLen[i] = int(full)
		}
	}

	values := make([]Value, len(cols))
	dataPos := raw.Origin
	for i, c := range cols {
		if isNull[i] {
			values[i] = Value{Name: c.Name, Null: true}
			continue
		}
		var width int
		if c.Type.Variable() {
			width = varLen[i]
		} else {
			width = c.Type.FixedWidth(c.MaxSize)
		}
		if dataPos+width > len(buf) {
			return nil, errors.Errorf("record: column %q runs past page end", c.Name)
		}
		fieldBytes := buf[dataPos : dataPos+width]
		v, err := decodeValue(c, fieldBytes)
		if err != nil {
			return nil, errors.Wrapf(err, "record: decoding column %q", c.Name)
		}
		values[i] = Value{Name: c.Name, Value: v}
		dataPos += width
	}

	out := &Decoded{
		Key:        values[:len(keyCols)],
		Deleted:    raw.Header.Deleted(),
		Type:       raw.Header.Type,
		HeapNumber: raw.Header.HeapNumber,
		Origin:     raw.Origin,
	}
	if leaf {
		out.Row = values[len(keyCols):]
	} else {
		c := cursor.NewAt(buf, dataPos, cursor.Forward)
		child, err := c.ReadU32()
		if err != nil {
			return nil, errors.Wrap(err, "record: reading child page number")
		}
		out.ChildPageNumber = child
		out.HasChild = true
	}
	return out, nil
}

func decodeValue(c Column, raw []byte) (interface{}, error) {
	switch c.Type {
	case TypeChar, TypeVarChar, TypeBinary, TypeVarBinary:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	default:
		return decodeInteger(c.Type, raw)
	}
}

func decodeInteger(t Type, raw []byte) (interface{}, error) {
	var u uint64
	for _, b := range raw {
		u = u<<8 | uint64(b)
	}
	if !t.Signed() {
		switch t {
		case TypeUint8:
			return uint8(u), nil
		case TypeUint16:
			return uint16(u), nil
		case TypeUint24, TypeUint32:
			return uint32(u), nil
		case TypeUint64:
			return u, nil
		}
	}
	// Signed integers have their sign bit flipped on disk so that
	// unsigned byte comparison still sorts correctly (spec.md §4.H).
	width := len(raw)
	signBit := uint64(1) << uint(width*8-1)
	u ^= signBit
	shift := uint(64 - width*8)
	signed := int64(u<<shift) >> shift
	switch t {
	case TypeInt8:
		return int8(signed), nil
	case TypeInt16:
		return int16(signed), nil
	case TypeInt24, TypeInt32:
		return int32(signed), nil
	case TypeInt64:
		return signed, nil
	default:
		return nil, errors.Errorf("record: unknown integer type %d", t)
	}
}

