package page

import (
	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/cursor"
)

// Fixed offsets for the COMPACT-format sentinel records (spec.md
// §4.G). These are the well-known PAGE_NEW_INFIMUM/SUPREMUM
// constants; this library targets COMPACT row format only.
const (
	pageHeaderSize = 56

	InfimumOrigin       = 99
	SupremumOrigin      = 112
	SupremumEnd         = 120
	recordHeaderSize    = 5
	fsegPointerSize     = 10 // space_id(4) + page_no(4) + offset(2)
)

// RecordType is the 3-bit record-header type tag.
type RecordType uint8

const (
	RecordConventional RecordType = 0
	RecordNodePointer  RecordType = 1
	RecordInfimum      RecordType = 2
	RecordSupremum     RecordType = 3
)

func (t RecordType) String() string {
	switch t {
	case RecordConventional:
		return "conventional"
	case RecordNodePointer:
		return "node_pointer"
	case RecordInfimum:
		return "infimum"
	case RecordSupremum:
		return "supremum"
	default:
		return "unknown"
	}
}

// FSegPointer is an inline file-segment pointer embedded in the root
// page's header (spec.md §3, "INDEX page").
type FSegPointer struct {
	SpaceID uint32
	PageNo  uint32
	Offset  uint16
}

// PageHeader is the INDEX page header, immediately following the FIL
// header (spec.md §4.G).
type PageHeader struct {
	NDirSlots  uint16
	HeapTop    uint16
	NHeap      uint16 // top bit: 1 => COMPACT/new format, 0 => redundant
	Free       uint16
	Garbage    uint16
	LastInsert uint16
	Direction  uint16
	NDirection uint16
	NRecs      uint16
	MaxTrxID   uint64
	Level      uint16
	IndexID    uint64
	SegLeaf    FSegPointer // root only
	SegTop     FSegPointer // root only
}

// Compact reports whether the page uses the COMPACT physical record
// format (the high bit of n_heap).
func (h PageHeader) Compact() bool { return h.NHeap&0x8000 != 0 }

// HeapCount is n_heap with the format bit masked off.
func (h PageHeader) HeapCount() uint16 { return h.NHeap &^ 0x8000 }

func readFSegPointer(c *cursor.Cursor) (FSegPointer, error) {
	space, err := c.ReadU32()
	if err != nil {
		return FSegPointer{}, err
	}
	pageNo, err := c.ReadU32()
	if err != nil {
		return FSegPointer{}, err
	}
	off, err := c.ReadU16()
	if err != nil {
		return FSegPointer{}, err
	}
	return FSegPointer{SpaceID: space, PageNo: pageNo, Offset: off}, nil
}

func parsePageHeader(buf []byte) (PageHeader, error) {
	c := cursor.NewAt(buf, FileHeaderSize, cursor.Forward)
	var h PageHeader
	var err error
	rd16 := func(dst *uint16) {
		if err != nil {
			return
		}
		var v uint16
		v, err = c.ReadU16()
		*dst = v
	}
	rd16(&h.NDirSlots)
	rd16(&h.HeapTop)
	rd16(&h.NHeap)
	rd16(&h.Free)
	rd16(&h.Garbage)
	rd16(&h.LastInsert)
	rd16(&h.Direction)
	rd16(&h.NDirection)
	rd16(&h.NRecs)
	if err == nil {
		h.MaxTrxID, err = c.ReadU64()
	}
	rd16(&h.Level)
	if err == nil {
		h.IndexID, err = c.ReadU64()
	}
	if err != nil {
		return h, errors.Wrap(err, "index: page header")
	}
	if h.SegLeaf, err = readFSegPointer(c); err != nil {
		return h, errors.Wrap(err, "index: seg_leaf")
	}
	if h.SegTop, err = readFSegPointer(c); err != nil {
		return h, errors.Wrap(err, "index: seg_top")
	}
	return h, nil
}

// RecordHeader is the 5-byte physical record header preceding every
// record's origin (spec.md §3, "Record").
type RecordHeader struct {
	InfoFlags  uint8
	NOwned     uint8
	HeapNumber uint16
	Type       RecordType
	NextOffset int16 // relative to this record's origin
}

// Deleted reports the delete-mark bit of InfoFlags (spec.md §4.H:
// "info_flags bit 0").
func (h RecordHeader) Deleted() bool { return h.InfoFlags&0x01 != 0 }

// MinRec reports the "predefined minimum record" bit.
func (h RecordHeader) MinRec() bool { return h.InfoFlags&0x02 != 0 }

func parseRecordHeader(buf []byte, origin int) (RecordHeader, error) {
	if origin < recordHeaderSize || origin > len(buf) {
		return RecordHeader{}, errors.Errorf("index: record header out of range at origin %d", origin)
	}
	hdr := buf[origin-recordHeaderSize : origin]
	b0 := hdr[0]
	word := uint16(hdr[1])<<8 | uint16(hdr[2])
	next := int16(uint16(hdr[3])<<8 | uint16(hdr[4]))
	return RecordHeader{
		InfoFlags:  b0 >> 4,
		NOwned:     b0 & 0x0F,
		HeapNumber: word >> 3,
		Type:       RecordType(word & 0x7),
		NextOffset: next,
	}, nil
}

// RawRecord is a record's structural location within the page: its
// header and its origin offset. Column decoding happens in package
// record, which needs only these two things plus the page buffer.
type RawRecord struct {
	Header RecordHeader
	Origin int
}

// IndexPage is an INDEX page: header, heap of records reachable from
// infimum, and the page directory (spec.md §4.G).
type IndexPage struct {
	*Framed
	Header PageHeader
}

func newIndexPage(f *Framed) (*IndexPage, error) {
	h, err := parsePageHeader(f.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "page: parsing INDEX page")
	}
	return &IndexPage{Framed: f, Header: h}, nil
}

// Leaf reports whether this is a leaf (level 0) page.
func (p *IndexPage) Leaf() bool { return p.Header.Level == 0 }

// Root reports whether this page carries the inline FSEG pointers
// that only the root page of a B-tree has populated.
func (p *IndexPage) Root() bool {
	return p.Header.SegLeaf.PageNo != 0 && p.Header.SegLeaf.PageNo != NilPageNumber
}

// EachRecord walks the record chain starting at infimum and ending at
// (and including) supremum, following next_record relative offsets.
// It returns exactly NRecs+2 entries on a well-formed page (spec.md
// §8). fn may return an error to stop iteration early.
func (p *IndexPage) EachRecord(fn func(RawRecord) error) error {
	buf := p.Bytes()
	origin := InfimumOrigin
	seen := 0
	maxSteps := int(p.Header.NRecs) + 2 + 1 // +1 slack so overruns are detected, not silently looped
	for {
		hdr, err := parseRecordHeader(buf, origin)
		if err != nil {
			return errors.Wrapf(err, "index: record chain broke after %d records", seen)
		}
		if err := fn(RawRecord{Header: hdr, Origin: origin}); err != nil {
			return err
		}
		seen++
		if origin == SupremumOrigin {
			return nil
		}
		if seen > maxSteps {
			return errors.Errorf("index: record chain did not terminate at supremum within %d steps", maxSteps)
		}
		origin = origin + int(hdr.NextOffset)
	}
}

// Directory returns the page directory's slot offsets, in on-disk
// order (slot 0 nearest the trailer). Slots are not required for
// EachRecord's full chain walk; they exist for O(log n) search, which
// this library does not implement (spec.md §4.G).
func (p *IndexPage) Directory() ([]uint16, error) {
	buf := p.Bytes()
	n := int(p.Header.NDirSlots)
	slots := make([]uint16, 0, n)
	c := cursor.NewAt(buf, len(buf)-FileTrailerSize, cursor.Backward)
	for i := 0; i < n; i++ {
		v, err := c.ReadU16()
		if err != nil {
			return slots, errors.Wrap(err, "index: page directory")
		}
		slots = append(slots, v)
	}
	return slots, nil
}
