// Package testfixture synthesizes byte-exact InnoDB pages for tests,
// standing in for the checked-in binary fixtures spec.md §8
// describes. Every page builder except NewPage (which returns the
// *Page builder itself) returns a plain []byte the size of one page;
// nothing here is imported outside _test.go files.
package testfixture

import "encoding/binary"

const (
	PageSize  = 16384
	NilPage   = 0xFFFFFFFF
	typeFSP   = 8
	typeXDES  = 9
	typeInode = 3
	typeIndex = 17855

	infimumOrigin  = 99
	supremumOrigin = 112
	supremumEnd    = 120
)

// Page is a mutable builder around one page-sized buffer.
type Page struct {
	Buf []byte
}

// NewPage allocates a zeroed page and stamps its FIL header.
func NewPage(pageType uint16, spaceID, pageNo, prev, next uint32) *Page {
	p := &Page{Buf: make([]byte, PageSize)}
	p.u32(0, 0) // checksum left at 0; tests use ChecksumNone
	p.u32(4, pageNo)
	p.u32(8, prev)
	p.u32(12, next)
	p.u64(16, 0) // lsn
	p.u16(24, pageType)
	p.u64(26, 0) // flush lsn
	p.u32(34, spaceID)
	return p
}

func (p *Page) u16(off int, v uint16) { binary.BigEndian.PutUint16(p.Buf[off:off+2], v) }
func (p *Page) u32(off int, v uint32) { binary.BigEndian.PutUint32(p.Buf[off:off+4], v) }
func (p *Page) u64(off int, v uint64) { binary.BigEndian.PutUint64(p.Buf[off:off+8], v) }
func (p *Page) i16(off int, v int16)  { binary.BigEndian.PutUint16(p.Buf[off:off+2], uint16(v)) }

func (p *Page) putListBaseNode(off int, length uint32, firstPage uint32, firstOff uint16, lastPage uint32, lastOff uint16) {
	p.u32(off, length)
	p.u32(off+4, firstPage)
	p.u16(off+8, firstOff)
	p.u32(off+10, lastPage)
	p.u16(off+14, lastOff)
}

func emptyListBaseNode(p *Page, off int) {
	p.putListBaseNode(off, 0, NilPage, 0, NilPage, 0)
}

// FSPHeader builds page 0 (FSP_HDR) with sizePages total pages and a
// given number of free XDES entries inline.
func FSPHeader(spaceID, sizePages uint32, xdesCount int) []byte {
	p := NewPage(typeFSP, spaceID, 0, NilPage, NilPage)
	off := 38
	p.u32(off, spaceID)
	p.u32(off+4, 0)
	p.u32(off+8, sizePages)
	p.u32(off+12, sizePages)
	p.u32(off+16, 0) // flags
	p.u32(off+20, 0) // frag_n_used
	emptyListBaseNode(p, off+24) // free
	emptyListBaseNode(p, off+40) // free_frag
	emptyListBaseNode(p, off+56) // full_frag
	p.u64(off+72, 1)             // next_seg_id
	emptyListBaseNode(p, off+80) // full_inodes
	emptyListBaseNode(p, off+96) // free_inodes

	entryOff := off + 112
	for i := 0; i < xdesCount; i++ {
		writeXDESEntry(p, entryOff, 0, 1 /*FREE*/, NilPage, 0, NilPage, 0, nil)
		entryOff += 40
	}
	return p.Buf
}

func writeXDESEntry(p *Page, off int, fsegID uint64, state uint32, prevPage uint32, prevOff uint16, nextPage uint32, nextOff uint16, bitmap []byte) {
	p.u64(off, fsegID)
	p.u32(off+8, prevPage)
	p.u16(off+12, prevOff)
	p.u32(off+14, nextPage)
	p.u16(off+18, nextOff)
	p.u32(off+20, state)
	if bitmap != nil {
		copy(p.Buf[off+24:off+40], bitmap)
	}
}

// xdesArrayStart is the byte offset of the extent-descriptor array on
// any XDES-bearing page, page 0 included: the 112-byte FSP-header
// region is reserved (though only actually used on page 0) on every
// such page, so the array always starts after it.
const xdesArrayStart = 38 + 112

// XDESPage builds a non-page-0 XDES page with xdesCount free entries.
func XDESPage(spaceID, pageNo uint32, xdesCount int) []byte {
	p := NewPage(typeXDES, spaceID, pageNo, NilPage, NilPage)
	entryOff := xdesArrayStart
	for i := 0; i < xdesCount; i++ {
		writeXDESEntry(p, entryOff, 0, 1, NilPage, 0, NilPage, 0, nil)
		entryOff += 40
	}
	return p.Buf
}

// XDESSpec fully specifies one extent descriptor entry for tests that
// need real list linkage instead of the all-free default.
type XDESSpec struct {
	FSegID   uint64
	State    uint32
	PrevPage uint32
	PrevOff  uint16
	NextPage uint32
	NextOff  uint16
	Bitmap   []byte
}

// XDESPageWithEntries builds a non-page-0 XDES page whose entries are
// fully specified, for list-traversal fixtures.
func XDESPageWithEntries(spaceID, pageNo uint32, specs []XDESSpec) []byte {
	p := NewPage(typeXDES, spaceID, pageNo, NilPage, NilPage)
	entryOff := xdesArrayStart
	for _, s := range specs {
		writeXDESEntry(p, entryOff, s.FSegID, s.State, s.PrevPage, s.PrevOff, s.NextPage, s.NextOff, s.Bitmap)
		entryOff += 40
	}
	return p.Buf
}

// XDESEntryOffset returns the byte offset of the Nth entry on a
// non-page-0 XDES page, and ListNodeAddr returns the (page, offset)
// that a list pointer to that entry's embedded link must use.
func XDESEntryOffset(n int) int { return xdesArrayStart + n*40 }
func ListNodeAddr(pageNo uint32, entryOffset int) (uint32, uint16) {
	return pageNo, uint16(entryOffset + 8)
}

// InodePage builds an INODE page with no initialized entries (all
// zero, magic unset).
func InodePage(spaceID, pageNo uint32) []byte {
	return NewPage(typeInode, spaceID, pageNo, NilPage, NilPage).Buf
}

// Record describes one logical record to lay out in a leaf or
// internal INDEX page fixture. Key and Row are encoded as big-endian
// uint32 columns; ChildPage is only meaningful for internal pages.
type Record struct {
	Key       []uint32
	Row       []uint32 // leaf only
	ChildPage uint32   // internal (node_pointer) only
	Deleted   bool
}

func (r Record) byteLen(leaf bool) int {
	n := len(r.Key) * 4
	if leaf {
		n += len(r.Row) * 4
	} else {
		n += 4 // child page number
	}
	return n
}

// writeSentinels lays down the infimum/supremum records; real record
// data follows them from the fixed heap-start offset (120).
func writeSentinels(p *Page) {
	p.Buf[94] = 0x00 // info_flags=0, n_owned=1 (low nibble)
	p.Buf[94] |= 0x01
	binary.BigEndian.PutUint16(p.Buf[95:97], uint16(2)<<3|uint16(typeRecInfimum))
	copy(p.Buf[99:107], []byte("infimum\x00"))

	p.Buf[107] = 0x00
	binary.BigEndian.PutUint16(p.Buf[108:110], uint16(0)<<3|uint16(typeRecSupremum))
	copy(p.Buf[112:120], []byte("supremum"))
}

const (
	typeRecConventional = 0
	typeRecNodePointer  = 1
	typeRecInfimum      = 2
	typeRecSupremum     = 3
)

// BuildIndexPage lays out a full INDEX page (leaf when leaf==true,
// else internal/node-pointer) with the given records in order. Keys
// must already be sorted ascending by the caller.
func BuildIndexPage(spaceID, pageNo uint32, prev, next uint32, indexID uint64, level uint16, leaf bool, records []Record, root bool) []byte {
	p := NewPage(typeIndex, spaceID, pageNo, prev, next)
	writeSentinels(p)

	const hdr = 38
	heapTop := supremumEnd
	origins := make([]int, len(records))

	// lay out records back-to-front isn't necessary; forward is fine
	// since next_record offsets are computed after all origins known.
	cursor := supremumEnd
	for i, r := range records {
		recLen := r.byteLen(leaf)
		origin := cursor + 5
		origins[i] = origin
		cursor = origin + recLen
	}
	heapTop = cursor

	prevOrigin := infimumOrigin
	for i, r := range records {
		origin := origins[i]
		nextOrigin := supremumOrigin
		if i+1 < len(records) {
			nextOrigin = origins[i+1]
		}
		writeRecord(p, origin, r, leaf, int16(nextOrigin-origin))
		_ = prevOrigin
		prevOrigin = origin
	}
	// infimum -> first record (or supremum if no records)
	firstTarget := supremumOrigin
	if len(records) > 0 {
		firstTarget = origins[0]
	}
	binary.BigEndian.PutUint16(p.Buf[97:99], uint16(int16(firstTarget-infimumOrigin)))
	// supremum has no next record
	binary.BigEndian.PutUint16(p.Buf[110:112], 0)

	p.u16(hdr+0, 2) // n_dir_slots (minimal: supremum, infimum)
	p.u16(hdr+2, uint16(heapTop))
	p.u16(hdr+4, 0x8000|uint16(2+len(records)))
	p.u16(hdr+6, 0)
	p.u16(hdr+8, 0)
	p.u16(hdr+10, 0)
	p.u16(hdr+12, 0)
	p.u16(hdr+14, 0)
	p.u16(hdr+16, uint16(len(records)))
	p.u64(hdr+18, 0)
	p.u16(hdr+26, level)
	p.u64(hdr+28, indexID)
	if root {
		p.u32(hdr+36, spaceID)
		p.u32(hdr+40, pageNo)
		p.u16(hdr+44, 0)
		p.u32(hdr+46, spaceID)
		p.u32(hdr+50, pageNo)
		p.u16(hdr+54, 0)
	}

	dirOff := PageSize - 8 - 2
	p.u16(dirOff, supremumOrigin)
	p.u16(dirOff-2, infimumOrigin)

	return p.Buf
}

func writeRecord(p *Page, origin int, r Record, leaf bool, nextOffset int16) {
	infoFlags := uint8(0)
	if r.Deleted {
		infoFlags |= 0x01
	}
	recType := uint16(typeRecConventional)
	if !leaf {
		recType = typeRecNodePointer
	}
	p.Buf[origin-5] = infoFlags<<4 | 0x01 // n_owned left at 1
	binary.BigEndian.PutUint16(p.Buf[origin-4:origin-2], uint16(1)<<3|recType)
	binary.BigEndian.PutUint16(p.Buf[origin-2:origin], uint16(nextOffset))

	pos := origin
	for _, k := range r.Key {
		p.u32(pos, k)
		pos += 4
	}
	if leaf {
		for _, v := range r.Row {
			p.u32(pos, v)
			pos += 4
		}
	} else {
		p.u32(pos, r.ChildPage)
		pos += 4
	}
}

// EmptyIndexPage builds a leaf INDEX page containing only infimum and
// supremum (spec.md §8 scenario 1).
func EmptyIndexPage(spaceID, pageNo uint32, indexID uint64, level uint16) []byte {
	return BuildIndexPage(spaceID, pageNo, NilPage, NilPage, indexID, level, true, nil, true)
}
