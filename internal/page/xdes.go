package page

import (
	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/cursor"
)

// XDESState is the extent-level allocation state (spec.md §3, "XDES
// entry").
type XDESState uint32

const (
	XDESNotInited XDESState = iota
	XDESFree
	XDESFreeFrag
	XDESFullFrag
	XDESFSeg
)

func (s XDESState) String() string {
	switch s {
	case XDESFree:
		return "FREE"
	case XDESFreeFrag:
		return "FREE_FRAG"
	case XDESFullFrag:
		return "FULL_FRAG"
	case XDESFSeg:
		return "FSEG"
	default:
		return "NOT_INITED"
	}
}

// XDESEntry describes one extent: which (if any) file segment owns
// it, its state, its membership in one of the space-level or fseg-
// level lists, and the per-page free/clean bitmap.
type XDESEntry struct {
	Offset   int // byte offset of this entry within its page
	FSegID   uint64
	State    XDESState
	ListNode ListNode
	Bitmap   []byte // 16 bytes, 2 bits per page: bit0=free, bit1=clean
}

// PageFree reports whether the page at the given index (0..63) within
// this extent is free.
func (e XDESEntry) PageFree(indexInExtent int) bool {
	return e.bit(indexInExtent, 0)
}

// PageClean reports the "clean" bit for the given page index.
func (e XDESEntry) PageClean(indexInExtent int) bool {
	return e.bit(indexInExtent, 1)
}

func (e XDESEntry) bit(indexInExtent, bitInPair int) bool {
	bitPos := indexInExtent*2 + bitInPair
	byteIdx := bitPos / 8
	if byteIdx >= len(e.Bitmap) {
		return false
	}
	shift := uint(bitPos % 8)
	return (e.Bitmap[byteIdx]>>shift)&1 == 1
}

// AllocatedToFSeg reports whether the extent is owned by a file
// segment (spec.md §4.D: state==FSEG && fseg_id != 0).
func (e XDESEntry) AllocatedToFSeg() bool {
	return e.State == XDESFSeg && e.FSegID != 0
}

func parseXDESEntry(buf []byte, offset int) (XDESEntry, error) {
	c := cursor.NewAt(buf, offset, cursor.Forward)
	e := XDESEntry{Offset: offset}

	id, err := c.ReadU64()
	if err != nil {
		return e, errors.Wrap(err, "xdes: id")
	}
	e.FSegID = id

	node, err := readListNode(c)
	if err != nil {
		return e, errors.Wrap(err, "xdes: list node")
	}
	e.ListNode = node

	state, err := c.ReadU32()
	if err != nil {
		return e, errors.Wrap(err, "xdes: state")
	}
	e.State = XDESState(state)

	bitmap, err := c.ReadBytes(16)
	if err != nil {
		return e, errors.Wrap(err, "xdes: bitmap")
	}
	e.Bitmap = bitmap

	return e, nil
}

// ExtentForPage returns the page number of the XDES page housing the
// descriptor for page n, per spec.md §4.D:
// ⌊n / (PagesPerExtent*ExtentsPerXDESPage)⌋ * PagesPerExtent*ExtentsPerXDESPage.
func ExtentForPage(n uint32) uint32 {
	return (n / PagesPerXDESPage) * PagesPerXDESPage
}

// EntryIndexForPage returns the index of page n's extent descriptor
// within its housing XDES page's array.
func EntryIndexForPage(n uint32) int {
	withinBlock := n % PagesPerXDESPage
	return int(withinBlock / PagesPerExtent)
}

// XDESPage is an extent-descriptor page other than page 0 (which
// carries its own descriptor block inline in FSPHeaderPage). Real
// InnoDB reserves the 112-byte FSP-header region on every XDES-bearing
// page, not just page 0 (it's simply unused there), so the descriptor
// array starts at FileHeaderSize+fspHeaderSize, the same offset
// FSPHeaderPage uses for its own array.
type XDESPage struct {
	*Framed
	Extents []XDESEntry
}

func newXDESPage(f *Framed) (*XDESPage, error) {
	entries, err := parseXDESEntries(f.Bytes(), FileHeaderSize+fspHeaderSize)
	if err != nil {
		return nil, errors.Wrap(err, "page: parsing XDES page")
	}
	return &XDESPage{Framed: f, Extents: entries}, nil
}
