package page

import (
	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/cursor"
)

// FSegMagicN is the sentinel value stamped into every initialized
// FSEG (file segment) descriptor entry.
const FSegMagicN = 97937874

// fsegEntrySize is the on-disk size of one FSEG descriptor entry
// within an INODE page (spec.md §4.E).
const fsegEntrySize = 8 /*id*/ + 4 /*not_full_n_used*/ + 16*3 /*free,not_full,full*/ + 4 /*magic*/ + 32*4 /*frag array*/

// fragArraySlots is the number of fragment-page slots carried inline
// in each FSEG descriptor.
const fragArraySlots = 32

// inodeListNodeSize is the size of an INODE page's own link within
// the space's FULL_INODES/FREE_INODES list.
const inodeListNodeSize = 12

// FSegEntry is one raw FSEG (file segment) descriptor, as laid out on
// an INODE page (spec.md §3, "INODE (FSEG)").
type FSegEntry struct {
	Offset        int
	FSegID        uint64
	NotFullNUsed  uint32
	Free          ListBaseNode
	NotFull       ListBaseNode
	Full          ListBaseNode
	MagicN        uint32
	FragArray     [fragArraySlots]uint32
}

// Initialized reports whether this slot describes a real segment
// (magic number stamped) rather than an unused descriptor slot.
func (e FSegEntry) Initialized() bool { return e.MagicN == FSegMagicN }

// FragPages returns the non-nil entries of the fragment-page array.
func (e FSegEntry) FragPages() []uint32 {
	var out []uint32
	for _, p := range e.FragArray {
		if p != NilPageNumber {
			out = append(out, p)
		}
	}
	return out
}

func parseFSegEntry(buf []byte, offset int) (FSegEntry, error) {
	c := cursor.NewAt(buf, offset, cursor.Forward)
	e := FSegEntry{Offset: offset}

	var err error
	if e.FSegID, err = c.ReadU64(); err != nil {
		return e, errors.Wrap(err, "inode: fseg_id")
	}
	if e.NotFullNUsed, err = c.ReadU32(); err != nil {
		return e, errors.Wrap(err, "inode: not_full_n_used")
	}
	if e.Free, err = readListBaseNode(c); err != nil {
		return e, errors.Wrap(err, "inode: free list")
	}
	if e.NotFull, err = readListBaseNode(c); err != nil {
		return e, errors.Wrap(err, "inode: not_full list")
	}
	if e.Full, err = readListBaseNode(c); err != nil {
		return e, errors.Wrap(err, "inode: full list")
	}
	if e.MagicN, err = c.ReadU32(); err != nil {
		return e, errors.Wrap(err, "inode: magic_n")
	}
	for i := 0; i < fragArraySlots; i++ {
		v, err := c.ReadU32()
		if err != nil {
			return e, errors.Wrapf(err, "inode: frag_array[%d]", i)
		}
		e.FragArray[i] = v
	}
	return e, nil
}

// INodePage holds the array of FSEG descriptors used by file segments
// across the space (spec.md §4.E).
type INodePage struct {
	*Framed

	ListNode ListNode // this page's own link in FULL_INODES/FREE_INODES
	Entries  []FSegEntry
}

func newINodePage(f *Framed) (*INodePage, error) {
	buf := f.Bytes()
	c := cursor.NewAt(buf, FileHeaderSize, cursor.Forward)
	node, err := readListNode(c)
	if err != nil {
		return nil, errors.Wrap(err, "page: parsing INODE page list node")
	}

	p := &INodePage{Framed: f, ListNode: node}

	offset := FileHeaderSize + inodeListNodeSize
	for offset+fsegEntrySize <= len(buf)-FileTrailerSize {
		e, err := parseFSegEntry(buf, offset)
		if err != nil {
			return nil, errors.Wrap(err, "page: parsing INODE entries")
		}
		p.Entries = append(p.Entries, e)
		offset += fsegEntrySize
	}
	return p, nil
}
