package page

import (
	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/cursor"
)

// PagesPerExtent is the fixed extent size at the default 16 KiB page
// size (spec.md §3, "Extent").
const PagesPerExtent = 64

// ExtentsPerXDESPage is how many extent descriptors live on a single
// XDES-bearing page (spec.md §4.D): one XDES page covers
// PagesPerExtent*ExtentsPerXDESPage pages.
const ExtentsPerXDESPage = 64

// PagesPerXDESPage is the page span covered by one XDES page's
// descriptor array.
const PagesPerXDESPage = PagesPerExtent * ExtentsPerXDESPage

// fspHeaderSize is the byte length of the FSP header proper (the
// fixed fields plus its five embedded list base nodes), not counting
// the XDES array that follows it on page 0.
const fspHeaderSize = 112

// xdesEntrySize is the on-disk size of one extent descriptor.
const xdesEntrySize = 40

// ListBaseNode is an embedded doubly linked list head: a count plus
// first/last pointers (spec.md §3, "List").
type ListBaseNode struct {
	Length uint32
	First  Addr
	Last   Addr
}

// ListNode is an embedded doubly linked list link: prev/next pointers.
type ListNode struct {
	Prev Addr
	Next Addr
}

// Addr is a (page, offset) pointer as used by the embedded list
// framework. A nil Addr has Page == NilPageNumber.
type Addr struct {
	Page   uint32
	Offset uint16
}

// IsNil reports whether the address is the InnoDB nil marker.
func (a Addr) IsNil() bool { return a.Page == NilPageNumber }

func readAddr(c *cursor.Cursor) (Addr, error) {
	p, err := c.ReadU32()
	if err != nil {
		return Addr{}, err
	}
	o, err := c.ReadU16()
	if err != nil {
		return Addr{}, err
	}
	return Addr{Page: p, Offset: o}, nil
}

func readListBaseNode(c *cursor.Cursor) (ListBaseNode, error) {
	length, err := c.ReadU32()
	if err != nil {
		return ListBaseNode{}, err
	}
	first, err := readAddr(c)
	if err != nil {
		return ListBaseNode{}, err
	}
	last, err := readAddr(c)
	if err != nil {
		return ListBaseNode{}, err
	}
	return ListBaseNode{Length: length, First: first, Last: last}, nil
}

func readListNode(c *cursor.Cursor) (ListNode, error) {
	prev, err := readAddr(c)
	if err != nil {
		return ListNode{}, err
	}
	next, err := readAddr(c)
	if err != nil {
		return ListNode{}, err
	}
	return ListNode{Prev: prev, Next: next}, nil
}

// FSPHeaderPage is page 0 of a tablespace: the space-level header plus
// the first block of extent descriptors (spec.md §4.D).
type FSPHeaderPage struct {
	*Framed

	SpaceID    uint32
	Size       uint32 // tablespace size, in pages, as of last extend
	FreeLimit  uint32
	Flags      uint32
	FragNUsed  uint32
	NextSegID  uint64
	Free       ListBaseNode
	FreeFrag   ListBaseNode
	FullFrag   ListBaseNode
	FullInodes ListBaseNode
	FreeInodes ListBaseNode

	Extents []XDESEntry
}

func newFSPHeaderPage(f *Framed) (*FSPHeaderPage, error) {
	if len(f.Bytes()) < FileHeaderSize+fspHeaderSize {
		return nil, errors.New("page: FSP header truncated")
	}
	c := cursor.NewAt(f.Bytes(), FileHeaderSize, cursor.Forward)

	p := &FSPHeaderPage{Framed: f}
	var err error
	read := func(name string, fn func() error) {
		if err != nil {
			return
		}
		pop := c.Push(name)
		defer pop()
		err = fn()
	}
	read("space_id", func() error { v, e := c.ReadU32(); p.SpaceID = v; return e })
	read("not_used", func() error { _, e := c.ReadU32(); return e })
	read("size", func() error { v, e := c.ReadU32(); p.Size = v; return e })
	read("free_limit", func() error { v, e := c.ReadU32(); p.FreeLimit = v; return e })
	read("flags", func() error { v, e := c.ReadU32(); p.Flags = v; return e })
	read("frag_n_used", func() error { v, e := c.ReadU32(); p.FragNUsed = v; return e })
	read("free", func() error { v, e := readListBaseNode(c); p.Free = v; return e })
	read("free_frag", func() error { v, e := readListBaseNode(c); p.FreeFrag = v; return e })
	read("full_frag", func() error { v, e := readListBaseNode(c); p.FullFrag = v; return e })
	read("next_seg_id", func() error { v, e := c.ReadU64(); p.NextSegID = v; return e })
	read("full_inodes", func() error { v, e := readListBaseNode(c); p.FullInodes = v; return e })
	read("free_inodes", func() error { v, e := readListBaseNode(c); p.FreeInodes = v; return e })
	if err != nil {
		return nil, errors.Wrap(err, "page: parsing FSP header")
	}

	entries, err := parseXDESEntries(f.Bytes(), FileHeaderSize+fspHeaderSize)
	if err != nil {
		return nil, errors.Wrap(err, "page: parsing FSP header's XDES array")
	}
	p.Extents = entries
	return p, nil
}

// SystemSpace reports whether SpaceID identifies the system
// tablespace (always ID 0).
func (p *FSPHeaderPage) SystemSpace() bool { return p.SpaceID == 0 }

// parseXDESEntries decodes the extent descriptor array starting at
// start. It reads at most ExtentsPerXDESPage entries and stops at the
// first slot whose state is XDESNotInited (a zeroed slot that does not
// describe an extent).
func parseXDESEntries(buf []byte, start int) ([]XDESEntry, error) {
	var entries []XDESEntry
	offset := start
	for len(entries) < ExtentsPerXDESPage && offset+xdesEntrySize <= len(buf)-FileTrailerSize {
		e, err := parseXDESEntry(buf, offset)
		if err != nil {
			return entries, err
		}
		if e.State == XDESNotInited {
			break
		}
		entries = append(entries, e)
		offset += xdesEntrySize
	}
	return entries, nil
}
