package fseg

import (
	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/page"
)

// PageFetcher reads and type-dispatches a single page, as the page
// factory does, without re-reading the file on every call (the
// caller's page cache is what makes this cheap).
type PageFetcher func(pageNo uint32) (page.Page, error)

// ErrExtentNotOnPage is returned when a list address doesn't resolve
// to an extent descriptor actually present on the page it names.
var ErrExtentNotOnPage = errors.New("fseg: address does not resolve to an extent descriptor on that page")

// DecodeXDES builds a Decoder for XDES-entry lists (the space-level
// FREE/FREE_FRAG/FULL_FRAG lists and each FSEG's FREE/NOT_FULL/FULL
// lists): every list pointer names the (page, offset) of an extent
// descriptor's embedded list node, offset 8 bytes into the entry.
func DecodeXDES(fetch PageFetcher) Decoder[page.XDESEntry] {
	return func(addr page.Addr) (page.XDESEntry, page.ListNode, error) {
		p, err := fetch(addr.Page)
		if err != nil {
			return page.XDESEntry{}, page.ListNode{}, errors.Wrapf(err, "fseg: fetching page %d", addr.Page)
		}
		entryOffset := int(addr.Offset) - 8
		var extents []page.XDESEntry
		switch pg := p.(type) {
		case *page.FSPHeaderPage:
			extents = pg.Extents
		case *page.XDESPage:
			extents = pg.Extents
		default:
			return page.XDESEntry{}, page.ListNode{}, errors.Errorf("fseg: page %d is not an XDES-bearing page (%T)", addr.Page, p)
		}
		for _, e := range extents {
			if e.Offset == entryOffset {
				return e, e.ListNode, nil
			}
		}
		return page.XDESEntry{}, page.ListNode{}, ErrExtentNotOnPage
	}
}

// DecodeInodePage builds a Decoder for the space-level FULL_INODES and
// FREE_INODES lists, whose nodes are INODE pages' own embedded link.
func DecodeInodePage(fetch PageFetcher) Decoder[*page.INodePage] {
	return func(addr page.Addr) (*page.INodePage, page.ListNode, error) {
		p, err := fetch(addr.Page)
		if err != nil {
			return nil, page.ListNode{}, errors.Wrapf(err, "fseg: fetching page %d", addr.Page)
		}
		inode, ok := p.(*page.INodePage)
		if !ok {
			return nil, page.ListNode{}, errors.Errorf("fseg: page %d is not an INODE page (%T)", addr.Page, p)
		}
		return inode, inode.ListNode, nil
	}
}

// ListName identifies one of a FSEG's three extent lists.
type ListName string

const (
	ListFree    ListName = "FREE"
	ListNotFull ListName = "NOT_FULL"
	ListFull    ListName = "FULL"
)

// FSeg is the domain view of one file segment (half of one index's
// storage), wrapping the raw page.FSegEntry with the page fetcher
// needed to walk its lists (spec.md §4.E).
type FSeg struct {
	Entry page.FSegEntry
	fetch PageFetcher
}

// New wraps a raw FSegEntry for list traversal and accounting.
func New(entry page.FSegEntry, fetch PageFetcher) *FSeg {
	return &FSeg{Entry: entry, fetch: fetch}
}

// List returns the named extent list's base node, or false if name is
// not recognized (spec.md §4.E: "list(name) returns the named list or
// nil").
func (f *FSeg) List(name ListName) (page.ListBaseNode, bool) {
	switch name {
	case ListFree:
		return f.Entry.Free, true
	case ListNotFull:
		return f.Entry.NotFull, true
	case ListFull:
		return f.Entry.Full, true
	default:
		return page.ListBaseNode{}, false
	}
}

// EachList yields every (name, list) pair for the three extent lists.
func (f *FSeg) EachList(fn func(name ListName, base page.ListBaseNode) error) error {
	for _, name := range []ListName{ListFree, ListNotFull, ListFull} {
		base, _ := f.List(name)
		if err := fn(name, base); err != nil {
			return err
		}
	}
	return nil
}

// Extents returns the decoded XDES entries belonging to the named
// list.
func (f *FSeg) Extents(name ListName) ([]page.XDESEntry, error) {
	base, ok := f.List(name)
	if !ok {
		return nil, errors.Errorf("fseg: unknown list %q", name)
	}
	return Each(base, DecodeXDES(f.fetch))
}

// TotalPages is the number of pages allocated to this segment:
// fragment pages plus a full extent's worth of pages for every extent
// on any of the three lists (spec.md §4.E).
func (f *FSeg) TotalPages() uint32 {
	n := uint32(len(f.Entry.FragPages()))
	n += (f.Entry.Free.Length + f.Entry.NotFull.Length + f.Entry.Full.Length) * page.PagesPerExtent
	return n
}

// FillFactor is the fraction of allocated pages actually in use,
// approximated from not_full_n_used plus full extents' pages plus
// fragment pages, over TotalPages.
func (f *FSeg) FillFactor() float64 {
	total := f.TotalPages()
	if total == 0 {
		return 0
	}
	used := uint32(len(f.Entry.FragPages())) + f.Entry.NotFullNUsed + f.Entry.Full.Length*page.PagesPerExtent
	return float64(used) / float64(total)
}
