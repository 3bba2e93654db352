// Package btree implements recursive descent over an INDEX page
// B-tree: depth-first preorder traversal, per-level enumeration via
// the leaf/node chain, and in-order record iteration (spec.md §4.I).
package btree

import (
	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/page"
	"github.com/MailG/innodb-ruby/internal/record"
)

// ErrIndexIDMismatch is a corruption error (spec.md §7): a page
// reached during recursion carries a different index_id than the
// root it was reached from.
var ErrIndexIDMismatch = errors.New("btree: page index_id does not match root")

// PageFetcher fetches and type-dispatches a page by number.
type PageFetcher func(pageNo uint32) (page.Page, error)

// Index wraps a B-tree rooted at a known page (spec.md §3, "Index
// (B-tree)").
type Index struct {
	fetch      PageFetcher
	root       *page.IndexPage
	describer  record.Describer
}

// Open fetches rootPageNo and wraps it as a B-tree root.
func Open(fetch PageFetcher, rootPageNo uint32, d record.Describer) (*Index, error) {
	p, err := fetch(rootPageNo)
	if err != nil {
		return nil, errors.Wrapf(err, "btree: fetching root page %d", rootPageNo)
	}
	root, ok := p.(*page.IndexPage)
	if !ok {
		return nil, errors.Errorf("btree: page %d is not an INDEX page (%T)", rootPageNo, p)
	}
	return &Index{fetch: fetch, root: root, describer: d}, nil
}

// IndexID is the root page's index_id; every page visited during
// traversal must match it.
func (ix *Index) IndexID() uint64 { return ix.root.Header.IndexID }

// Root returns the root INDEX page.
func (ix *Index) Root() *page.IndexPage { return ix.root }

func (ix *Index) fetchIndexPage(pageNo uint32) (*page.IndexPage, error) {
	p, err := ix.fetch(pageNo)
	if err != nil {
		return nil, errors.Wrapf(err, "btree: fetching page %d", pageNo)
	}
	ip, ok := p.(*page.IndexPage)
	if !ok {
		return nil, errors.Errorf("btree: page %d is not an INDEX page (%T)", pageNo, p)
	}
	if ip.Header.IndexID != ix.IndexID() {
		return nil, errors.Wrapf(ErrIndexIDMismatch, "page %d has index_id %d, root has %d", pageNo, ip.Header.IndexID, ix.IndexID())
	}
	return ip, nil
}

// Link describes one parent→child edge discovered during Recurse.
type Link struct {
	Parent   *page.IndexPage
	Child    *page.IndexPage
	ChildKey []record.Value
	Depth    int
}

// Recurse walks the tree depth-first, preorder, from the root.
// onPage is invoked for every node visited; onLink is invoked for
// every child pointer record, before recursing into that child.
// Recursion stops (and Recurse returns the corruption error) the
// moment a page's index_id disagrees with the root's (spec.md §4.I).
func (ix *Index) Recurse(onPage func(p *page.IndexPage, depth int) error, onLink func(l Link) error) error {
	return ix.recurse(ix.root, 0, onPage, onLink)
}

func (ix *Index) recurse(p *page.IndexPage, depth int, onPage func(*page.IndexPage, int) error, onLink func(Link) error) error {
	if onPage != nil {
		if err := onPage(p, depth); err != nil {
			return err
		}
	}
	if p.Leaf() {
		return nil
	}

	buf := p.Bytes()
	return p.EachRecord(func(raw page.RawRecord) error {
		if raw.Header.Type != page.RecordConventional && raw.Header.Type != page.RecordNodePointer {
			return nil
		}
		d, err := record.Decode(buf, raw, ix.describer)
		if err != nil {
			return errors.Wrap(err, "btree: decoding node pointer record")
		}
		if !d.HasChild {
			return nil
		}
		child, err := ix.fetchIndexPage(d.ChildPageNumber)
		if err != nil {
			return err
		}
		if onLink != nil {
			if err := onLink(Link{Parent: p, Child: child, ChildKey: d.Key, Depth: depth}); err != nil {
				return err
			}
		}
		return ix.recurse(child, depth+1, onPage, onLink)
	})
}

// EachPageAtLevel locates the leftmost page at level L by descending
// through the leftmost child at each step, then walks FIL `next`
// until the chain ends or the next page's level differs (spec.md
// §4.I).
func (ix *Index) EachPageAtLevel(level uint16, fn func(p *page.IndexPage) error) error {
	cur := ix.root
	for cur.Header.Level > level {
		child, err := ix.leftmostChild(cur)
		if err != nil {
			return err
		}
		cur = child
	}
	if cur.Header.Level != level {
		return errors.Errorf("btree: level %d not reachable from root (stopped at level %d)", level, cur.Header.Level)
	}
	for {
		if err := fn(cur); err != nil {
			return err
		}
		if !cur.HasNext() {
			return nil
		}
		next, err := ix.fetchIndexPage(cur.Next)
		if err != nil {
			return err
		}
		if next.Header.Level != level {
			return nil
		}
		cur = next
	}
}

func (ix *Index) leftmostChild(p *page.IndexPage) (*page.IndexPage, error) {
	buf := p.Bytes()
	var childPage uint32
	found := false
	err := p.EachRecord(func(raw page.RawRecord) error {
		if found || raw.Header.Type != page.RecordNodePointer {
			return nil
		}
		d, err := record.Decode(buf, raw, ix.describer)
		if err != nil {
			return err
		}
		childPage = d.ChildPageNumber
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("btree: internal page has no node pointer records")
	}
	return ix.fetchIndexPage(childPage)
}

// EachRecord yields every non-sentinel leaf record on leafPage in key
// order (spec.md §4.I, §4.H).
func EachRecord(leafPage *page.IndexPage, d record.Describer, fn func(*record.Decoded) error) error {
	buf := leafPage.Bytes()
	return leafPage.EachRecord(func(raw page.RawRecord) error {
		dec, err := record.Decode(buf, raw, d)
		if err == record.ErrSentinel {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "btree: decoding leaf record")
		}
		return fn(dec)
	})
}
