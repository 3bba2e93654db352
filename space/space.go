// Package space ties the lower-level page, fseg, btree, and logfile
// packages together into the file-scoped view spec.md §4.J describes:
// open a tablespace file, autodetect its page size, and walk its pages,
// extents, file segments, and indexes through one cached handle.
package space

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/MailG/innodb-ruby/internal/btree"
	"github.com/MailG/innodb-ruby/internal/fseg"
	"github.com/MailG/innodb-ruby/internal/page"
	"github.com/MailG/innodb-ruby/internal/pagecache"
	"github.com/MailG/innodb-ruby/internal/record"
)

// Space is a read-only handle onto one InnoDB tablespace file (spec.md
// §3, "Space"). All reads go through an internal page cache; nothing
// here ever writes to the underlying file.
type Space struct {
	f        *os.File
	pageSize int
	opts     Options
	cache    *pagecache.Cache
	log      *logrus.Logger
}

// Open opens the tablespace file at path, autodetecting its page size
// unless WithPageSize was given (spec.md §4.J).
func Open(path string, opts ...Option) (*Space, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "space: opening tablespace file")
	}

	sp := &Space{
		f:     f,
		opts:  o,
		cache: pagecache.New(o.CacheSize),
		log:   o.Logger,
	}

	size := o.PageSize
	if size == 0 {
		detected, err := sp.detectPageSize()
		if err != nil {
			f.Close()
			return nil, err
		}
		size = detected
	}
	sp.pageSize = size
	return sp, nil
}

// Close releases the underlying file handle.
func (s *Space) Close() error { return s.f.Close() }

// PageSize returns the page size this Space was opened with (detected
// or explicit).
func (s *Space) PageSize() int { return s.pageSize }

// detectPageSize tries each of page.SupportedPageSizes, largest first,
// reading page 0 as an FSP header page and accepting the first size
// for which the header's declared Size (in pages) is a plausible
// accounting of the file's actual length (spec.md §4.J: "autodetected
// by reading page 0... and inspecting the FSP header"). A declared
// Size of zero, or one wildly larger than the file could hold, rules
// a candidate size out; real tablespaces preallocate in extents so
// some slack is expected.
func (s *Space) detectPageSize() (int, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "space: stat")
	}
	fileSize := info.Size()

	var lastErr error
	for _, candidate := range page.SupportedPageSizes {
		if fileSize < int64(candidate) {
			continue
		}
		buf := make([]byte, candidate)
		if _, err := s.f.ReadAt(buf, 0); err != nil {
			lastErr = err
			continue
		}
		p, err := page.NewFromBytes(buf, page.Options{ChecksumAlgo: s.opts.ChecksumAlgo})
		if err != nil {
			lastErr = err
			continue
		}
		hdr, ok := p.(*page.FSPHeaderPage)
		if !ok {
			lastErr = errors.Errorf("space: page 0 is not FSP_HDR (%T) at page size %d", p, candidate)
			continue
		}
		if hdr.Size == 0 {
			lastErr = errors.Errorf("space: implausible FSP header at page size %d (size=0)", candidate)
			continue
		}
		expectedPages := fileSize / int64(candidate)
		if int64(hdr.Size) > expectedPages+int64(page.PagesPerExtent) {
			lastErr = errors.Errorf("space: FSP header size %d pages exceeds file's %d pages at page size %d", hdr.Size, expectedPages, candidate)
			continue
		}
		return candidate, nil
	}
	if lastErr == nil {
		lastErr = errors.New("space: no supported page size fit this file")
	}
	return 0, errors.Wrap(lastErr, "space: page size autodetection failed")
}

// Pages returns the number of whole pages in the file.
func (s *Space) Pages() (uint32, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "space: stat")
	}
	return uint32(info.Size() / int64(s.pageSize)), nil
}

// Page fetches and decodes page n, consulting (and populating) the
// page cache.
func (s *Space) Page(n uint32) (page.Page, error) {
	if p, ok := s.cache.Get(n); ok {
		return p, nil
	}

	total, err := s.Pages()
	if err != nil {
		return nil, err
	}
	if n >= total {
		return nil, errors.WithStack(&UsageError{Field: "page number", Value: n})
	}

	buf := make([]byte, s.pageSize)
	if _, err := s.f.ReadAt(buf, int64(n)*int64(s.pageSize)); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "space: reading page %d", n)
	}
	p, err := page.NewFromBytes(buf, page.Options{ChecksumAlgo: s.opts.ChecksumAlgo})
	if err != nil {
		return nil, errors.Wrapf(err, "space: decoding page %d", n)
	}
	s.cache.Put(n, p)
	return p, nil
}

// fetch adapts Page to the PageFetcher shape expected by fseg/btree.
func (s *Space) fetch(n uint32) (page.Page, error) { return s.Page(n) }

// EachPage decodes every page from start to the end of the file,
// invoking fn for each. Pages that fail to decode are logged and
// skipped rather than treated as fatal (spec.md §4.J, §7: a single
// corrupt page should not abort a space-wide scan).
func (s *Space) EachPage(start uint32, fn func(p page.Page) error) error {
	total, err := s.Pages()
	if err != nil {
		return err
	}
	for n := start; n < total; n++ {
		p, err := s.Page(n)
		if err != nil {
			s.log.WithError(err).WithField("page", n).Warn("space: skipping unreadable page")
			continue
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// SystemSpace reports whether page 0 identifies space ID 0.
func (s *Space) SystemSpace() bool {
	p, err := s.Page(0)
	if err != nil {
		return false
	}
	hdr, ok := p.(*page.FSPHeaderPage)
	return ok && hdr.SystemSpace()
}

// fspHeader fetches and type-asserts page 0.
func (s *Space) fspHeader() (*page.FSPHeaderPage, error) {
	p, err := s.Page(0)
	if err != nil {
		return nil, err
	}
	hdr, ok := p.(*page.FSPHeaderPage)
	if !ok {
		return nil, errors.WithStack(&CorruptionError{Msg: "page 0 is not an FSP header page"})
	}
	return hdr, nil
}

// XDESForPage returns the extent descriptor covering page n (spec.md
// §4.J: "xdes_for_page(n)").
func (s *Space) XDESForPage(n uint32) (page.XDESEntry, error) {
	extentPage := page.ExtentForPage(n)
	idx := page.EntryIndexForPage(n)

	p, err := s.Page(extentPage)
	if err != nil {
		return page.XDESEntry{}, err
	}

	var extents []page.XDESEntry
	switch pg := p.(type) {
	case *page.FSPHeaderPage:
		extents = pg.Extents
	case *page.XDESPage:
		extents = pg.Extents
	default:
		return page.XDESEntry{}, errors.WithStack(&CorruptionError{Msg: "extent descriptor page has unexpected type"})
	}
	if idx < 0 || idx >= len(extents) {
		return page.XDESEntry{}, errors.WithStack(&UsageError{Field: "page number", Value: n})
	}
	return extents[idx], nil
}

// EachXDES yields every extent descriptor in the space, in extent
// order, by walking each XDES-bearing page in turn.
func (s *Space) EachXDES(fn func(page.XDESEntry) error) error {
	total, err := s.Pages()
	if err != nil {
		return err
	}
	for extentPage := uint32(0); extentPage < total; extentPage += page.PagesPerXDESPage {
		p, err := s.Page(extentPage)
		if err != nil {
			s.log.WithError(err).WithField("page", extentPage).Warn("space: skipping unreadable extent descriptor page")
			continue
		}
		var extents []page.XDESEntry
		switch pg := p.(type) {
		case *page.FSPHeaderPage:
			extents = pg.Extents
		case *page.XDESPage:
			extents = pg.Extents
		default:
			continue
		}
		for _, e := range extents {
			if err := fn(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// SpaceListName identifies one of the three space-level extent lists
// (distinct from fseg.ListName, which names a file segment's own
// three lists — the space and each of its segments each keep a
// FREE/…-shaped triple, but they are different lists).
type SpaceListName string

const (
	SpaceListFree     SpaceListName = "FREE"
	SpaceListFreeFrag SpaceListName = "FREE_FRAG"
	SpaceListFullFrag SpaceListName = "FULL_FRAG"
)

// EachXDESList walks one of the space-level extent lists (FREE,
// FREE_FRAG, FULL_FRAG), yielding each member extent descriptor in
// list order (spec.md §4.J: "each_xdes_list").
func (s *Space) EachXDESList(name SpaceListName, fn func(page.XDESEntry) error) error {
	hdr, err := s.fspHeader()
	if err != nil {
		return err
	}
	var base page.ListBaseNode
	switch name {
	case SpaceListFree:
		base = hdr.Free
	case SpaceListFreeFrag:
		base = hdr.FreeFrag
	case SpaceListFullFrag:
		base = hdr.FullFrag
	default:
		return errors.WithStack(&UsageError{Field: "list name", Value: name})
	}
	entries, err := fseg.Each(base, fseg.DecodeXDES(s.fetch))
	if err != nil {
		return errors.WithStack(&CorruptionError{Msg: "space-level extent list inconsistent", Err: err})
	}
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// EachInode walks both space-level INODE lists (FULL_INODES then
// FREE_INODES), yielding every INODE page reached, and within it every
// initialized FSEG descriptor as an *fseg.FSeg (spec.md §4.J:
// "each_inode").
func (s *Space) EachInode(fn func(*fseg.FSeg) error) error {
	hdr, err := s.fspHeader()
	if err != nil {
		return err
	}
	for _, base := range []page.ListBaseNode{hdr.FullInodes, hdr.FreeInodes} {
		pages, err := fseg.Each(base, fseg.DecodeInodePage(s.fetch))
		if err != nil {
			return errors.WithStack(&CorruptionError{Msg: "INODE list inconsistent", Err: err})
		}
		for _, ip := range pages {
			for _, entry := range ip.Entries {
				if !entry.Initialized() {
					continue
				}
				if err := fn(fseg.New(entry, s.fetch)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Index opens a B-tree rooted at rootPageNo, using d to decode its
// records (spec.md §4.I: every index needs a caller-supplied
// describer).
func (s *Space) Index(rootPageNo uint32, d record.Describer) (*btree.Index, error) {
	ix, err := btree.Open(s.fetch, rootPageNo, d)
	if err != nil {
		return nil, err
	}
	return ix, nil
}

// PageTypeRegion is a maximal run of consecutive pages sharing one
// page type, as returned by EachPageTypeRegion (spec.md §4.J:
// "each_page_type_region... collapsing consecutive equal types").
type PageTypeRegion struct {
	Start uint32
	End   uint32 // inclusive
	Count uint32
	Type  page.Type
}

// EachPageTypeRegion scans every page in order, collapsing consecutive
// runs of the same page type into a single region, and yields each
// region in turn. Unreadable pages end the current region but do not
// abort the scan.
func (s *Space) EachPageTypeRegion(fn func(PageTypeRegion) error) error {
	total, err := s.Pages()
	if err != nil {
		return err
	}

	var current *PageTypeRegion
	flush := func() error {
		if current == nil {
			return nil
		}
		r := *current
		current = nil
		return fn(r)
	}

	for n := uint32(0); n < total; n++ {
		p, err := s.Page(n)
		if err != nil {
			s.log.WithError(err).WithField("page", n).Warn("space: skipping unreadable page")
			if ferr := flush(); ferr != nil {
				return ferr
			}
			continue
		}
		t := p.Type()
		if current != nil && current.Type == t {
			current.End = n
			current.Count++
			continue
		}
		if err := flush(); err != nil {
			return err
		}
		current = &PageTypeRegion{Start: n, End: n, Count: 1, Type: t}
	}
	return flush()
}
