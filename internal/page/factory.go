package page

import "github.com/pkg/errors"

// Options configures how a page buffer is interpreted. Checksum
// algorithm and a couple of layout toggles depend on the owning
// space's flags, so the factory never guesses them.
type Options struct {
	ChecksumAlgo ChecksumAlgo
}

// NewFromBytes parses buf (exactly one page's worth of bytes) and
// dispatches on the FIL header's type field to build the specialized
// view. An unrecognized type yields the generic *Framed, never an
// error — spec.md §4.B: "If type is unknown, yield the generic framed
// page."
func NewFromBytes(buf []byte, opts Options) (Page, error) {
	f, err := NewFramed(buf, opts.ChecksumAlgo)
	if err != nil {
		return nil, errors.Wrap(err, "page: factory")
	}

	switch f.PageType {
	case TypeFSPHdr:
		return newFSPHeaderPage(f)
	case TypeXDES:
		return newXDESPage(f)
	case TypeInode:
		return newINodePage(f)
	case TypeIndex:
		return newIndexPage(f)
	default:
		return f, nil
	}
}
