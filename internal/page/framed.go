package page

import (
	"hash/crc32"

	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/cursor"
)

// ErrTruncated is returned when a buffer is too small to hold even the
// FIL header and trailer.
var ErrTruncated = errors.New("page: buffer shorter than FIL header+trailer")

// ChecksumAlgo selects the algorithm used by checksum_ok, matching the
// space's flags.
type ChecksumAlgo int

const (
	ChecksumInnoDB ChecksumAlgo = iota // folded XOR over two regions
	ChecksumCRC32
	ChecksumNone
)

// Framed decodes the FIL header and trailer shared by every page type,
// and exposes the checksum/LSN consistency checks. Every specialized
// page view embeds a *Framed and reads from the same underlying
// buffer — nothing is copied between the generic and specialized
// views.
type Framed struct {
	buf      []byte
	PageSize int

	Checksum    uint32
	PageNo      uint32
	Prev        uint32 // NilPageNumber => no previous page
	Next        uint32 // NilPageNumber => no next page
	LSN         uint64
	PageType    Type
	FlushLSN    uint64 // only meaningful on page 0 of the system space
	SpaceID     uint32
	TrailerLSN  uint32 // low 32 bits of LSN, from the trailer
	TrailerSum  uint32
	ChecksumSet ChecksumAlgo
}

// NewFramed parses the FIL header/trailer of buf. The caller is
// responsible for supplying exactly one page's worth of bytes.
func NewFramed(buf []byte, algo ChecksumAlgo) (*Framed, error) {
	if len(buf) < FileHeaderSize+FileTrailerSize {
		return nil, ErrTruncated
	}
	c := cursor.New(buf)

	f := &Framed{buf: buf, PageSize: len(buf), ChecksumSet: algo}

	var err error
	if v, e := c.ReadU32(); e != nil {
		err = e
	} else {
		f.Checksum = v
	}
	if v, e := c.ReadU32(); e == nil {
		f.PageNo = v
	} else if err == nil {
		err = e
	}
	if v, e := c.ReadU32(); e == nil {
		f.Prev = v
	} else if err == nil {
		err = e
	}
	if v, e := c.ReadU32(); e == nil {
		f.Next = v
	} else if err == nil {
		err = e
	}
	if v, e := c.ReadU64(); e == nil {
		f.LSN = v
	} else if err == nil {
		err = e
	}
	if v, e := c.ReadU16(); e == nil {
		f.PageType = Type(v)
	} else if err == nil {
		err = e
	}
	if v, e := c.ReadU64(); e == nil {
		f.FlushLSN = v
	} else if err == nil {
		err = e
	}
	if v, e := c.ReadU32(); e == nil {
		f.SpaceID = v
	} else if err == nil {
		err = e
	}
	if err != nil {
		return nil, errors.Wrap(err, "page: parsing FIL header")
	}

	tc := cursor.NewAt(buf, len(buf), cursor.Backward)
	if v, e := tc.ReadU32(); e == nil {
		f.TrailerSum = v
	} else {
		return nil, errors.Wrap(e, "page: parsing FIL trailer checksum")
	}
	if v, e := tc.ReadU32(); e == nil {
		f.TrailerLSN = v
	} else {
		return nil, errors.Wrap(e, "page: parsing FIL trailer LSN")
	}

	return f, nil
}

// Bytes returns the raw page buffer this view was parsed from.
func (f *Framed) Bytes() []byte { return f.buf }

// HasPrev reports whether the Prev pointer is present.
func (f *Framed) HasPrev() bool { return f.Prev != NilPageNumber }

// HasNext reports whether the Next pointer is present.
func (f *Framed) HasNext() bool { return f.Next != NilPageNumber }

// LSNConsistent checks the header LSN's low 32 bits against the
// trailer LSN field. A mismatch is not fatal (spec.md §4.C) — callers
// decide how to treat it.
func (f *Framed) LSNConsistent() bool {
	return uint32(f.LSN) == f.TrailerLSN
}

// ChecksumOK recomputes the page checksum using the configured
// algorithm and compares it against the stored header/trailer values.
// Never fatal; many legitimate dumps are checksum-stale (spec.md §7).
func (f *Framed) ChecksumOK() bool {
	switch f.ChecksumSet {
	case ChecksumNone:
		return true
	case ChecksumCRC32:
		computed := crc32.ChecksumIEEE(f.buf[4 : len(f.buf)-FileTrailerSize])
		return computed == f.Checksum && computed == f.TrailerSum
	default:
		computed := innodbFold(f.buf)
		return computed == f.Checksum
	}
}

// innodbFold reproduces the classic InnoDB "folded XOR" checksum: a
// rolling fold of the header region and the body region, each reduced
// to 32 bits and XORed together.
func innodbFold(buf []byte) uint32 {
	fold := func(b []byte) uint32 {
		var f uint32
		for _, by := range b {
			f = (f << 8) + uint32(by) + (f >> 24)
			f &= 0xFFFFFFFF
		}
		return f
	}
	headerPart := fold(buf[4 : FileHeaderSize-4])
	bodyPart := fold(buf[FileHeaderSize : len(buf)-FileTrailerSize])
	return headerPart ^ bodyPart
}
