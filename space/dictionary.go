package space

import (
	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/cursor"
	"github.com/MailG/innodb-ruby/internal/page"
	"github.com/MailG/innodb-ruby/internal/record"
)

// System-space bootstrap page numbers (spec.md §4.J/§9): every InnoDB
// system tablespace carries TRX_SYS at page 5 and the data dictionary
// header at page 7.
const (
	TrxSysPageNumber       = 5
	DictionaryHeaderNumber = 7

	rsegSlotCount = 128
)

// RollbackSegmentSlot is one entry of the TRX_SYS rollback-segment
// directory: the (space, page) of a rollback segment header page, or
// the nil page number if the slot is unused.
type RollbackSegmentSlot struct {
	Index   int
	SpaceID uint32
	PageNo  uint32
}

// Unused reports whether this slot has no rollback segment assigned.
func (s RollbackSegmentSlot) Unused() bool { return s.PageNo == page.NilPageNumber }

// DoublewritePointer locates the doublewrite buffer's two extents. Its
// on-disk home is not contiguous with the rollback-segment slot array:
// real InnoDB fixes it near the very end of the page, at
// TRX_SYS_DOUBLEWRITE = UNIV_PAGE_SIZE-200 bytes into TRX_SYS (i.e.
// that many bytes past the FIL header), behind its own 10-byte fseg
// header.
type DoublewritePointer struct {
	MagicN     uint32
	Block1Page uint32
	Block2Page uint32
}

// Valid reports whether the stored magic number matches the expected
// doublewrite-buffer sentinel.
func (d DoublewritePointer) Valid() bool { return d.MagicN == doublewriteMagicN }

// doublewriteMagicN is the sentinel TRX_SYS_DOUBLEWRITE_MAGIC value
// stamped once the doublewrite buffer has been created.
const doublewriteMagicN = 536853855

// doublewriteFSegHeaderSize is TRX_SYS_DOUBLEWRITE's own inline fseg
// header, which precedes the magic/block1/block2 fields.
const doublewriteFSegHeaderSize = 10

// trxSysDoublewriteOffset is TRX_SYS_DOUBLEWRITE relative to the start
// of TRX_SYS (immediately after the FIL header), for a page of the
// given total size.
func trxSysDoublewriteOffset(pageSize int) int { return pageSize - 200 }

// TrxSys is the decoded TRX_SYS page: the transaction system header
// carrying the rollback-segment slot directory and the doublewrite
// buffer pointer (spec.md's Non-goals exclude undo/MVCC semantics;
// only the directory structure itself is in scope here, as it is what
// lets a reader locate rollback segment headers and doublewrite
// extents on disk).
type TrxSys struct {
	Segments    [rsegSlotCount]RollbackSegmentSlot
	Doublewrite DoublewritePointer
}

// ReadTrxSys decodes TRX_SYS from its page buffer.
func ReadTrxSys(p page.Page) (*TrxSys, error) {
	f := p.Framing()
	buf := f.Bytes()

	// TRX_SYS layout, immediately after the FIL header: an 8-byte
	// trx_id store, a 10-byte inline fseg header for the TRX_SYS
	// segment itself, then the rollback-segment slot array. The
	// doublewrite pointer lives far past this, near the end of the
	// page (see trxSysDoublewriteOffset).
	const trxIDStoreSize = 8
	const fsegHeaderSize = 10
	rsegArrayStart := page.FileHeaderSize + trxIDStoreSize + fsegHeaderSize

	c := cursor.NewAt(buf, rsegArrayStart, cursor.Forward)
	ts := &TrxSys{}
	for i := 0; i < rsegSlotCount; i++ {
		space, err := c.ReadU32()
		if err != nil {
			return nil, errors.Wrapf(err, "space: TRX_SYS rollback segment slot %d", i)
		}
		pageNo, err := c.ReadU32()
		if err != nil {
			return nil, errors.Wrapf(err, "space: TRX_SYS rollback segment slot %d", i)
		}
		ts.Segments[i] = RollbackSegmentSlot{Index: i, SpaceID: space, PageNo: pageNo}
	}

	dwOffset := page.FileHeaderSize + trxSysDoublewriteOffset(len(buf)) + doublewriteFSegHeaderSize
	dc := cursor.NewAt(buf, dwOffset, cursor.Forward)
	magic, err := dc.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "space: TRX_SYS doublewrite magic")
	}
	block1, err := dc.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "space: TRX_SYS doublewrite block1")
	}
	block2, err := dc.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "space: TRX_SYS doublewrite block2")
	}
	ts.Doublewrite = DoublewritePointer{MagicN: magic, Block1Page: block1, Block2Page: block2}
	return ts, nil
}

// TrxSys fetches and decodes the system space's TRX_SYS page.
func (s *Space) TrxSys() (*TrxSys, error) {
	p, err := s.Page(TrxSysPageNumber)
	if err != nil {
		return nil, err
	}
	return ReadTrxSys(p)
}

// DictionaryHeader is the decoded data dictionary header (page 7 of
// the system space): the next-id counters and the four bootstrap
// index root page numbers every other table definition is reachable
// from (spec.md §4.J, §9).
type DictionaryHeader struct {
	RowID      uint64
	TableID    uint64
	IndexID    uint64
	MaxSpaceID uint32

	SysTablesRoot  uint32
	SysColumnsRoot uint32
	SysIndexesRoot uint32
	SysFieldsRoot  uint32
}

func readDictionaryHeader(p page.Page) (*DictionaryHeader, error) {
	f := p.Framing()
	buf := f.Bytes()
	c := cursor.NewAt(buf, page.FileHeaderSize, cursor.Forward)

	h := &DictionaryHeader{}
	var err error
	if h.RowID, err = c.ReadU64(); err != nil {
		return nil, errors.Wrap(err, "space: dictionary header row_id")
	}
	if h.TableID, err = c.ReadU64(); err != nil {
		return nil, errors.Wrap(err, "space: dictionary header table_id")
	}
	if h.IndexID, err = c.ReadU64(); err != nil {
		return nil, errors.Wrap(err, "space: dictionary header index_id")
	}
	if h.MaxSpaceID, err = c.ReadU32(); err != nil {
		return nil, errors.Wrap(err, "space: dictionary header max_space_id")
	}
	if _, err = c.ReadU32(); err != nil { // unused mix-id slot
		return nil, errors.Wrap(err, "space: dictionary header reserved field")
	}
	if h.SysTablesRoot, err = c.ReadU32(); err != nil {
		return nil, errors.Wrap(err, "space: dictionary header SYS_TABLES root")
	}
	if h.SysColumnsRoot, err = c.ReadU32(); err != nil {
		return nil, errors.Wrap(err, "space: dictionary header SYS_COLUMNS root")
	}
	if h.SysIndexesRoot, err = c.ReadU32(); err != nil {
		return nil, errors.Wrap(err, "space: dictionary header SYS_INDEXES root")
	}
	if h.SysFieldsRoot, err = c.ReadU32(); err != nil {
		return nil, errors.Wrap(err, "space: dictionary header SYS_FIELDS root")
	}
	return h, nil
}

// DictionaryHeader fetches and decodes the system space's data
// dictionary header page.
func (s *Space) DictionaryHeader() (*DictionaryHeader, error) {
	if !s.SystemSpace() {
		return nil, errors.WithStack(&UsageError{Field: "space", Value: "not the system space"})
	}
	p, err := s.Page(DictionaryHeaderNumber)
	if err != nil {
		return nil, err
	}
	return readDictionaryHeader(p)
}

// Built-in describers for the four bootstrap data dictionary indexes.
// Column names and widths follow the classic SYS_* table definitions;
// every column here is part of the clustered index's key or row, never
// both, matching how record.Decode expects a Describer to partition
// them (spec.md §4.H, §6).
var (
	SysTablesDescriber = record.StaticDescriber{
		Key: []Column{
			{Name: "NAME", Type: record.TypeVarChar, MaxSize: 255},
		},
		Row: []Column{
			{Name: "ID", Type: record.TypeUint64},
			{Name: "N_COLS", Type: record.TypeUint32},
			{Name: "TYPE", Type: record.TypeUint32},
			{Name: "MIX_ID", Type: record.TypeUint64},
			{Name: "MIX_LEN", Type: record.TypeUint32},
			{Name: "CLUSTER_NAME", Type: record.TypeVarChar, MaxSize: 255, Nullable: true},
			{Name: "SPACE", Type: record.TypeUint32},
		},
	}

	SysColumnsDescriber = record.StaticDescriber{
		Key: []Column{
			{Name: "TABLE_ID", Type: record.TypeUint64},
			{Name: "POS", Type: record.TypeUint32},
		},
		Row: []Column{
			{Name: "NAME", Type: record.TypeVarChar, MaxSize: 255},
			{Name: "MTYPE", Type: record.TypeUint32},
			{Name: "PRTYPE", Type: record.TypeUint32},
			{Name: "LEN", Type: record.TypeUint32},
			{Name: "PREC", Type: record.TypeUint32},
		},
	}

	SysIndexesDescriber = record.StaticDescriber{
		Key: []Column{
			{Name: "TABLE_ID", Type: record.TypeUint64},
			{Name: "ID", Type: record.TypeUint64},
		},
		Row: []Column{
			{Name: "NAME", Type: record.TypeVarChar, MaxSize: 255},
			{Name: "N_FIELDS", Type: record.TypeUint32},
			{Name: "TYPE", Type: record.TypeUint32},
			{Name: "SPACE", Type: record.TypeUint32},
			{Name: "PAGE_NO", Type: record.TypeUint32},
		},
	}

	SysFieldsDescriber = record.StaticDescriber{
		Key: []Column{
			{Name: "INDEX_ID", Type: record.TypeUint64},
			{Name: "POS", Type: record.TypeUint32},
		},
		Row: []Column{
			{Name: "COL_NAME", Type: record.TypeVarChar, MaxSize: 255},
		},
	}
)

// Column is an alias of record.Column, kept local so the describer
// table above reads without a package-qualified field type on every
// line.
type Column = record.Column

// EachIndex walks the system space's data dictionary, decoding every
// record on the SYS_INDEXES root page and fetching the root page named
// by each row's page_no (spec.md §4.J: "each_index — system space: walk
// the data dictionary; else the caller supplies root page numbers
// directly"). fn receives the owning table_id, the index's own id, and
// that root as a *page.IndexPage; Space.Index opens a btree.Index over
// it. A row that fails to decode is logged as a warning and skipped,
// as is a row whose root page is not an INDEX page; neither aborts the
// walk.
func (s *Space) EachIndex(fn func(tableID, indexID uint64, ix *page.IndexPage) error) error {
	dict, err := s.DictionaryHeader()
	if err != nil {
		return err
	}
	root, err := s.Page(dict.SysIndexesRoot)
	if err != nil {
		return err
	}
	ip, ok := root.(*page.IndexPage)
	if !ok {
		return errors.WithStack(&CorruptionError{Msg: "SYS_INDEXES root is not an INDEX page"})
	}

	buf := ip.Bytes()
	return ip.EachRecord(func(raw page.RawRecord) error {
		dec, err := record.Decode(buf, raw, SysIndexesDescriber)
		if err == record.ErrSentinel {
			return nil
		}
		if err != nil {
			s.log.WithError(err).Warn("space: skipping malformed SYS_INDEXES row")
			return nil
		}
		tableID, indexID, pageNo, ok := sysIndexesRow(dec)
		if !ok {
			return nil
		}
		p, err := s.Page(pageNo)
		if err != nil {
			return err
		}
		target, ok := p.(*page.IndexPage)
		if !ok {
			return nil
		}
		return fn(tableID, indexID, target)
	})
}

// sysIndexesRow pulls the (table_id, index_id, page_no) triple out of
// a decoded SYS_INDEXES row, matching SysIndexesDescriber's column
// order.
func sysIndexesRow(dec *record.Decoded) (tableID, indexID uint64, pageNo uint32, ok bool) {
	if len(dec.Key) != 2 || len(dec.Row) != 5 {
		return 0, 0, 0, false
	}
	tableID, ok1 := dec.Key[0].Value.(uint64)
	indexID, ok2 := dec.Key[1].Value.(uint64)
	pageNo, ok3 := dec.Row[4].Value.(uint32)
	if !ok1 || !ok2 || !ok3 {
		return 0, 0, 0, false
	}
	return tableID, indexID, pageNo, true
}
