// Package logfile reads InnoDB redo-log files as a sequence of
// fixed 512-byte blocks and decodes the simplest log record fields
// (spec.md §3/§4.L): just enough to scan (type, space, page) triples.
package logfile

import (
	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/cursor"
)

// BlockSize is the fixed redo-log block size.
const BlockSize = 512

// HeaderBlocks is the number of blocks occupied by the log file
// header that precedes the first data block.
const HeaderBlocks = 4

const (
	blockHeaderSize  = 12
	blockTrailerSize = 4
)

// RecordType is the MLOG_* taxonomy's type byte (masked of the
// single-record flag). This core names only the handful relevant to
// identifying which page a record touches; unrecognized values are
// preserved numerically rather than rejected.
type RecordType uint8

const (
	MLOG1Byte                 RecordType = 1
	MLOG2Bytes                RecordType = 2
	MLOG4Bytes                RecordType = 4
	MLOG8Bytes                RecordType = 8
	MLOGRecInsert             RecordType = 9
	MLOGRecClustDeleteMark    RecordType = 10
	MLOGRecSecDeleteMark      RecordType = 11
	MLOGRecUpdateInPlace      RecordType = 13
	MLOGListEndDelete         RecordType = 14
	MLOGListStartDelete       RecordType = 15
	MLOGListEndCopyCreated    RecordType = 16
	MLOGPageReorganize        RecordType = 17
	MLOGPageCreate            RecordType = 18
	MLOGUndoInsert            RecordType = 19
	MLOGUndoEraseEnd          RecordType = 20
	MLOGUndoInit              RecordType = 21
	MLOGUndoHdrDiscard        RecordType = 22
	MLOGUndoHdrReuse          RecordType = 23
	MLOGUndoHdrCreate         RecordType = 24
	MLOGRecMinMark            RecordType = 25
	MLOGIBufBitmapInit        RecordType = 26
	MLOGInitFilePage          RecordType = 29
	MLOGWriteString           RecordType = 30
	MLOGMultiRecEnd           RecordType = 31
	MLOGDummyRecord           RecordType = 32
	MLOGFileCreate            RecordType = 33
	MLOGFileRename            RecordType = 34
	MLOGFileDelete            RecordType = 35
	MLOGCompRecInsert         RecordType = 38
	MLOGCompRecClustDeleteMark RecordType = 39
	MLOGCompRecUpdateInPlace  RecordType = 41
	MLOGCompPageCreate        RecordType = 44
	MLOGFileCreate2           RecordType = 62
	MLOGIndexLoad             RecordType = 63
)

// singleRecFlag marks a record group containing exactly one record.
const singleRecFlag = 0x80

// BlockHeader is a log block's 12-byte header (spec.md §3).
type BlockHeader struct {
	BlockNumber   uint32
	FlushFlag     bool
	DataLength    uint16
	FirstRecGroup uint16
	CheckpointNo  uint32
}

// Record is the minimal decoded log record: enough to say which page
// a log entry touches (spec.md §4.L).
type Record struct {
	Type   RecordType
	Single bool
	Space  uint32
	Page   uint32
}

// Block is one decoded log block plus, if present, the first record
// group's leading record.
type Block struct {
	Index  int // 0-based data block index, after the log file header
	Header BlockHeader
	Record *Record // nil when first_rec_group==0 or data_length==12
}

// Reader decodes log blocks from an in-memory buffer of an entire log
// file (or a file opened and read in by the caller — no streaming I/O
// is required at this block size).
type Reader struct {
	buf []byte
}

// NewReader wraps the raw bytes of a log file.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// BlockCount returns the number of data blocks (excluding the
// HeaderBlocks-block log file header).
func (r *Reader) BlockCount() int {
	total := len(r.buf) / BlockSize
	if total <= HeaderBlocks {
		return 0
	}
	return total - HeaderBlocks
}

// Block decodes the i'th data block (0-based, after the header).
func (r *Reader) Block(i int) (*Block, error) {
	if i < 0 || i >= r.BlockCount() {
		return nil, errors.Errorf("logfile: block index %d out of range (have %d)", i, r.BlockCount())
	}
	start := (HeaderBlocks + i) * BlockSize
	buf := r.buf[start : start+BlockSize]

	c := cursor.New(buf)
	rawBlockNo, err := c.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "logfile: block_number")
	}
	dataLen, err := c.ReadU16()
	if err != nil {
		return nil, errors.Wrap(err, "logfile: data_length")
	}
	firstRecGroup, err := c.ReadU16()
	if err != nil {
		return nil, errors.Wrap(err, "logfile: first_rec_group")
	}
	checkpointNo, err := c.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "logfile: checkpoint_no")
	}

	hdr := BlockHeader{
		BlockNumber:   rawBlockNo &^ 0x80000000,
		FlushFlag:     rawBlockNo&0x80000000 != 0,
		DataLength:    dataLen,
		FirstRecGroup: firstRecGroup,
		CheckpointNo:  checkpointNo,
	}

	b := &Block{Index: i, Header: hdr}

	if firstRecGroup == 0 || dataLen == blockHeaderSize {
		return b, nil
	}
	if int(firstRecGroup) >= len(buf)-blockTrailerSize {
		return nil, errors.Errorf("logfile: first_rec_group %d out of range", firstRecGroup)
	}

	rc := cursor.New(buf)
	rc.Seek(int(firstRecGroup))
	typeByte, err := rc.ReadU8()
	if err != nil {
		return nil, errors.Wrap(err, "logfile: record type byte")
	}
	single := typeByte&singleRecFlag != 0
	recType := RecordType(typeByte &^ singleRecFlag)

	space, err := rc.ReadICUint32()
	if err != nil {
		return nil, errors.Wrap(err, "logfile: record space_id")
	}
	pageNo, err := rc.ReadICUint32()
	if err != nil {
		return nil, errors.Wrap(err, "logfile: record page_no")
	}

	b.Record = &Record{Type: recType, Single: single, Space: space, Page: pageNo}
	return b, nil
}

// Each decodes every data block in order, stopping at the first error
// fn returns.
func (r *Reader) Each(fn func(*Block) error) error {
	for i := 0; i < r.BlockCount(); i++ {
		b, err := r.Block(i)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}
