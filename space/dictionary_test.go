package space_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MailG/innodb-ruby/internal/page"
	"github.com/MailG/innodb-ruby/internal/testfixture"
	"github.com/MailG/innodb-ruby/space"
)

func fillerPage(pageNo uint32) []byte {
	return testfixture.NewPage(0, 0, pageNo, page.NilPageNumber, page.NilPageNumber).Buf
}

const trxSysDoublewriteMagicN = 536853855

func trxSysPage() []byte {
	p := testfixture.NewPage(7, 0, space.TrxSysPageNumber, page.NilPageNumber, page.NilPageNumber)
	const rsegArrayStart = 38 + 8 + 10
	const rsegSlotCount = 128
	for i := 0; i < rsegSlotCount; i++ {
		off := rsegArrayStart + i*8
		binary.BigEndian.PutUint32(p.Buf[off:off+4], page.NilPageNumber)
		binary.BigEndian.PutUint32(p.Buf[off+4:off+8], page.NilPageNumber)
	}
	binary.BigEndian.PutUint32(p.Buf[rsegArrayStart:rsegArrayStart+4], 0)    // space_id
	binary.BigEndian.PutUint32(p.Buf[rsegArrayStart+4:rsegArrayStart+8], 99) // page_no

	// TRX_SYS_DOUBLEWRITE sits at UNIV_PAGE_SIZE-200 bytes into TRX_SYS
	// (i.e. past the FIL header), behind its own 10-byte fseg header —
	// nowhere near the rollback-segment slot array above.
	const doublewriteFSegHeaderSize = 10
	dwOff := 38 + (len(p.Buf) - 200) + doublewriteFSegHeaderSize
	binary.BigEndian.PutUint32(p.Buf[dwOff:dwOff+4], trxSysDoublewriteMagicN)
	binary.BigEndian.PutUint32(p.Buf[dwOff+4:dwOff+8], 120)
	binary.BigEndian.PutUint32(p.Buf[dwOff+8:dwOff+12], 184)
	return p.Buf
}

func dictionaryHeaderPage() []byte {
	p := testfixture.NewPage(6, 0, space.DictionaryHeaderNumber, page.NilPageNumber, page.NilPageNumber)
	off := 38
	binary.BigEndian.PutUint64(p.Buf[off:off+8], 1000)    // row_id
	binary.BigEndian.PutUint64(p.Buf[off+8:off+16], 2000) // table_id
	binary.BigEndian.PutUint64(p.Buf[off+16:off+24], 3000) // index_id
	binary.BigEndian.PutUint32(p.Buf[off+24:off+28], 0)    // max_space_id
	binary.BigEndian.PutUint32(p.Buf[off+28:off+32], 0)    // reserved
	binary.BigEndian.PutUint32(p.Buf[off+32:off+36], 10)   // SYS_TABLES root
	binary.BigEndian.PutUint32(p.Buf[off+36:off+40], 11)   // SYS_COLUMNS root
	binary.BigEndian.PutUint32(p.Buf[off+40:off+44], 12)   // SYS_INDEXES root
	binary.BigEndian.PutUint32(p.Buf[off+44:off+48], 13)   // SYS_FIELDS root
	return p.Buf
}

func TestTrxSysDecodesRollbackSegmentSlot(t *testing.T) {
	pages := [][]byte{
		testfixture.FSPHeader(0, 8, 0),
		fillerPage(1), fillerPage(2), fillerPage(3), fillerPage(4),
		trxSysPage(),
		fillerPage(6), fillerPage(7),
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "ibdata1")
	var buf []byte
	for _, p := range pages {
		buf = append(buf, p...)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	sp, err := space.Open(path, space.WithChecksumAlgo(page.ChecksumNone))
	require.NoError(t, err)
	defer sp.Close()

	ts, err := sp.TrxSys()
	require.NoError(t, err)
	require.EqualValues(t, 99, ts.Segments[0].PageNo)
	require.False(t, ts.Segments[0].Unused())
	require.True(t, ts.Segments[1].Unused())

	require.True(t, ts.Doublewrite.Valid())
	require.EqualValues(t, 120, ts.Doublewrite.Block1Page)
	require.EqualValues(t, 184, ts.Doublewrite.Block2Page)
}

func TestDictionaryHeaderDecodesBootstrapRoots(t *testing.T) {
	pages := [][]byte{
		testfixture.FSPHeader(0, 8, 0),
		fillerPage(1), fillerPage(2), fillerPage(3), fillerPage(4),
		trxSysPage(),
		fillerPage(6),
		dictionaryHeaderPage(),
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "ibdata1")
	var buf []byte
	for _, p := range pages {
		buf = append(buf, p...)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	sp, err := space.Open(path, space.WithChecksumAlgo(page.ChecksumNone))
	require.NoError(t, err)
	defer sp.Close()

	dict, err := sp.DictionaryHeader()
	require.NoError(t, err)
	require.EqualValues(t, 10, dict.SysTablesRoot)
	require.EqualValues(t, 11, dict.SysColumnsRoot)
	require.EqualValues(t, 12, dict.SysIndexesRoot)
	require.EqualValues(t, 13, dict.SysFieldsRoot)
	require.EqualValues(t, 2000, dict.TableID)
}
