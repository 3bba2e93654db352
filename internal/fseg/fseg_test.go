package fseg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MailG/innodb-ruby/internal/fseg"
	"github.com/MailG/innodb-ruby/internal/page"
	"github.com/MailG/innodb-ruby/internal/testfixture"
)

func fetcherOver(pages map[uint32][]byte) fseg.PageFetcher {
	return func(pageNo uint32) (page.Page, error) {
		buf, ok := pages[pageNo]
		if !ok {
			return nil, assertNotFoundErr(pageNo)
		}
		return page.NewFromBytes(buf, page.Options{ChecksumAlgo: page.ChecksumNone})
	}
}

type notFoundErr uint32

func (e notFoundErr) Error() string { return "page not found" }
func assertNotFoundErr(n uint32) error { return notFoundErr(n) }

func TestEachWalksXDESListForwardAndBackward(t *testing.T) {
	off0 := testfixture.XDESEntryOffset(0)
	off1 := testfixture.XDESEntryOffset(1)
	off2 := testfixture.XDESEntryOffset(2)
	_, node0 := testfixture.ListNodeAddr(4096, off0)
	_, node1 := testfixture.ListNodeAddr(4096, off1)
	_, node2 := testfixture.ListNodeAddr(4096, off2)

	specs := []testfixture.XDESSpec{
		{FSegID: 7, State: 4, PrevPage: page.NilPageNumber, NextPage: 4096, NextOff: node1},
		{FSegID: 7, State: 4, PrevPage: 4096, PrevOff: node0, NextPage: 4096, NextOff: node2},
		{FSegID: 7, State: 4, PrevPage: 4096, PrevOff: node1, NextPage: page.NilPageNumber},
	}
	buf := testfixture.XDESPageWithEntries(0, 4096, specs)
	pages := map[uint32][]byte{4096: buf}
	fetch := fetcherOver(pages)

	base := page.ListBaseNode{
		Length: 3,
		First:  page.Addr{Page: 4096, Offset: node0},
		Last:   page.Addr{Page: 4096, Offset: node2},
	}

	fwd, err := fseg.Each(base, fseg.DecodeXDES(fetch))
	require.NoError(t, err)
	require.Len(t, fwd, 3)
	assert.Equal(t, off0, fwd[0].Offset)
	assert.Equal(t, off1, fwd[1].Offset)
	assert.Equal(t, off2, fwd[2].Offset)

	rev, err := fseg.EachReverse(base, fseg.DecodeXDES(fetch))
	require.NoError(t, err)
	require.Len(t, rev, 3)
	assert.Equal(t, off2, rev[0].Offset)
	assert.Equal(t, off0, rev[2].Offset)
}

func TestEachDetectsLengthMismatch(t *testing.T) {
	off0 := testfixture.XDESEntryOffset(0)
	_, node0 := testfixture.ListNodeAddr(4096, off0)
	specs := []testfixture.XDESSpec{
		{FSegID: 7, State: 4, PrevPage: page.NilPageNumber, NextPage: page.NilPageNumber},
	}
	buf := testfixture.XDESPageWithEntries(0, 4096, specs)
	fetch := fetcherOver(map[uint32][]byte{4096: buf})

	base := page.ListBaseNode{
		Length: 2, // claims 2 but only 1 is linked
		First:  page.Addr{Page: 4096, Offset: node0},
		Last:   page.Addr{Page: 4096, Offset: node0},
	}
	_, err := fseg.Each(base, fseg.DecodeXDES(fetch))
	require.Error(t, err)
}

func TestFSegTotalPagesAndFillFactor(t *testing.T) {
	entry := page.FSegEntry{
		NotFullNUsed: 3,
		Free:         page.ListBaseNode{Length: 1},
		NotFull:      page.ListBaseNode{Length: 2},
		Full:         page.ListBaseNode{Length: 1},
	}
	for i := range entry.FragArray {
		entry.FragArray[i] = page.NilPageNumber
	}
	entry.FragArray[0] = 10
	entry.FragArray[1] = 11

	f := fseg.New(entry, nil)
	assert.EqualValues(t, 2+(1+2+1)*page.PagesPerExtent, f.TotalPages())
	assert.Greater(t, f.FillFactor(), 0.0)
}
