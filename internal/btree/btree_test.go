package btree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MailG/innodb-ruby/internal/btree"
	"github.com/MailG/innodb-ruby/internal/page"
	"github.com/MailG/innodb-ruby/internal/record"
	"github.com/MailG/innodb-ruby/internal/testfixture"
)

func describer() record.Describer {
	return record.StaticDescriber{
		Key: []record.Column{{Name: "id", Type: record.TypeUint32, MaxSize: 4}},
		Row: []record.Column{{Name: "a", Type: record.TypeUint32, MaxSize: 4}},
	}
}

func fetcherOver(pages map[uint32][]byte) btree.PageFetcher {
	return func(pageNo uint32) (page.Page, error) {
		buf, ok := pages[pageNo]
		if !ok {
			return nil, assertErr(pageNo)
		}
		return page.NewFromBytes(buf, page.Options{ChecksumAlgo: page.ChecksumNone})
	}
}

type notFound uint32

func (n notFound) Error() string { return "page not found" }
func assertErr(n uint32) error    { return notFound(n) }

func TestSingleRowLeafRoot(t *testing.T) {
	records := []testfixture.Record{{Key: []uint32{1}, Row: []uint32{1}}}
	buf := testfixture.BuildIndexPage(0, 3, testfixture.NilPage, testfixture.NilPage, 42, 0, true, records, true)
	pages := map[uint32][]byte{3: buf}

	ix, err := btree.Open(fetcherOver(pages), 3, describer())
	require.NoError(t, err)

	var leaves int
	var recs []*record.Decoded
	err = ix.Recurse(func(p *page.IndexPage, depth int) error {
		if p.Leaf() {
			leaves++
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, leaves)

	err = btree.EachRecord(ix.Root(), describer(), func(d *record.Decoded) error {
		recs = append(recs, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.EqualValues(t, 1, recs[0].Key[0].Value)
	assert.EqualValues(t, 1, recs[0].Row[0].Value)
}

func TestTwoLevelTreeLeafChainMatchesLevelZero(t *testing.T) {
	// Two leaves, chained via FIL next, each holding 2 rows; one root
	// internal page pointing at both.
	leaf1 := testfixture.BuildIndexPage(0, 10, testfixture.NilPage, 11, 99, 0, true,
		[]testfixture.Record{{Key: []uint32{1}, Row: []uint32{1}}, {Key: []uint32{2}, Row: []uint32{2}}}, false)
	leaf2 := testfixture.BuildIndexPage(0, 11, 10, testfixture.NilPage, 99, 0, true,
		[]testfixture.Record{{Key: []uint32{3}, Row: []uint32{3}}, {Key: []uint32{4}, Row: []uint32{4}}}, false)
	root := testfixture.BuildIndexPage(0, 9, testfixture.NilPage, testfixture.NilPage, 99, 1, false,
		[]testfixture.Record{{Key: []uint32{1}, ChildPage: 10}, {Key: []uint32{3}, ChildPage: 11}}, true)

	pages := map[uint32][]byte{9: root, 10: leaf1, 11: leaf2}
	ix, err := btree.Open(fetcherOver(pages), 9, describer())
	require.NoError(t, err)

	var level0Pages []uint32
	err = ix.EachPageAtLevel(0, func(p *page.IndexPage) error {
		level0Pages = append(level0Pages, p.PageNumber())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{10, 11}, level0Pages)

	var level1Pages []uint32
	err = ix.EachPageAtLevel(1, func(p *page.IndexPage) error {
		level1Pages = append(level1Pages, p.PageNumber())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{9}, level1Pages)

	var allKeys []uint32
	for _, pn := range level0Pages {
		p, _ := page.NewFromBytes(pages[pn], page.Options{ChecksumAlgo: page.ChecksumNone})
		ip := p.(*page.IndexPage)
		err = btree.EachRecord(ip, describer(), func(d *record.Decoded) error {
			allKeys = append(allKeys, d.Key[0].Value.(uint32))
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []uint32{1, 2, 3, 4}, allKeys)
}

func TestIndexIDMismatchStopsRecursion(t *testing.T) {
	leaf := testfixture.BuildIndexPage(0, 10, testfixture.NilPage, testfixture.NilPage, 1234 /* wrong id */, 0, true,
		[]testfixture.Record{{Key: []uint32{1}, Row: []uint32{1}}}, false)
	root := testfixture.BuildIndexPage(0, 9, testfixture.NilPage, testfixture.NilPage, 99, 1, false,
		[]testfixture.Record{{Key: []uint32{1}, ChildPage: 10}}, true)
	pages := map[uint32][]byte{9: root, 10: leaf}

	ix, err := btree.Open(fetcherOver(pages), 9, describer())
	require.NoError(t, err)

	err = ix.Recurse(nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, btree.ErrIndexIDMismatch)
}
