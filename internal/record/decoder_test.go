package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestDecodeLeafRecords(t *testing.T) {
	records := []testfixture.Record{
		{Key: []uint32{1}, Row: []uint32{10}},
		{Key: []uint32{2}, Row: []uint32{20}, Deleted: true},
	}
	buf := testfixture.BuildIndexPage(0, 3, testfixture.NilPage, testfixture.NilPage, 1, 0, true, records, true)
	p, err := page.NewFromBytes(buf, page.Options{ChecksumAlgo: page.ChecksumNone})
	require.NoError(t, err)
	idx := p.(*page.IndexPage)

	var decoded []*record.Decoded
	err = idx.EachRecord(func(r page.RawRecord) error {
		d, err := record.Decode(buf, r, describer())
		if err == record.ErrSentinel {
			return nil
		}
		if err != nil {
			return err
		}
		decoded = append(decoded, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	assert.EqualValues(t, uint32(1), decoded[0].Key[0].Value)
	assert.EqualValues(t, uint32(10), decoded[0].Row[0].Value)
	assert.False(t, decoded[0].Deleted)

	assert.EqualValues(t, uint32(2), decoded[1].Key[0].Value)
	assert.True(t, decoded[1].Deleted)
}

func TestDecodeNodePointerRecord(t *testing.T) {
	records := []testfixture.Record{
		{Key: []uint32{100}, ChildPage: 7},
	}
	buf := testfixture.BuildIndexPage(0, 4, testfixture.NilPage, testfixture.NilPage, 1, 1, false, records, true)
	p, err := page.NewFromBytes(buf, page.Options{ChecksumAlgo: page.ChecksumNone})
	require.NoError(t, err)
	idx := p.(*page.IndexPage)

	var found *record.Decoded
	err = idx.EachRecord(func(r page.RawRecord) error {
		d, err := record.Decode(buf, r, describer())
		if err == record.ErrSentinel {
			return nil
		}
		if err != nil {
			return err
		}
		found = d
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.HasChild)
	assert.EqualValues(t, 7, found.ChildPageNumber)
	assert.Empty(t, found.Row)
}

func TestSentinelRecordsRejected(t *testing.T) {
	buf := testfixture.EmptyIndexPage(0, 3, 1, 0)
	p, err := page.NewFromBytes(buf, page.Options{ChecksumAlgo: page.ChecksumNone})
	require.NoError(t, err)
	idx := p.(*page.IndexPage)

	err = idx.EachRecord(func(r page.RawRecord) error {
		_, derr := record.Decode(buf, r, describer())
		assert.ErrorIs(t, derr, record.ErrSentinel)
		return nil
	})
	require.NoError(t, err)
}
