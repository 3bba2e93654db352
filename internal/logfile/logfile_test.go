package logfile_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MailG/innodb-ruby/internal/logfile"
)

func headerBlocks() []byte {
	return make([]byte, logfile.HeaderBlocks*logfile.BlockSize)
}

func emptyBlock(blockNumber uint32, checkpointNo uint32) []byte {
	b := make([]byte, logfile.BlockSize)
	binary.BigEndian.PutUint32(b[0:4], blockNumber)
	binary.BigEndian.PutUint16(b[4:6], 12) // data_length == header size => no record
	binary.BigEndian.PutUint16(b[6:8], 0)  // first_rec_group
	binary.BigEndian.PutUint32(b[8:12], checkpointNo)
	return b
}

func recordBlock(blockNumber uint32, space, pageNo uint32, recType uint8) []byte {
	b := make([]byte, logfile.BlockSize)
	const firstRecGroup = 12
	binary.BigEndian.PutUint32(b[0:4], blockNumber)
	binary.BigEndian.PutUint16(b[6:8], firstRecGroup)
	binary.BigEndian.PutUint32(b[8:12], 1)

	pos := firstRecGroup
	b[pos] = recType | 0x80 // single record
	pos++
	b[pos] = byte(space) // space_id < 0x80, single-byte compressed form
	pos++
	b[pos] = byte(pageNo)
	pos++
	binary.BigEndian.PutUint16(b[4:6], uint16(pos+2)) // data_length: header+payload, plausible non-12 value
	return b
}

func TestEmptyBlockYieldsNoRecord(t *testing.T) {
	data := append(headerBlocks(), emptyBlock(1, 5)...)
	r := logfile.NewReader(data)
	require.Equal(t, 1, r.BlockCount())

	blk, err := r.Block(0)
	require.NoError(t, err)
	assert.Nil(t, blk.Record)
	assert.EqualValues(t, 1, blk.Header.BlockNumber)
	assert.EqualValues(t, 5, blk.Header.CheckpointNo)
}

func TestRecordBlockDecodesSpaceAndPage(t *testing.T) {
	data := append(headerBlocks(), recordBlock(2, 7, 42, uint8(logfile.MLOGCompRecInsert))...)
	r := logfile.NewReader(data)
	blk, err := r.Block(0)
	require.NoError(t, err)
	require.NotNil(t, blk.Record)
	assert.EqualValues(t, 7, blk.Record.Space)
	assert.EqualValues(t, 42, blk.Record.Page)
	assert.True(t, blk.Record.Single)
	assert.Equal(t, logfile.MLOGCompRecInsert, blk.Record.Type)
}

func TestEachIteratesAllBlocks(t *testing.T) {
	data := append(headerBlocks(), emptyBlock(1, 0)...)
	data = append(data, emptyBlock(2, 0)...)
	r := logfile.NewReader(data)
	var count int
	err := r.Each(func(b *logfile.Block) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
