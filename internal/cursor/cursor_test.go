package cursor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MailG/innodb-ruby/internal/cursor"
)

func TestReadUintWidths(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	c := cursor.New(buf)

	v8, err := c.ReadU8()
	require.NoError(t, err)
	assert.EqualValues(t, 0x01, v8)

	v16, err := c.ReadU16()
	require.NoError(t, err)
	assert.EqualValues(t, 0x0203, v16)

	v24, err := c.ReadU24()
	require.NoError(t, err)
	assert.EqualValues(t, 0x040506, v24)

	v16b, err := c.ReadU16()
	require.NoError(t, err)
	assert.EqualValues(t, 0x0708, v16b)
}

func TestReadUintOutOfBounds(t *testing.T) {
	c := cursor.New([]byte{0x01})
	_, err := c.ReadU32()
	require.Error(t, err)
	assert.ErrorIs(t, err, cursor.ErrOutOfBounds)
}

func TestReadIntSignExtends(t *testing.T) {
	c := cursor.New([]byte{0xFF, 0xFE})
	v, err := c.ReadI16()
	require.NoError(t, err)
	assert.EqualValues(t, -2, v)
}

func TestReadICUint32SingleByte(t *testing.T) {
	c := cursor.New([]byte{0x05})
	v, err := c.ReadICUint32()
	require.NoError(t, err)
	assert.EqualValues(t, 5, v)
}

func TestReadICUint32TwoByte(t *testing.T) {
	// top two bits 10 => 2-byte form, 15 value bits
	c := cursor.New([]byte{0x80 | 0x01, 0xF4})
	v, err := c.ReadICUint32()
	require.NoError(t, err)
	assert.EqualValues(t, 0x01F4, v)
}

func TestReadBitsAt(t *testing.T) {
	// 0b1011_0000
	c := cursor.New([]byte{0xB0})
	v, err := c.ReadBitsAt(0, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 0xB, v)
}

func TestBackwardCursor(t *testing.T) {
	buf := []byte{0x00, 0x00, 0xAA, 0xBB}
	c := cursor.NewAt(buf, 4, cursor.Backward)
	v, err := c.ReadU16()
	require.NoError(t, err)
	assert.EqualValues(t, 0xAABB, v)
	assert.Equal(t, 2, c.Pos())
}

func TestTrace(t *testing.T) {
	var events []cursor.Event
	c := cursor.New([]byte{0x00, 0x01}).WithTrace(func(e cursor.Event) {
		events = append(events, e)
	})
	pop := c.Push("field")
	_, err := c.ReadU16()
	require.NoError(t, err)
	pop()
	require.Len(t, events, 1)
	assert.Equal(t, "field", events[0].Name)
	assert.EqualValues(t, 1, events[0].Value)
}
