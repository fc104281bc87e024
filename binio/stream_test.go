package binio

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestPaddingRange(t *testing.T) {
	for _, align := range []uint64{1, 2, 4, 8, 16, 32, 64, 4096} {
		for pos := uint64(0); pos < 3*align+5; pos++ {
			pad := Padding(pos, align)
			if align > 1 {
				assert.Less(t, pad, align)
				assert.Equal(t, (align-pos%align)%align, pad)
			}
			assert.Zero(t, (pos+pad)%align, "pos=%d align=%d", pos, align)
			assert.Equal(t, pos+pad, AlignUp(pos, align))
		}
	}
	assert.Zero(t, Padding(17, 0))
}

func TestWriterPadAndReaderAlign(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	require.NoError(t, WriteU32(w, 1))
	require.NoError(t, WriteU64(w, 2))
	pad, err := w.Pad(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), pad)
	assert.Equal(t, uint64(32), w.Offset())
	pad, err = w.Pad(32)
	require.NoError(t, err)
	assert.Zero(t, pad)
	require.NoError(t, WriteU8(w, 9))
	assert.Equal(t, 33, buf.Len())
	assert.Equal(t, make([]byte, 20), buf.Bytes()[12:32])

	r := NewReader(bytes.NewReader(buf.Bytes()), 0)
	_, err = ReadU32(r)
	require.NoError(t, err)
	_, err = ReadU64(r)
	require.NoError(t, err)
	skipped, err := r.Align(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), skipped)
	v, err := ReadU8(r)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), v)
	assert.Equal(t, uint64(33), r.Offset())
}

func TestReaderStartOffset(t *testing.T) {
	r := NewReader(bytes.NewReader(make([]byte, 8)), 28)
	skipped, err := r.Align(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), skipped)
	assert.Equal(t, uint64(32), r.Offset())
}

func TestReaderAlignShort(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 0, 0}), 0)
	_, err := ReadU8(r)
	require.NoError(t, err)
	_, err = r.Align(8)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestWriteZerosLarge(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	require.NoError(t, w.WriteZeros(1300))
	assert.Equal(t, 1300, buf.Len())
	assert.Equal(t, uint64(1300), w.Offset())
}

func TestWriterPadFailure(t *testing.T) {
	w := NewWriter(errWriter{}, 3)
	_, err := w.Pad(8)
	require.ErrorIs(t, err, ErrWriteFailure)
}

func TestHasDataLeft(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte{1}))
	ok, err := HasDataLeft(br)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = br.ReadByte()
	require.NoError(t, err)
	ok, err = HasDataLeft(br)
	require.NoError(t, err)
	assert.False(t, ok)
}
