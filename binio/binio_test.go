package binio

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestPrimitiveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteU8(&buf, 0xAB))
	require.NoError(t, WriteI8(&buf, -3))
	require.NoError(t, WriteU16(&buf, 0xBEEF))
	require.NoError(t, WriteI16(&buf, -1234))
	require.NoError(t, WriteU32(&buf, 0xDEADBEEF))
	require.NoError(t, WriteI32(&buf, -123456))
	require.NoError(t, WriteU64(&buf, math.MaxUint64-7))
	require.NoError(t, WriteI64(&buf, math.MinInt64+9))
	require.NoError(t, WriteF32(&buf, 3.5))
	require.NoError(t, WriteF64(&buf, -0.125))
	require.NoError(t, WriteBool(&buf, true))
	require.NoError(t, WriteString(&buf, "tok.model"))

	u8, err := ReadU8(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), u8)
	i8, err := ReadI8(&buf)
	require.NoError(t, err)
	assert.Equal(t, int8(-3), i8)
	u16, err := ReadU16(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), u16)
	i16, err := ReadI16(&buf)
	require.NoError(t, err)
	assert.Equal(t, int16(-1234), i16)
	u32, err := ReadU32(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)
	i32, err := ReadI32(&buf)
	require.NoError(t, err)
	assert.Equal(t, int32(-123456), i32)
	u64, err := ReadU64(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-7), u64)
	i64, err := ReadI64(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64+9), i64)
	f32, err := ReadF32(&buf)
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f32)
	f64, err := ReadF64(&buf)
	require.NoError(t, err)
	assert.Equal(t, -0.125, f64)
	b, err := ReadBool(&buf)
	require.NoError(t, err)
	assert.True(t, b)
	s, err := ReadStringMax(&buf, 64)
	require.NoError(t, err)
	assert.Equal(t, "tok.model", s)
	assert.Zero(t, buf.Len())
}

func TestLittleEndianLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteU32(&buf, 0x01020304))
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf.Bytes())

	buf.Reset()
	require.NoError(t, WriteF32(&buf, 1.0))
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, buf.Bytes())
}

func TestShortReadsFail(t *testing.T) {
	_, err := ReadU32(bytes.NewReader([]byte{1, 2, 3}))
	require.ErrorIs(t, err, ErrUnexpectedEOF)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadU64(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrUnexpectedEOF)

	_, err = ReadBytes(bytes.NewReader([]byte("abc")), 4)
	require.ErrorIs(t, err, ErrUnexpectedEOF)

	_, err = ReadBytes(bytes.NewReader(nil), -1)
	require.Error(t, err)

	got, err := ReadBytes(bytes.NewReader(nil), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadErrorPassesThrough(t *testing.T) {
	_, err := ReadU32(errReader{})
	require.ErrorIs(t, err, io.ErrClosedPipe)
	assert.False(t, errors.Is(err, ErrUnexpectedEOF))
}

func TestReadStringMaxRejectsLongLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteString(&buf, "abcdef"))
	_, err := ReadStringMax(&buf, 5)
	require.ErrorIs(t, err, ErrTooLong)
}

func TestWriteFailures(t *testing.T) {
	err := WriteU32(shortWriter{}, 7)
	require.ErrorIs(t, err, ErrWriteFailure)
	require.ErrorIs(t, err, io.ErrShortWrite)

	err = WriteU64(errWriter{}, 7)
	require.ErrorIs(t, err, ErrWriteFailure)
	require.ErrorIs(t, err, io.ErrClosedPipe)

	require.NoError(t, WriteFull(errWriter{}, nil))
}
