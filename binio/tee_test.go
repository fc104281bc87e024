package binio

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeeBytesMirrors(t *testing.T) {
	for _, n := range []int{0, 1, 4, 4096} {
		src := make([]byte, n)
		for i := range src {
			src[i] = byte(i*7 + 1)
		}
		var sink bytes.Buffer
		got, err := TeeBytes(bytes.NewReader(src), &sink, n)
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, src, got)
		assert.Equal(t, src, sink.Bytes()[:n])
		assert.Equal(t, n, sink.Len())
	}
}

func TestTeeReaderMirrors(t *testing.T) {
	for _, n := range []int{0, 1, 4, 4096} {
		src := bytes.Repeat([]byte{0x5a, 0xa5}, n/2+1)[:n]
		var sink bytes.Buffer
		tr := NewTeeReader(bytes.NewReader(src), &sink)
		got, err := io.ReadAll(tr)
		require.NoError(t, err)
		assert.Equal(t, src, got)
		assert.Equal(t, len(src), sink.Len())
		assert.True(t, bytes.Equal(src, sink.Bytes()))
	}
}

func TestTeePrimitives(t *testing.T) {
	var src bytes.Buffer
	require.NoError(t, WriteU32(&src, 0xCAFEBABE))
	require.NoError(t, WriteI32(&src, -42))
	require.NoError(t, WriteF32(&src, 2.25))
	require.NoError(t, WriteU64(&src, 1<<40))
	want := append([]byte(nil), src.Bytes()...)

	var sink bytes.Buffer
	u, err := TeeU32(&src, &sink)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEBABE), u)
	i, err := TeeI32(&src, &sink)
	require.NoError(t, err)
	assert.Equal(t, int32(-42), i)
	f, err := TeeF32(&src, &sink)
	require.NoError(t, err)
	assert.Equal(t, float32(2.25), f)
	u64, err := TeeU64(&src, &sink)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u64)
	assert.Equal(t, want, sink.Bytes())
}

func TestTeeWriteFailure(t *testing.T) {
	tr := NewTeeReader(bytes.NewReader([]byte{1, 2, 3, 4}), errWriter{})
	_, err := ReadU32(tr)
	require.ErrorIs(t, err, ErrWriteFailure)

	_, err = TeeU32(bytes.NewReader([]byte{1, 2, 3, 4}), errWriter{})
	require.ErrorIs(t, err, ErrWriteFailure)

	_, err = TeeBytes(bytes.NewReader([]byte{1, 2}), errWriter{}, 2)
	require.ErrorIs(t, err, ErrWriteFailure)
}

func TestTeeShortRead(t *testing.T) {
	var sink bytes.Buffer
	_, err := TeeU64(bytes.NewReader([]byte{1, 2, 3}), &sink)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
	assert.Zero(t, sink.Len())
}
