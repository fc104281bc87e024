package binio

import (
	"encoding/binary"
	"io"
	"math"
)

// TeeReader returns what it reads from R after writing the same bytes to W.
//
// A failed write to W fails the Read with an error wrapping ErrWriteFailure
// and reports no bytes read. Bytes already taken from R are not pushed back,
// so the failure is sticky: every later Read returns the same error.
type TeeReader struct {
	R io.Reader
	W io.Writer

	err error
}

func NewTeeReader(r io.Reader, w io.Writer) *TeeReader {
	return &TeeReader{R: r, W: w}
}

func (t *TeeReader) Read(p []byte) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	n, err := t.R.Read(p)
	if n > 0 {
		if werr := WriteFull(t.W, p[:n]); werr != nil {
			t.err = werr
			return 0, werr
		}
	}
	return n, err
}

// TeeBytes reads exactly n bytes from r, writes them to w and returns them.
func TeeBytes(r io.Reader, w io.Writer, n int) ([]byte, error) {
	b, err := ReadBytes(r, n)
	if err != nil {
		return nil, err
	}
	if err := WriteFull(w, b); err != nil {
		return nil, err
	}
	return b, nil
}

func teeFixed(r io.Reader, w io.Writer, width int) ([8]byte, error) {
	b, err := readFixed(r, width)
	if err != nil {
		return b, err
	}
	return b, WriteFull(w, b[:width])
}

func TeeU32(r io.Reader, w io.Writer) (uint32, error) {
	b, err := teeFixed(r, w, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:4]), nil
}

func TeeI32(r io.Reader, w io.Writer) (int32, error) {
	v, err := TeeU32(r, w)
	return int32(v), err
}

func TeeF32(r io.Reader, w io.Writer) (float32, error) {
	v, err := TeeU32(r, w)
	return math.Float32frombits(v), err
}

func TeeU64(r io.Reader, w io.Writer) (uint64, error) {
	b, err := teeFixed(r, w, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:8]), nil
}
