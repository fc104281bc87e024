// Package binio reads and writes fixed-width little-endian primitives and
// length-prefixed byte runs.
//
// Every read either fills its destination completely or fails with an error
// wrapping [ErrUnexpectedEOF]; short reads are never zero-padded. Every write
// either hands all bytes to the sink or fails with an error wrapping
// [ErrWriteFailure].
package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrUnexpectedEOF = errors.New("binio: unexpected EOF")
	ErrWriteFailure  = errors.New("binio: write failure")
	ErrTooLong       = errors.New("binio: length exceeds limit")
)

// ReadFull fills buf from r.
func ReadFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: need %d bytes: %w", ErrUnexpectedEOF, len(buf), err)
		}
		return err
	}
	return nil
}

// WriteFull writes all of p to w. A short count without an error from w is
// reported as io.ErrShortWrite.
func WriteFull(w io.Writer, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	return nil
}

// readFixed decodes exactly width bytes; width is at most 8.
func readFixed(r io.Reader, width int) ([8]byte, error) {
	var b [8]byte
	err := ReadFull(r, b[:width])
	return b, err
}

func ReadU8(r io.Reader) (uint8, error) {
	b, err := readFixed(r, 1)
	return b[0], err
}

func ReadI8(r io.Reader) (int8, error) {
	v, err := ReadU8(r)
	return int8(v), err
}

func ReadU16(r io.Reader) (uint16, error) {
	b, err := readFixed(r, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:2]), nil
}

func ReadI16(r io.Reader) (int16, error) {
	v, err := ReadU16(r)
	return int16(v), err
}

func ReadU32(r io.Reader) (uint32, error) {
	b, err := readFixed(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:4]), nil
}

func ReadI32(r io.Reader) (int32, error) {
	v, err := ReadU32(r)
	return int32(v), err
}

func ReadU64(r io.Reader) (uint64, error) {
	b, err := readFixed(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:8]), nil
}

func ReadI64(r io.Reader) (int64, error) {
	v, err := ReadU64(r)
	return int64(v), err
}

func ReadF32(r io.Reader) (float32, error) {
	v, err := ReadU32(r)
	return math.Float32frombits(v), err
}

func ReadF64(r io.Reader) (float64, error) {
	v, err := ReadU64(r)
	return math.Float64frombits(v), err
}

// ReadBool reads one byte; any non-zero value is true.
func ReadBool(r io.Reader) (bool, error) {
	v, err := ReadU8(r)
	return v != 0, err
}

// ReadBytes allocates and fills a buffer of exactly n bytes.
func ReadBytes(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("binio: invalid read length %d", n)
	}
	buf := make([]byte, n)
	if err := ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadStringMax reads a u64 length followed by that many bytes. Lengths above
// max fail with ErrTooLong before anything is allocated.
func ReadStringMax(r io.Reader, max uint64) (string, error) {
	n, err := ReadU64(r)
	if err != nil {
		return "", err
	}
	if n > max {
		return "", fmt.Errorf("%w: string length %d > %d", ErrTooLong, n, max)
	}
	b, err := ReadBytes(r, int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func WriteU8(w io.Writer, v uint8) error {
	return WriteFull(w, []byte{v})
}

func WriteI8(w io.Writer, v int8) error {
	return WriteU8(w, uint8(v))
}

func WriteU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return WriteFull(w, b[:])
}

func WriteI16(w io.Writer, v int16) error {
	return WriteU16(w, uint16(v))
}

func WriteU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return WriteFull(w, b[:])
}

func WriteI32(w io.Writer, v int32) error {
	return WriteU32(w, uint32(v))
}

func WriteU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return WriteFull(w, b[:])
}

func WriteI64(w io.Writer, v int64) error {
	return WriteU64(w, uint64(v))
}

func WriteF32(w io.Writer, v float32) error {
	return WriteU32(w, math.Float32bits(v))
}

func WriteF64(w io.Writer, v float64) error {
	return WriteU64(w, math.Float64bits(v))
}

func WriteBool(w io.Writer, v bool) error {
	if v {
		return WriteU8(w, 1)
	}
	return WriteU8(w, 0)
}

// WriteString writes a u64 length followed by the bytes of s.
func WriteString(w io.Writer, s string) error {
	if err := WriteU64(w, uint64(len(s))); err != nil {
		return err
	}
	return WriteFull(w, []byte(s))
}
