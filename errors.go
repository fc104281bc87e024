package ggmf

import (
	"errors"

	"github.com/logicossoftware/go-ggmf/binio"
)

var (
	ErrUnexpectedEOF      = binio.ErrUnexpectedEOF
	ErrWriteFailure       = binio.ErrWriteFailure
	ErrBadMagic           = errors.New("ggmf: bad magic")
	ErrUnsupportedVersion = errors.New("ggmf: unsupported version")
	ErrInvalidHeader      = errors.New("ggmf: invalid fixed header")
	ErrMalformedSection   = errors.New("ggmf: malformed section")
	ErrInvalidPayload     = errors.New("ggmf: invalid payload")
	ErrTruncatedFile      = errors.New("ggmf: truncated file")
	ErrSizeMismatch       = errors.New("ggmf: size mismatch")
	ErrNotFound           = errors.New("ggmf: entry not found")
	ErrLimitExceeded      = errors.New("ggmf: limit exceeded")
	ErrValidation         = errors.New("ggmf: validation failed")
	ErrChecksumMismatch   = errors.New("ggmf: checksum mismatch")
	ErrNoChecksums        = errors.New("ggmf: file has no checksums")
)
