package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte span of a local output file.
type ByteRange struct {
	Start int64
	End   int64
}

func (b ByteRange) Length() int64 {
	return b.End - b.Start + 1
}

// Header formats the Content-Range value for a file of total bytes.
func (b ByteRange) Header(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", b.Start, b.End, total)
}

// ParseByteRange reads a Range request header against a file of size bytes.
// An empty header yields nil. Only the first span of a multi-range request is
// honoured.
func ParseByteRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	span, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrInvalidRange
	}
	if first, _, multi := strings.Cut(span, ","); multi {
		span = strings.TrimSpace(first)
	}
	lo, hi, ok := strings.Cut(span, "-")
	if !ok {
		return nil, ErrInvalidRange
	}

	var start, end int64
	switch {
	case lo == "":
		n, err := strconv.ParseInt(hi, 10, 64)
		if err != nil || n <= 0 {
			return nil, ErrInvalidRange
		}
		start = max(size-n, 0)
		end = size - 1
	default:
		var err error
		start, err = strconv.ParseInt(lo, 10, 64)
		if err != nil || start < 0 {
			return nil, ErrInvalidRange
		}
		end = size - 1
		if hi != "" {
			end, err = strconv.ParseInt(hi, 10, 64)
			if err != nil {
				return nil, ErrInvalidRange
			}
		}
	}

	if start > end || start >= size {
		return nil, ErrUnsatisfiable
	}
	return &ByteRange{Start: start, End: min(end, size-1)}, nil
}
