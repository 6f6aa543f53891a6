package backend

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidContentRange = errors.New("invalid content-range format")
	ErrRangeMismatch       = errors.New("content-range does not match requested offset")
)

// ContentRange is a parsed "Content-Range: bytes start-end/total" header.
// Total is -1 when the server sent "*".
type ContentRange struct {
	Start int64
	End   int64
	Total int64
}

func (r ContentRange) ContentLength() int64 {
	return r.End - r.Start + 1
}

// RangeFrom is the Range request header that resumes at offset.
func RangeFrom(offset int64) string {
	return fmt.Sprintf("bytes=%d-", offset)
}

func ParseContentRange(header string) (*ContentRange, error) {
	if !strings.HasPrefix(header, "bytes ") {
		return nil, ErrInvalidContentRange
	}

	span := strings.TrimSpace(strings.TrimPrefix(header, "bytes "))
	slash := strings.Index(span, "/")
	if slash == -1 {
		return nil, ErrInvalidContentRange
	}

	rangePart, totalPart := span[:slash], span[slash+1:]

	total := int64(-1)
	if totalPart != "*" {
		t, err := strconv.ParseInt(totalPart, 10, 64)
		if err != nil || t < 0 {
			return nil, ErrInvalidContentRange
		}
		total = t
	}

	parts := strings.Split(rangePart, "-")
	if len(parts) != 2 {
		return nil, ErrInvalidContentRange
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return nil, ErrInvalidContentRange
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return nil, ErrInvalidContentRange
	}
	if total >= 0 && end >= total {
		return nil, ErrInvalidContentRange
	}

	return &ContentRange{Start: start, End: end, Total: total}, nil
}
