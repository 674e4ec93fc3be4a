package proxy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RangeOutcome classifies a Range header against a known resource size.
type RangeOutcome int

const (
	// RangeNone means serve the full resource: header absent or malformed.
	RangeNone RangeOutcome = iota
	// RangeValid means the returned ByteRange is a satisfiable window.
	RangeValid
	// RangeUnsatisfiable means answer 416 with Content-Range: bytes */size.
	RangeUnsatisfiable
)

// ByteRange is an inclusive byte window: 0 <= Start <= End < size.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes in the window.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range header value for a 206 response.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// UnsatisfiedContentRange renders the Content-Range header value for a 416 response.
func UnsatisfiedContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

var rangePattern = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

// ParseRange 解析单段 Range 头。多段、非 bytes 单位或格式错误均按无 Range 处理。
func ParseRange(header string, size int64) (ByteRange, RangeOutcome) {
	header = strings.TrimSpace(header)
	if header == "" {
		return ByteRange{}, RangeNone
	}
	match := rangePattern.FindStringSubmatch(header)
	if match == nil {
		return ByteRange{}, RangeNone
	}
	rawStart, rawEnd := match[1], match[2]
	if rawStart == "" && rawEnd == "" {
		return ByteRange{}, RangeNone
	}

	var start, end int64
	switch {
	case rawStart == "":
		// bytes=-N：最后 N 个字节。
		suffix, err := strconv.ParseInt(rawEnd, 10, 64)
		if err != nil {
			return ByteRange{}, RangeNone
		}
		start = size - suffix
		if start < 0 {
			start = 0
		}
		end = size - 1
	default:
		parsed, err := strconv.ParseInt(rawStart, 10, 64)
		if err != nil {
			return ByteRange{}, RangeNone
		}
		start = parsed
		end = size - 1
		if rawEnd != "" {
			parsedEnd, err := strconv.ParseInt(rawEnd, 10, 64)
			if err != nil {
				return ByteRange{}, RangeNone
			}
			if parsedEnd < end {
				end = parsedEnd
			}
		}
	}

	if start < 0 || start > end || start >= size {
		return ByteRange{}, RangeUnsatisfiable
	}
	return ByteRange{Start: start, End: end}, RangeValid
}
