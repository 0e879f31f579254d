package rgoc

import "sort"

// Span marks a location in the source for diagnostics. The zero value is
// the "unknown" span used when no better location is available.
type Span struct {
	Line   int
	Column int
	Offset int
}

// UnknownSpan is the all-zero span used for synthesized nodes with no
// source location of their own.
var UnknownSpan = Span{}

func (s Span) IsUnknown() bool {
	return s == UnknownSpan
}

// LineIndex converts byte offsets into 1-indexed (line, column) pairs.
//
// It records the starting byte offset of every line once, up front, then
// answers each lookup with a binary search instead of rescanning from the
// start of the file.
type LineIndex struct {
	input     []byte
	lineStart []int
}

func NewLineIndex(input []byte) *LineIndex {
	lineStart := make([]int, 1, 64)
	lineStart[0] = 0
	for i, b := range input {
		if b == '\n' {
			lineStart = append(lineStart, i+1)
		}
	}
	return &LineIndex{input: input, lineStart: lineStart}
}

// At returns the Span for a byte offset, filling in Line and Column;
// Offset is always the requested cursor.
func (li *LineIndex) At(cursor int) Span {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(li.input) {
		cursor = len(li.input)
	}

	lineIdx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > cursor
	}) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}

	lineStart := li.lineStart[lineIdx]
	col := 1
	for _, b := range li.input[lineStart:cursor] {
		// source is single-byte-token ASCII-oriented; count bytes as columns,
		// except continuation bytes of multi-byte UTF-8 sequences.
		if b&0xC0 != 0x80 {
			col++
		}
	}

	return Span{Line: lineIdx + 1, Column: col, Offset: cursor}
}
