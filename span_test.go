package rgoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanIsUnknown(t *testing.T) {
	assert.True(t, Span{}.IsUnknown())
	assert.True(t, UnknownSpan.IsUnknown())
	assert.False(t, Span{Line: 1, Column: 1}.IsUnknown())
}

func TestLineIndexAt(t *testing.T) {
	src := []byte("abc\ndef\nghi")
	li := NewLineIndex(src)

	assert.Equal(t, Span{Line: 1, Column: 1, Offset: 0}, li.At(0))
	assert.Equal(t, Span{Line: 1, Column: 4, Offset: 3}, li.At(3))
	assert.Equal(t, Span{Line: 2, Column: 1, Offset: 4}, li.At(4))
	assert.Equal(t, Span{Line: 3, Column: 3, Offset: 10}, li.At(10))
}

func TestLineIndexAtClampsOutOfRangeCursors(t *testing.T) {
	src := []byte("abc\ndef")
	li := NewLineIndex(src)

	assert.Equal(t, li.At(0), li.At(-5))
	assert.Equal(t, li.At(len(src)), li.At(1000))
}

func TestLineIndexAtOnEmptyInput(t *testing.T) {
	li := NewLineIndex(nil)
	assert.Equal(t, Span{Line: 1, Column: 1, Offset: 0}, li.At(0))
}
