package runes

import (
	uint256 "github.com/holiman/uint256"
)

// Tag prefixes a run of values in a runestone message. Even tags must
// be understood; unknown odd tags are ignored.
type Tag uint64

const (
	TagBody         Tag = 0
	TagFlags        Tag = 2
	TagRune         Tag = 4
	TagPremine      Tag = 6
	TagCap          Tag = 8
	TagAmount       Tag = 10
	TagHeightStart  Tag = 12
	TagHeightEnd    Tag = 14
	TagOffsetStart  Tag = 16
	TagOffsetEnd    Tag = 18
	TagMint         Tag = 20
	TagPointer      Tag = 22
	TagCenotaph     Tag = 126
	TagDivisibility Tag = 1
	TagSpacers      Tag = 3
	TagSymbol       Tag = 5
	TagNop          Tag = 127
)

type fields map[Tag][]*uint256.Int

// take consumes the first n values of a tag if the validator accepts
// them. On rejection the values stay in place, so an even tag with a
// malformed value still produces a cenotaph.
func tagTake[T any](f fields, tag Tag, n int, with func([]*uint256.Int) (T, bool)) (T, bool) {
	var zero T
	values := f[tag]
	if len(values) < n {
		return zero, false
	}
	result, ok := with(values[:n])
	if !ok {
		return zero, false
	}
	if len(values) == n {
		delete(f, tag)
	} else {
		f[tag] = values[n:]
	}
	return result, true
}

func takeValue(f fields, tag Tag) (*uint256.Int, bool) {
	return tagTake(f, tag, 1, func(values []*uint256.Int) (*uint256.Int, bool) {
		return values[0], true
	})
}

func takeUint64(f fields, tag Tag) (uint64, bool) {
	return tagTake(f, tag, 1, func(values []*uint256.Int) (uint64, bool) {
		if !values[0].IsUint64() {
			return 0, false
		}
		return values[0].Uint64(), true
	})
}

func takeUint32(f fields, tag Tag) (uint32, bool) {
	return tagTake(f, tag, 1, func(values []*uint256.Int) (uint32, bool) {
		if !values[0].IsUint64() || values[0].Uint64() > uint64(^uint32(0)) {
			return 0, false
		}
		return uint32(values[0].Uint64()), true
	})
}
