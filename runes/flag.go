package runes

import (
	uint256 "github.com/holiman/uint256"
)

// Flag is a bit position in the value of TagFlags.
type Flag uint

const (
	FlagEtching  Flag = 0
	FlagTerms    Flag = 1
	FlagTurbo    Flag = 2
	FlagCenotaph Flag = 127
)

func (f Flag) mask() *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), uint(f))
}

// take clears the flag from the set and reports whether it was set.
func (f Flag) take(flags *uint256.Int) bool {
	mask := f.mask()
	set := !new(uint256.Int).And(flags, mask).IsZero()
	flags.And(flags, new(uint256.Int).Not(mask))
	return set
}
