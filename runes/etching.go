package runes

import (
	uint256 "github.com/holiman/uint256"
)

// The most decimal places an etching may declare.
const MaxDivisibility uint8 = 38

// Etching creates a new rune. Every field except Turbo is optional;
// an etching with no name is assigned a reserved one.
type Etching struct {
	Divisibility *uint8
	Premine      *uint256.Int
	Rune         *Rune
	Spacers      *uint32
	Symbol       *rune
	Terms        *Terms
	Turbo        bool
}

// Terms open a mint. Absent bounds leave that side of the mint window
// unconstrained.
type Terms struct {
	Amount      *uint256.Int
	Cap         *uint256.Int
	HeightStart *uint64
	HeightEnd   *uint64
	OffsetStart *uint64
	OffsetEnd   *uint64
}

// Supply returns premine + cap*amount, or false on overflow. A
// runestone whose etching overflows is a cenotaph.
func (e *Etching) Supply() (*uint256.Int, bool) {
	premine := uint256.NewInt(0)
	if e.Premine != nil {
		premine = e.Premine
	}
	cap_ := uint256.NewInt(0)
	amount := uint256.NewInt(0)
	if e.Terms != nil {
		if e.Terms.Cap != nil {
			cap_ = e.Terms.Cap
		}
		if e.Terms.Amount != nil {
			amount = e.Terms.Amount
		}
	}
	minted, ok := CheckedMul(cap_, amount)
	if !ok {
		return nil, false
	}
	return CheckedAdd(premine, minted)
}
