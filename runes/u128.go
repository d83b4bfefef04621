package runes

import (
	uint256 "github.com/holiman/uint256"
)

var maxU128 = uint256.MustFromHex("0xffffffffffffffffffffffffffffffff")

// MaxU128 returns the largest value a protocol integer may take.
func MaxU128() *uint256.Int {
	return new(uint256.Int).Set(maxU128)
}

// FitsU128 reports whether v is a valid protocol integer.
func FitsU128(v *uint256.Int) bool {
	return v.BitLen() <= 128
}

// CheckedAdd returns a+b, or false if the sum exceeds 128 bits.
func CheckedAdd(a, b *uint256.Int) (*uint256.Int, bool) {
	sum := new(uint256.Int).Add(a, b)
	if sum.BitLen() > 128 {
		return nil, false
	}
	return sum, true
}

// CheckedMul returns a*b, or false if the product exceeds 128 bits.
func CheckedMul(a, b *uint256.Int) (*uint256.Int, bool) {
	p, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow || p.BitLen() > 128 {
		return nil, false
	}
	return p, true
}
