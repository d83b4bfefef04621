package runes

import (
	"fmt"
	"strings"

	uint256 "github.com/holiman/uint256"
)

// The first block height of the runes protocol.
const RunesStartHeight uint = 840000

// Name unlocking runs for one halving epoch after activation.
const (
	unlockStart    uint64 = 840000
	unlockEnd      uint64 = 1050000
	unlockInterval uint64 = 17500
)

const maxSpacers uint32 = 0b00000111_11111111_11111111_11111111

// Rune is a token name encoded as a modified base-26 integer
// (A=0, B=1, ..., Z=25, AA=26). The value fits in 128 bits.
type Rune struct {
	Value uint256.Int
}

var firstReservedRune = uint256.MustFromDecimal("6402364363415443603228541259936211926")

// Minimum name value unlocked per name length. steps[n] is the value
// of the shortest n-letter name.
var nameSteps = [...]uint64{
	0,
	26,
	702,
	18278,
	475254,
	12356630,
	321272406,
	8353082582,
	217180147158,
	5646683826134,
	146813779479510,
	3817158266467286,
	99246114928149462,
	2580398988131886038,
}

func NewRuneFromString(s string) (Rune, error) {
	var r Rune
	value := new(uint256.Int)
	for i, c := range s {
		if c < 'A' || c > 'Z' {
			return r, fmt.Errorf("invalid character %q in rune name", c)
		}
		if i > 0 {
			value.AddUint64(value, 1)
		}
		value.Mul(value, uint256.NewInt(26))
		value.AddUint64(value, uint64(c-'A'))
		if value.BitLen() > 128 {
			return r, fmt.Errorf("rune name %q overflows", s)
		}
	}
	r.Value = *value
	return r, nil
}

func (r Rune) String() string {
	n := new(uint256.Int).Set(&r.Value)
	if n.Eq(MaxU128()) {
		return "BCGDENLQRQWDSLRUGSNLBTMFIJAV"
	}
	n.AddUint64(n, 1)
	var b []byte
	base := uint256.NewInt(26)
	for !n.IsZero() {
		n.SubUint64(n, 1)
		rem := new(uint256.Int)
		n.DivMod(n, base, rem)
		b = append(b, byte('A'+rem.Uint64()))
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// Reserved derives the name automatically allocated to an etching that
// declares none: firstReserved + (block << 32 | tx).
func Reserved(block uint64, tx uint32) Rune {
	v := new(uint256.Int).Lsh(uint256.NewInt(block), 32)
	v.Or(v, uint256.NewInt(uint64(tx)))
	v.Add(v, firstReservedRune)
	return Rune{Value: *v}
}

func (r Rune) IsReserved() bool {
	return !r.Value.Lt(firstReservedRune)
}

// MinimumAt returns the smallest allocatable name value at the given
// height. Shorter names unlock gradually over the first halving epoch
// after activation, interpolated block by block.
func MinimumAt(height uint64) Rune {
	offset := height + 1
	if offset < unlockStart {
		return Rune{Value: *uint256.NewInt(nameSteps[12])}
	}
	if offset >= unlockEnd {
		return Rune{Value: *uint256.NewInt(0)}
	}
	progress := offset - unlockStart
	length := 12 - progress/unlockInterval
	end := uint256.NewInt(nameSteps[length-1])
	start := uint256.NewInt(nameSteps[length])
	remainder := uint256.NewInt(progress % unlockInterval)
	span := new(uint256.Int).Sub(start, end)
	span.Mul(span, remainder)
	span.Div(span, uint256.NewInt(unlockInterval))
	return Rune{Value: *new(uint256.Int).Sub(start, span)}
}

// SpacedRune couples a name with its display spacers, one bit per gap
// between characters.
type SpacedRune struct {
	Rune    Rune
	Spacers uint32
}

func (sr SpacedRune) String() string {
	name := sr.Rune.String()
	var b strings.Builder
	for i, c := range name {
		b.WriteRune(c)
		if i < len(name)-1 && sr.Spacers&(1<<uint(i)) != 0 {
			b.WriteRune('•')
		}
	}
	return b.String()
}

func NewSpacedRuneFromString(s string) (SpacedRune, error) {
	var spacers uint32
	var letters strings.Builder
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
			letters.WriteRune(c)
		case c == '•' || c == '.':
			if letters.Len() == 0 {
				return SpacedRune{}, fmt.Errorf("leading spacer")
			}
			bit := uint32(1) << uint(letters.Len()-1)
			if spacers&bit != 0 {
				return SpacedRune{}, fmt.Errorf("double spacer")
			}
			spacers |= bit
		default:
			return SpacedRune{}, fmt.Errorf("invalid character %q in spaced rune", c)
		}
	}
	if spacers > maxSpacers {
		return SpacedRune{}, fmt.Errorf("too many spacers")
	}
	if letters.Len() > 0 && spacers>>(letters.Len()-1) != 0 {
		return SpacedRune{}, fmt.Errorf("trailing spacer")
	}
	r, err := NewRuneFromString(letters.String())
	if err != nil {
		return SpacedRune{}, err
	}
	return SpacedRune{Rune: r, Spacers: spacers}, nil
}
