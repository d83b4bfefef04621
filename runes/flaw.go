package runes

// Flaw marks why a message is a cenotaph. Every malformation decodes
// to exactly one of these rather than aborting the decode.
type Flaw uint32

const (
	FlawEdictOutput Flaw = iota
	FlawEdictRuneId
	FlawInvalidScript
	FlawOpcode
	FlawSupplyOverflow
	FlawTrailingIntegers
	FlawTruncatedField
	FlawUnrecognizedEvenTag
	FlawUnrecognizedFlag
	FlawVarint
)

func (f Flaw) String() string {
	switch f {
	case FlawEdictOutput:
		return "edict output greater than transaction output count"
	case FlawEdictRuneId:
		return "invalid rune ID in edict"
	case FlawInvalidScript:
		return "invalid script in OP_RETURN"
	case FlawOpcode:
		return "non-pushdata opcode in OP_RETURN"
	case FlawSupplyOverflow:
		return "supply overflows u128"
	case FlawTrailingIntegers:
		return "trailing integers in body"
	case FlawTruncatedField:
		return "field with missing value"
	case FlawUnrecognizedEvenTag:
		return "unrecognized even tag"
	case FlawUnrecognizedFlag:
		return "unrecognized field flag"
	case FlawVarint:
		return "invalid varint"
	default:
		return "unknown flaw"
	}
}

// flawSet is a bitset of flaws accumulated during decoding.
type flawSet uint32

func (s *flawSet) add(f Flaw) {
	*s |= 1 << f
}

func (s flawSet) empty() bool {
	return s == 0
}

// first returns the lowest-numbered flaw in the set.
func (s flawSet) first() Flaw {
	for f := FlawEdictOutput; f <= FlawVarint; f++ {
		if s&(1<<f) != 0 {
			return f
		}
	}
	return FlawVarint
}
