package index

import (
	"bytes"
	"encoding/gob"

	uint256 "github.com/holiman/uint256"

	"github.com/RiemaLabs/modular-indexer-runes/runes"
)

// RuneEntry is the ledger record of an etched rune.
type RuneEntry struct {
	Id           runes.RuneId
	SpacedRune   runes.SpacedRune
	Symbol       *rune
	Divisibility uint8
	EtchingTxid  string
	Terms        *runes.Terms
	Premine      *uint256.Int
	Mints        *uint256.Int
	Burned       *uint256.Int
	Number       uint64
	Timestamp    uint64
	Turbo        bool
}

// Mintable returns the amount one mint yields at the given height, or
// the reason none is allowed. Checks run in a fixed order: terms,
// start bound, end bound, cap.
func (e *RuneEntry) Mintable(height uint64) (*uint256.Int, *MintError) {
	if e.Terms == nil {
		return nil, &MintError{Kind: MintUnmintable}
	}
	if start := e.Start(); start != nil && height < *start {
		return nil, &MintError{Kind: MintStart, Height: *start}
	}
	if end := e.End(); end != nil && height >= *end {
		return nil, &MintError{Kind: MintEnd, Height: *end}
	}
	cap_ := uint256.NewInt(0)
	if e.Terms.Cap != nil {
		cap_ = e.Terms.Cap
	}
	if !e.Mints.Lt(cap_) {
		return nil, &MintError{Kind: MintCap, Cap: cap_}
	}
	amount := uint256.NewInt(0)
	if e.Terms.Amount != nil {
		amount = new(uint256.Int).Set(e.Terms.Amount)
	}
	return amount, nil
}

// Start resolves the opening height of the mint window: the later of
// the absolute bound and the offset relative to the etching height.
func (e *RuneEntry) Start() *uint64 {
	if e.Terms == nil {
		return nil
	}
	var relative *uint64
	if e.Terms.OffsetStart != nil {
		r := saturatingAdd(e.Id.Block, *e.Terms.OffsetStart)
		relative = &r
	}
	absolute := e.Terms.HeightStart
	switch {
	case relative != nil && absolute != nil:
		if *relative > *absolute {
			return relative
		}
		return absolute
	case relative != nil:
		return relative
	default:
		return absolute
	}
}

// End resolves the closing height: the earlier of the absolute bound
// and the offset relative to the etching height.
func (e *RuneEntry) End() *uint64 {
	if e.Terms == nil {
		return nil
	}
	var relative *uint64
	if e.Terms.OffsetEnd != nil {
		r := saturatingAdd(e.Id.Block, *e.Terms.OffsetEnd)
		relative = &r
	}
	absolute := e.Terms.HeightEnd
	switch {
	case relative != nil && absolute != nil:
		if *relative < *absolute {
			return relative
		}
		return absolute
	case relative != nil:
		return relative
	default:
		return absolute
	}
}

// Supply returns premine plus everything minted so far.
func (e *RuneEntry) Supply() *uint256.Int {
	supply := new(uint256.Int).Set(e.Premine)
	if e.Terms != nil && e.Terms.Amount != nil {
		minted := new(uint256.Int).Mul(e.Mints, e.Terms.Amount)
		supply.Add(supply, minted)
	}
	return supply
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

func (e *RuneEntry) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func entryFromBytes(b []byte) (*RuneEntry, error) {
	var e RuneEntry
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&e); err != nil {
		return nil, ErrCorruptValue
	}
	// Gob drops zero-valued fields, turning zero counters into nil
	// pointers on decode.
	if e.Premine == nil {
		e.Premine = uint256.NewInt(0)
	}
	if e.Mints == nil {
		e.Mints = uint256.NewInt(0)
	}
	if e.Burned == nil {
		e.Burned = uint256.NewInt(0)
	}
	return &e, nil
}
