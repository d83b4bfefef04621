package index

import (
	"errors"
	"fmt"

	uint256 "github.com/holiman/uint256"
)

// ErrCorruptValue reports a stored ledger value that no longer decodes.
var ErrCorruptValue = errors.New("corrupt ledger value")

// ErrOverflow reports a balance sum exceeding the 128-bit amount
// range. The block being executed is undone and not applied.
var ErrOverflow = errors.New("rune amount overflows u128")

type MintErrorKind int

const (
	MintUnmintable MintErrorKind = iota
	MintStart
	MintEnd
	MintCap
)

// MintError explains why a mint was refused: no terms, outside the
// height window, or cap reached.
type MintError struct {
	Kind   MintErrorKind
	Height uint64
	Cap    *uint256.Int
}

func (e *MintError) Error() string {
	switch e.Kind {
	case MintUnmintable:
		return "rune is not mintable"
	case MintStart:
		return fmt.Sprintf("mint starts at height %d", e.Height)
	case MintEnd:
		return fmt.Sprintf("mint ended at height %d", e.Height)
	case MintCap:
		return fmt.Sprintf("mint cap %s reached", e.Cap.Dec())
	default:
		return "mint refused"
	}
}

// ChainLinkageError reports a fetched block whose declared parent is
// not the current tip. The chain moved between polls; the block is
// refused so reorg detection can run against a consistent ledger.
type ChainLinkageError struct {
	Height uint
	Parent string
}

func (e *ChainLinkageError) Error() string {
	return fmt.Sprintf("block at height %d extends %s, not the current tip", e.Height, e.Parent)
}

// BlockVerificationError reports a chain reorganization deeper than
// the retained history, which the indexer cannot undo.
type BlockVerificationError struct {
	Height uint
}

func (e *BlockVerificationError) Error() string {
	return fmt.Sprintf("block verification failed at height %d: reorganization deeper than retained history", e.Height)
}
