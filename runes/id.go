package runes

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	uint256 "github.com/holiman/uint256"
)

// RuneId identifies an etched token by the block height and the
// transaction index of its etching.
type RuneId struct {
	Block uint64
	Tx    uint32
}

// NewRuneId rejects ids in block zero other than 0:0, which no real
// etching can occupy.
func NewRuneId(block uint64, tx uint32) (RuneId, bool) {
	if block == 0 && tx > 0 {
		return RuneId{}, false
	}
	return RuneId{Block: block, Tx: tx}, true
}

func (id RuneId) String() string {
	return fmt.Sprintf("%d:%d", id.Block, id.Tx)
}

func NewRuneIdFromString(s string) (RuneId, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return RuneId{}, fmt.Errorf("invalid rune id %q", s)
	}
	block, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return RuneId{}, fmt.Errorf("invalid rune id block %q: %v", parts[0], err)
	}
	tx, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return RuneId{}, fmt.Errorf("invalid rune id tx %q: %v", parts[1], err)
	}
	id, ok := NewRuneId(block, uint32(tx))
	if !ok {
		return RuneId{}, fmt.Errorf("invalid rune id %q", s)
	}
	return id, nil
}

// next applies an edict delta. A zero block delta keeps the block and
// advances the tx index; a nonzero delta advances the block and resets
// the tx index to the raw value.
func (id RuneId) next(block, tx *uint256.Int) (RuneId, bool) {
	if !block.IsUint64() {
		return RuneId{}, false
	}
	nextBlock := id.Block + block.Uint64()
	if nextBlock < id.Block {
		return RuneId{}, false
	}
	var nextTx uint32
	if block.IsZero() {
		if !tx.IsUint64() || tx.Uint64() > uint64(^uint32(0)) {
			return RuneId{}, false
		}
		nextTx = id.Tx + uint32(tx.Uint64())
		if nextTx < id.Tx {
			return RuneId{}, false
		}
	} else {
		if !tx.IsUint64() || tx.Uint64() > uint64(^uint32(0)) {
			return RuneId{}, false
		}
		nextTx = uint32(tx.Uint64())
	}
	return NewRuneId(nextBlock, nextTx)
}

// Cmp orders ids by block, then tx index.
func (id RuneId) Cmp(other RuneId) int {
	switch {
	case id.Block < other.Block:
		return -1
	case id.Block > other.Block:
		return 1
	case id.Tx < other.Tx:
		return -1
	case id.Tx > other.Tx:
		return 1
	default:
		return 0
	}
}

// Bytes encodes the id as 12 big-endian bytes, so byte order matches
// numeric order.
func (id RuneId) Bytes() []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint64(b[:8], id.Block)
	binary.BigEndian.PutUint32(b[8:], id.Tx)
	return b
}

func NewRuneIdFromBytes(b []byte) (RuneId, error) {
	if len(b) != 12 {
		return RuneId{}, fmt.Errorf("rune id must be 12 bytes, got %d", len(b))
	}
	return RuneId{
		Block: binary.BigEndian.Uint64(b[:8]),
		Tx:    binary.BigEndian.Uint32(b[8:]),
	}, nil
}
