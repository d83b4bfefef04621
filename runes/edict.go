package runes

import (
	uint256 "github.com/holiman/uint256"

	"github.com/btcsuite/btcd/wire"
)

// Edict moves Amount of the rune identified by Id to the given
// transaction output. Output may equal the output count, which
// distributes the remainder over all non-OP_RETURN outputs.
type Edict struct {
	Id     RuneId
	Amount *uint256.Int
	Output uint32
}

// newEdict validates the output index against the transaction. An
// index beyond the output count makes the whole message a cenotaph.
func newEdict(tx *wire.MsgTx, id RuneId, amount, output *uint256.Int) (Edict, bool) {
	if !output.IsUint64() || output.Uint64() > uint64(^uint32(0)) {
		return Edict{}, false
	}
	out := uint32(output.Uint64())
	if uint64(out) > uint64(len(tx.TxOut)) {
		return Edict{}, false
	}
	return Edict{Id: id, Amount: amount, Output: out}, true
}
