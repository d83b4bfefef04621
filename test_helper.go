package main

import (
	"log"
	"time"

	leb128 "github.com/aviate-labs/leb128"
	uint256 "github.com/holiman/uint256"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/RiemaLabs/modular-indexer-runes/runes"
	"github.com/RiemaLabs/modular-indexer-runes/runes/getter"
)

// testChain builds a deterministic in-memory chain for the root
// integration tests. Blocks are linked through PrevBlock; serving a
// different nonce at an existing height forks the chain from there.
type testChain struct {
	Getter *getter.MemoryBlockGetter
	tips   map[uint]chainhash.Hash
}

func newTestChain() *testChain {
	return &testChain{
		Getter: getter.NewMemoryBlockGetter(),
		tips:   make(map[uint]chainhash.Hash),
	}
}

// AddBlock serves the given transactions at height. The nonce makes
// fork variants of the same height hash differently.
func (tc *testChain) AddBlock(height uint, nonce uint32, txs ...*wire.MsgTx) *wire.MsgBlock {
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: tc.tips[height-1],
			Timestamp: time.Unix(1700000000+int64(height), 0),
			Nonce:     nonce,
		},
		Transactions: txs,
	}
	if len(block.Transactions) == 0 {
		block.Transactions = []*wire.MsgTx{emptyTx(height, nonce)}
	}
	tc.tips[height] = block.BlockHash()
	tc.Getter.SetBlock(height, block)
	return block
}

// Extend appends count empty blocks above the current height.
func (tc *testChain) Extend(from uint, count uint) {
	for i := from; i < from+count; i++ {
		tc.AddBlock(i, 0)
	}
}

// emptyTx is a placeholder coinbase-like transaction. The lock time
// varies per block so transaction hashes never collide.
func emptyTx(height uint, nonce uint32) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.LockTime = uint32(height)<<8 | nonce
	tx.AddTxOut(wire.NewTxOut(5000000000, []byte{txscript.OP_TRUE}))
	return tx
}

// runestoneTx builds a transaction spending the given outpoints, with
// numOuts spendable outputs followed by the runestone output.
func runestoneTx(ins []wire.OutPoint, numOuts int, payload []byte) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	for _, in := range ins {
		tx.AddTxIn(wire.NewTxIn(&in, nil, nil))
	}
	if len(ins) == 0 {
		// Differentiate otherwise identical transactions by a fake
		// prevout index derived from the payload.
		fake := wire.OutPoint{Index: uint32(len(payload))}
		for _, b := range payload {
			fake.Hash[0] ^= b
		}
		tx.AddTxIn(wire.NewTxIn(&fake, nil, nil))
	}
	for i := 0; i < numOuts; i++ {
		tx.AddTxOut(wire.NewTxOut(546, []byte{txscript.OP_TRUE}))
	}
	tx.AddTxOut(wire.NewTxOut(0, runestoneScript(payload)))
	return tx
}

func runestoneScript(payload []byte) []byte {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_RETURN)
	builder.AddOp(txscript.OP_13)
	if len(payload) > 0 {
		builder.AddData(payload)
	}
	script, err := builder.Script()
	if err != nil {
		log.Fatalf("Failed to build a runestone script: %v", err)
	}
	return script
}

func encodeValues(values ...*uint256.Int) []byte {
	var payload []byte
	for _, v := range values {
		encoded, err := leb128.EncodeUnsigned(v.ToBig())
		if err != nil {
			log.Fatalf("Failed to encode %s: %v", v.Dec(), err)
		}
		payload = append(payload, encoded...)
	}
	return payload
}

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// etchingPayload declares a named etching with open mint terms.
func etchingPayload(name string, amount, cap_ uint64, heightStart, heightEnd *uint64) []byte {
	r, err := runes.NewRuneFromString(name)
	if err != nil {
		log.Fatalf("Invalid rune name %q: %v", name, err)
	}
	flags := uint64(1)<<0 | uint64(1)<<1
	values := []*uint256.Int{
		u(uint64(runes.TagFlags)), u(flags),
		u(uint64(runes.TagRune)), &r.Value,
		u(uint64(runes.TagAmount)), u(amount),
		u(uint64(runes.TagCap)), u(cap_),
	}
	if heightStart != nil {
		values = append(values, u(uint64(runes.TagHeightStart)), u(*heightStart))
	}
	if heightEnd != nil {
		values = append(values, u(uint64(runes.TagHeightEnd)), u(*heightEnd))
	}
	return encodeValues(values...)
}

func mintPayload(id runes.RuneId) []byte {
	return encodeValues(
		u(uint64(runes.TagMint)), u(id.Block),
		u(uint64(runes.TagMint)), u(uint64(id.Tx)),
	)
}

func transferPayload(id runes.RuneId, amount uint64, output uint32) []byte {
	return encodeValues(
		u(uint64(runes.TagBody)),
		u(id.Block), u(uint64(id.Tx)), u(amount), u(uint64(output)),
	)
}
