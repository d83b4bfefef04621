package index

import (
	"path/filepath"
	"testing"
	"time"

	leb128 "github.com/aviate-labs/leb128"
	uint256 "github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/RiemaLabs/modular-indexer-runes/internal/kvstore"
	"github.com/RiemaLabs/modular-indexer-runes/runes"
	"github.com/RiemaLabs/modular-indexer-runes/runes/getter"
)

// Test heights sit past the name unlock period so short rune names
// are allocatable.
const testBaseHeight uint = 1060000

func u128(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func encodePayload(t *testing.T, values ...*uint256.Int) []byte {
	t.Helper()
	var payload []byte
	for _, v := range values {
		encoded, err := leb128.EncodeUnsigned(v.ToBig())
		require.NoError(t, err)
		payload = append(payload, encoded...)
	}
	return payload
}

// runestoneTx builds a transaction with numOuts plain outputs, the
// runestone as the last output, and the given inputs. Without inputs
// a synthetic prevout keeps transaction hashes distinct.
func runestoneTx(t *testing.T, ins []wire.OutPoint, numOuts int, payload []byte) *wire.MsgTx {
	t.Helper()
	tx := wire.NewMsgTx(2)
	for i := range ins {
		tx.AddTxIn(wire.NewTxIn(&ins[i], nil, nil))
	}
	if len(ins) == 0 {
		fake := wire.OutPoint{Index: uint32(len(payload)) + 1}
		for i, b := range payload {
			fake.Hash[i%32] ^= b
		}
		tx.AddTxIn(wire.NewTxIn(&fake, nil, nil))
	}
	for i := 0; i < numOuts; i++ {
		tx.AddTxOut(wire.NewTxOut(546, []byte{txscript.OP_TRUE}))
	}
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_RETURN)
	builder.AddOp(txscript.OP_13)
	if len(payload) > 0 {
		builder.AddData(payload)
	}
	script, err := builder.Script()
	require.NoError(t, err)
	tx.AddTxOut(wire.NewTxOut(0, script))
	return tx
}

func etchValues(t *testing.T, name string, premine, amount, cap_ uint64) []*uint256.Int {
	t.Helper()
	r, err := runes.NewRuneFromString(name)
	require.NoError(t, err)
	return []*uint256.Int{
		u128(uint64(runes.TagFlags)), u128(1<<0 | 1<<1),
		u128(uint64(runes.TagRune)), &r.Value,
		u128(uint64(runes.TagPremine)), u128(premine),
		u128(uint64(runes.TagAmount)), u128(amount),
		u128(uint64(runes.TagCap)), u128(cap_),
	}
}

func mintValues(id runes.RuneId) []*uint256.Int {
	return []*uint256.Int{
		u128(uint64(runes.TagMint)), u128(id.Block),
		u128(uint64(runes.TagMint)), u128(uint64(id.Tx)),
	}
}

func edictValues(id runes.RuneId, amount uint64, output uint32) []*uint256.Int {
	return []*uint256.Int{
		u128(uint64(runes.TagBody)),
		u128(id.Block), u128(uint64(id.Tx)), u128(amount), u128(uint64(output)),
	}
}

// testChain drives a MemoryBlockGetter with linked headers. A new
// nonce at an existing height forks the chain.
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

func (tc *testChain) AddBlock(height uint, nonce uint32, txs ...*wire.MsgTx) {
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
		filler := wire.NewMsgTx(2)
		filler.LockTime = uint32(height)<<8 | nonce
		filler.AddTxOut(wire.NewTxOut(5000000000, []byte{txscript.OP_TRUE}))
		block.Transactions = []*wire.MsgTx{filler}
	}
	tc.tips[height] = block.BlockHash()
	tc.Getter.SetBlock(height, block)
}

func (tc *testChain) Extend(from, count uint) {
	for i := from; i < from+count; i++ {
		tc.AddBlock(i, 0)
	}
}

// execBlock runs one synthetic block directly against a header.
func execBlock(t *testing.T, header *Header, height uint, txs ...*wire.MsgTx) {
	t.Helper()
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Timestamp: time.Unix(1700000000+int64(height), 0),
		},
		Transactions: txs,
	}
	require.NoError(t, Exec(header, block, height))
}

// kvstoreForTest opens a throwaway ledger database under the test's
// temporary directory.
func kvstoreForTest(t *testing.T) (*kvstore.ByteMap, error) {
	t.Helper()
	store, err := kvstore.NewByteMap(filepath.Join(t.TempDir(), "ledger"))
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, nil
}

func copyKV(kv KeyValueMap) KeyValueMap {
	out := make(KeyValueMap, len(kv))
	for k, v := range kv {
		out[k] = append([]byte(nil), v...)
	}
	return out
}
