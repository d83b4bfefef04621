package index

import (
	"testing"

	uint256 "github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/btcsuite/btcd/wire"

	"github.com/RiemaLabs/modular-indexer-runes/runes"
)

func mustRuneId(t *testing.T, header *Header, name string) runes.RuneId {
	t.Helper()
	r, err := runes.NewRuneFromString(name)
	require.NoError(t, err)
	id, ok := GetRuneIdByName(header, r)
	require.True(t, ok, "rune %q not etched", name)
	return id
}

func mustGetEntry(t *testing.T, header *Header, id runes.RuneId) *RuneEntry {
	t.Helper()
	entry, ok := GetRuneEntry(header, id)
	require.True(t, ok)
	return entry
}

// balanceAt returns the amount of one rune held by a transaction
// output, or zero when the outpoint has no balance record.
func balanceAt(header *Header, tx *wire.MsgTx, vout uint32, id runes.RuneId) *uint256.Int {
	for _, b := range GetOutpointBalances(header, wire.OutPoint{Hash: tx.TxHash(), Index: vout}) {
		if b.Id == id {
			return b.Amount
		}
	}
	return uint256.NewInt(0)
}

func TestExecEtchPremine(t *testing.T) {
	header := NewHeader(nil)
	tx := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 1000, 10, 100)...))
	execBlock(t, header, testBaseHeight, tx)

	id := mustRuneId(t, header, "AAAA")
	require.Equal(t, runes.RuneId{Block: uint64(testBaseHeight), Tx: 0}, id)

	entry := mustGetEntry(t, header, id)
	require.Equal(t, "AAAA", entry.SpacedRune.Rune.String())
	require.Equal(t, u128(1000), entry.Premine)
	require.True(t, entry.Mints.IsZero())
	require.Equal(t, uint64(0), entry.Number)
	require.Equal(t, uint64(1700000000+int64(testBaseHeight)), entry.Timestamp)
	require.Equal(t, uint64(1), GetRuneCount(header))

	// Without a pointer the premine lands on the first non-OP_RETURN
	// output.
	require.Equal(t, u128(1000), balanceAt(header, tx, 0, id))
}

func TestExecEtchReservedAllocation(t *testing.T) {
	header := NewHeader(nil)
	// Etching flag set but no name declared: a reserved name is
	// allocated from the height and transaction index.
	payload := encodePayload(t, u128(uint64(runes.TagFlags)), u128(1))
	filler := runestoneTx(t, nil, 1, encodePayload(t, u128(uint64(runes.TagNop)), u128(0)))
	tx := runestoneTx(t, nil, 1, payload)
	execBlock(t, header, testBaseHeight, filler, tx)

	want := runes.Reserved(uint64(testBaseHeight), 1)
	id, ok := GetRuneIdByName(header, want)
	require.True(t, ok)
	entry := mustGetEntry(t, header, id)
	require.Equal(t, want, entry.SpacedRune.Rune)
	require.True(t, entry.SpacedRune.Rune.IsReserved())
}

func TestExecEtchDeclaredReservedNameIgnored(t *testing.T) {
	header := NewHeader(nil)
	reserved := runes.Reserved(7, 7)
	payload := encodePayload(t,
		u128(uint64(runes.TagFlags)), u128(1),
		u128(uint64(runes.TagRune)), &reserved.Value,
	)
	execBlock(t, header, testBaseHeight, runestoneTx(t, nil, 1, payload))

	require.Equal(t, uint64(0), GetRuneCount(header))
	_, ok := GetRuneIdByName(header, reserved)
	require.False(t, ok)
}

func TestExecEtchDuplicateNameIgnored(t *testing.T) {
	header := NewHeader(nil)
	execBlock(t, header, testBaseHeight, runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 100, 0, 0)...)))
	second := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 500, 0, 0)...))
	execBlock(t, header, testBaseHeight+1, second)

	id := mustRuneId(t, header, "AAAA")
	require.Equal(t, uint64(testBaseHeight), id.Block)
	require.Equal(t, uint64(1), GetRuneCount(header))
	// The losing transaction etches nothing, so its premine never
	// materializes.
	require.True(t, balanceAt(header, second, 0, id).IsZero())
}

func TestExecEtchBelowMinimumIgnored(t *testing.T) {
	header := NewHeader(nil)
	// At the first indexed height only thirteen-letter names are
	// unlocked.
	execBlock(t, header, 840000, runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "SHORT", 0, 0, 0)...)))
	require.Equal(t, uint64(0), GetRuneCount(header))

	execBlock(t, header, 840001, runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAAAAAAAAAAA", 0, 0, 0)...)))
	require.Equal(t, uint64(1), GetRuneCount(header))
}

func TestExecMint(t *testing.T) {
	header := NewHeader(nil)
	execBlock(t, header, testBaseHeight, runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 0, 10, 2)...)))
	id := mustRuneId(t, header, "AAAA")

	first := runestoneTx(t, nil, 1, encodePayload(t, mintValues(id)...))
	second := runestoneTx(t, nil, 1, encodePayload(t, mintValues(id)...))
	execBlock(t, header, testBaseHeight+1, first, second)

	entry := mustGetEntry(t, header, id)
	require.Equal(t, u128(2), entry.Mints)
	require.Equal(t, u128(10), balanceAt(header, first, 0, id))
	require.Equal(t, u128(10), balanceAt(header, second, 0, id))

	// The cap is reached, so a further mint allocates nothing.
	third := runestoneTx(t, nil, 1, encodePayload(t, mintValues(id)...))
	execBlock(t, header, testBaseHeight+2, third)
	require.Equal(t, u128(2), mustGetEntry(t, header, id).Mints)
	require.True(t, balanceAt(header, third, 0, id).IsZero())
}

func TestExecMintUnknownIdIgnored(t *testing.T) {
	header := NewHeader(nil)
	ghost := runes.RuneId{Block: 5, Tx: 5}
	tx := runestoneTx(t, nil, 1, encodePayload(t, mintValues(ghost)...))
	execBlock(t, header, testBaseHeight, tx)
	require.Empty(t, GetOutpointBalances(header, wire.OutPoint{Hash: tx.TxHash(), Index: 0}))
}

func TestExecTransferEdict(t *testing.T) {
	header := NewHeader(nil)
	etch := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 100, 0, 0)...))
	execBlock(t, header, testBaseHeight, etch)
	id := mustRuneId(t, header, "AAAA")

	in := wire.OutPoint{Hash: etch.TxHash(), Index: 0}
	transfer := runestoneTx(t, []wire.OutPoint{in}, 2, encodePayload(t, edictValues(id, 30, 1)...))
	execBlock(t, header, testBaseHeight+1, transfer)

	// The edict moves 30 to output one and the remainder follows the
	// default to output zero; together they conserve the input.
	require.Equal(t, u128(70), balanceAt(header, transfer, 0, id))
	require.Equal(t, u128(30), balanceAt(header, transfer, 1, id))
	// The spent outpoint's balance record is gone.
	require.Empty(t, GetOutpointBalances(header, in))
}

func TestExecEdictAmountZeroMovesAll(t *testing.T) {
	header := NewHeader(nil)
	etch := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 100, 0, 0)...))
	execBlock(t, header, testBaseHeight, etch)
	id := mustRuneId(t, header, "AAAA")

	in := wire.OutPoint{Hash: etch.TxHash(), Index: 0}
	transfer := runestoneTx(t, []wire.OutPoint{in}, 2, encodePayload(t, edictValues(id, 0, 1)...))
	execBlock(t, header, testBaseHeight+1, transfer)

	require.True(t, balanceAt(header, transfer, 0, id).IsZero())
	require.Equal(t, u128(100), balanceAt(header, transfer, 1, id))
}

func TestExecEdictAllOutputsSplit(t *testing.T) {
	header := NewHeader(nil)
	etch := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 100, 0, 0)...))
	execBlock(t, header, testBaseHeight, etch)
	id := mustRuneId(t, header, "AAAA")

	in := wire.OutPoint{Hash: etch.TxHash(), Index: 0}
	// Output index equal to the output count addresses every
	// non-OP_RETURN output; amount zero splits evenly with the
	// remainder going to the earliest outputs.
	transfer := runestoneTx(t, []wire.OutPoint{in}, 3, encodePayload(t, edictValues(id, 0, 4)...))
	execBlock(t, header, testBaseHeight+1, transfer)

	require.Equal(t, u128(34), balanceAt(header, transfer, 0, id))
	require.Equal(t, u128(33), balanceAt(header, transfer, 1, id))
	require.Equal(t, u128(33), balanceAt(header, transfer, 2, id))
}

func TestExecEdictAllOutputsFixedAmount(t *testing.T) {
	header := NewHeader(nil)
	etch := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 100, 0, 0)...))
	execBlock(t, header, testBaseHeight, etch)
	id := mustRuneId(t, header, "AAAA")

	in := wire.OutPoint{Hash: etch.TxHash(), Index: 0}
	transfer := runestoneTx(t, []wire.OutPoint{in}, 3, encodePayload(t, edictValues(id, 10, 4)...))
	execBlock(t, header, testBaseHeight+1, transfer)

	// Ten per output, then the unallocated 70 defaults to output zero.
	require.Equal(t, u128(80), balanceAt(header, transfer, 0, id))
	require.Equal(t, u128(10), balanceAt(header, transfer, 1, id))
	require.Equal(t, u128(10), balanceAt(header, transfer, 2, id))
}

func TestExecEdictSelfEtched(t *testing.T) {
	header := NewHeader(nil)
	// A 0:0 edict in the etching transaction targets the rune it
	// etches.
	values := etchValues(t, "AAAA", 100, 0, 0)
	values = append(values, edictValues(runes.RuneId{}, 40, 1)...)
	tx := runestoneTx(t, nil, 2, encodePayload(t, values...))
	execBlock(t, header, testBaseHeight, tx)

	id := mustRuneId(t, header, "AAAA")
	require.Equal(t, u128(60), balanceAt(header, tx, 0, id))
	require.Equal(t, u128(40), balanceAt(header, tx, 1, id))
}

func TestExecEdictUnknownIdIgnored(t *testing.T) {
	header := NewHeader(nil)
	etch := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 100, 0, 0)...))
	execBlock(t, header, testBaseHeight, etch)
	id := mustRuneId(t, header, "AAAA")

	in := wire.OutPoint{Hash: etch.TxHash(), Index: 0}
	ghost := runes.RuneId{Block: uint64(testBaseHeight), Tx: 9}
	transfer := runestoneTx(t, []wire.OutPoint{in}, 2, encodePayload(t, edictValues(ghost, 30, 1)...))
	execBlock(t, header, testBaseHeight+1, transfer)

	// Nothing moved; the whole balance defaults to output zero.
	require.Equal(t, u128(100), balanceAt(header, transfer, 0, id))
	require.True(t, balanceAt(header, transfer, 1, id).IsZero())
}

func TestExecEdictAmountCappedAtBalance(t *testing.T) {
	header := NewHeader(nil)
	etch := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 100, 0, 0)...))
	execBlock(t, header, testBaseHeight, etch)
	id := mustRuneId(t, header, "AAAA")

	in := wire.OutPoint{Hash: etch.TxHash(), Index: 0}
	transfer := runestoneTx(t, []wire.OutPoint{in}, 2, encodePayload(t, edictValues(id, 1000, 1)...))
	execBlock(t, header, testBaseHeight+1, transfer)

	require.Equal(t, u128(100), balanceAt(header, transfer, 1, id))
	require.True(t, balanceAt(header, transfer, 0, id).IsZero())
}

func TestExecPointer(t *testing.T) {
	header := NewHeader(nil)
	values := etchValues(t, "AAAA", 100, 0, 0)
	values = append(values, u128(uint64(runes.TagPointer)), u128(1))
	tx := runestoneTx(t, nil, 2, encodePayload(t, values...))
	execBlock(t, header, testBaseHeight, tx)

	id := mustRuneId(t, header, "AAAA")
	require.True(t, balanceAt(header, tx, 0, id).IsZero())
	require.Equal(t, u128(100), balanceAt(header, tx, 1, id))
}

func TestExecPointerToOpReturnBurns(t *testing.T) {
	header := NewHeader(nil)
	values := etchValues(t, "AAAA", 100, 0, 0)
	// Output 1 is the runestone's own OP_RETURN.
	values = append(values, u128(uint64(runes.TagPointer)), u128(1))
	tx := runestoneTx(t, nil, 1, encodePayload(t, values...))
	execBlock(t, header, testBaseHeight, tx)

	id := mustRuneId(t, header, "AAAA")
	entry := mustGetEntry(t, header, id)
	require.Equal(t, u128(100), entry.Burned)
	require.True(t, balanceAt(header, tx, 0, id).IsZero())
	require.Empty(t, GetOutpointBalances(header, wire.OutPoint{Hash: tx.TxHash(), Index: 1}))
}

func TestExecEdictToOpReturnBurns(t *testing.T) {
	header := NewHeader(nil)
	etch := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 100, 0, 0)...))
	execBlock(t, header, testBaseHeight, etch)
	id := mustRuneId(t, header, "AAAA")

	in := wire.OutPoint{Hash: etch.TxHash(), Index: 0}
	// Output 2 is the runestone's OP_RETURN.
	transfer := runestoneTx(t, []wire.OutPoint{in}, 2, encodePayload(t, edictValues(id, 100, 2)...))
	execBlock(t, header, testBaseHeight+1, transfer)

	require.Equal(t, u128(100), mustGetEntry(t, header, id).Burned)
	require.True(t, balanceAt(header, transfer, 0, id).IsZero())
	require.True(t, balanceAt(header, transfer, 1, id).IsZero())
}

func TestExecNoEligibleOutputBurns(t *testing.T) {
	header := NewHeader(nil)
	execBlock(t, header, testBaseHeight, runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 0, 10, 2)...)))
	id := mustRuneId(t, header, "AAAA")

	// A mint into a transaction whose only output is the runestone's
	// OP_RETURN has nowhere to go.
	mint := runestoneTx(t, nil, 0, encodePayload(t, mintValues(id)...))
	execBlock(t, header, testBaseHeight+1, mint)

	entry := mustGetEntry(t, header, id)
	require.Equal(t, u128(1), entry.Mints)
	require.Equal(t, u128(10), entry.Burned)
}

func TestExecCenotaphBurnsInputs(t *testing.T) {
	header := NewHeader(nil)
	etch := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 100, 0, 0)...))
	execBlock(t, header, testBaseHeight, etch)
	id := mustRuneId(t, header, "AAAA")

	in := wire.OutPoint{Hash: etch.TxHash(), Index: 0}
	cenotaph := runestoneTx(t, []wire.OutPoint{in}, 1, encodePayload(t, u128(uint64(runes.TagCenotaph)), u128(0)))
	execBlock(t, header, testBaseHeight+1, cenotaph)

	require.Equal(t, u128(100), mustGetEntry(t, header, id).Burned)
	require.Empty(t, GetOutpointBalances(header, in))
	require.True(t, balanceAt(header, cenotaph, 0, id).IsZero())
}

func TestExecCenotaphMintCounts(t *testing.T) {
	header := NewHeader(nil)
	execBlock(t, header, testBaseHeight, runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 0, 10, 2)...)))
	id := mustRuneId(t, header, "AAAA")

	values := mintValues(id)
	values = append(values, u128(uint64(runes.TagCenotaph)), u128(0))
	cenotaph := runestoneTx(t, nil, 1, encodePayload(t, values...))
	execBlock(t, header, testBaseHeight+1, cenotaph)

	// The mint consumes cap but the minted amount burns.
	entry := mustGetEntry(t, header, id)
	require.Equal(t, u128(1), entry.Mints)
	require.Equal(t, u128(10), entry.Burned)
	require.True(t, balanceAt(header, cenotaph, 0, id).IsZero())
}

func TestExecPlainTransferCarriesBalance(t *testing.T) {
	header := NewHeader(nil)
	etch := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 100, 0, 0)...))
	execBlock(t, header, testBaseHeight, etch)
	id := mustRuneId(t, header, "AAAA")

	// Spending a rune-bearing output without any runestone moves the
	// whole balance to the first output.
	in := wire.OutPoint{Hash: etch.TxHash(), Index: 0}
	plain := wire.NewMsgTx(2)
	plain.AddTxIn(wire.NewTxIn(&in, nil, nil))
	plain.AddTxOut(wire.NewTxOut(546, []byte{0x51}))
	plain.AddTxOut(wire.NewTxOut(546, []byte{0x51}))
	execBlock(t, header, testBaseHeight+1, plain)

	require.Equal(t, u128(100), balanceAt(header, plain, 0, id))
	require.True(t, balanceAt(header, plain, 1, id).IsZero())
	require.Empty(t, GetOutpointBalances(header, in))
}

func TestExecOverflowAborts(t *testing.T) {
	header := NewHeader(nil)
	etch := runestoneTx(t, nil, 1, encodePayload(t, etchValues(t, "AAAA", 0, 0, 0)...))
	execBlock(t, header, testBaseHeight, etch)
	id := mustRuneId(t, header, "AAAA")

	// Plant two maximal balances by hand; draining both into one
	// transaction overflows the 128-bit sum.
	a := wire.OutPoint{Index: 1}
	b := wire.OutPoint{Index: 2}
	header.insert(balanceKey(a), packBalances(map[runes.RuneId]*uint256.Int{id: runes.MaxU128()}))
	header.insert(balanceKey(b), packBalances(map[runes.RuneId]*uint256.Int{id: runes.MaxU128()}))

	merge := wire.NewMsgTx(2)
	merge.AddTxIn(wire.NewTxIn(&a, nil, nil))
	merge.AddTxIn(wire.NewTxIn(&b, nil, nil))
	merge.AddTxOut(wire.NewTxOut(546, []byte{0x51}))
	block := &wire.MsgBlock{Transactions: []*wire.MsgTx{merge}}
	require.ErrorIs(t, Exec(header, block, testBaseHeight+1), ErrOverflow)
}
