package runes

import (
	"math/rand"
	"testing"

	leb128 "github.com/aviate-labs/leb128"
	uint256 "github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

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

func markerScript(t *testing.T, payload []byte) []byte {
	t.Helper()
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_RETURN)
	builder.AddOp(txscript.OP_13)
	if len(payload) > 0 {
		builder.AddData(payload)
	}
	script, err := builder.Script()
	require.NoError(t, err)
	return script
}

// txWithScript returns a transaction with numOuts plain outputs and
// the given script as the last output.
func txWithScript(script []byte, numOuts int) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	for i := 0; i < numOuts; i++ {
		tx.AddTxOut(wire.NewTxOut(546, []byte{txscript.OP_TRUE}))
	}
	tx.AddTxOut(wire.NewTxOut(0, script))
	return tx
}

func txWithPayload(t *testing.T, payload []byte, numOuts int) *wire.MsgTx {
	t.Helper()
	return txWithScript(markerScript(t, payload), numOuts)
}

func tagged(tag Tag, value uint64) []*uint256.Int {
	return []*uint256.Int{uint256.NewInt(uint64(tag)), uint256.NewInt(value)}
}

func TestDecipherNoMarker(t *testing.T) {
	tx := wire.NewMsgTx(2)
	tx.AddTxOut(wire.NewTxOut(546, []byte{txscript.OP_TRUE}))
	require.Nil(t, Decipher(tx))

	// A bare OP_RETURN without OP_13 is not a runestone either.
	tx.AddTxOut(wire.NewTxOut(0, []byte{txscript.OP_RETURN, txscript.OP_TRUE}))
	require.Nil(t, Decipher(tx))
}

func TestDecipherEmptyMessage(t *testing.T) {
	artifact := Decipher(txWithPayload(t, nil, 1))
	require.NotNil(t, artifact)
	require.NotNil(t, artifact.Runestone)
	require.Nil(t, artifact.Runestone.Etching)
	require.Nil(t, artifact.Runestone.Mint)
	require.Empty(t, artifact.Runestone.Edicts)
}

func TestDecipherEtching(t *testing.T) {
	name, err := NewRuneFromString("AAAAAAAAAAAAA")
	require.NoError(t, err)

	var values []*uint256.Int
	values = append(values, tagged(TagFlags, 1<<FlagEtching|1<<FlagTerms)...)
	values = append(values, uint256.NewInt(uint64(TagRune)), &name.Value)
	values = append(values, tagged(TagDivisibility, 2)...)
	values = append(values, tagged(TagSymbol, uint64('¢'))...)
	values = append(values, tagged(TagSpacers, 0b101)...)
	values = append(values, tagged(TagPremine, 1000)...)
	values = append(values, tagged(TagAmount, 10)...)
	values = append(values, tagged(TagCap, 100)...)
	values = append(values, tagged(TagHeightStart, 840100)...)
	values = append(values, tagged(TagHeightEnd, 840200)...)

	artifact := Decipher(txWithPayload(t, encodePayload(t, values...), 1))
	require.NotNil(t, artifact.Runestone)
	etching := artifact.Runestone.Etching
	require.NotNil(t, etching)
	require.Equal(t, name.Value, etching.Rune.Value)
	require.Equal(t, uint8(2), *etching.Divisibility)
	require.Equal(t, '¢', *etching.Symbol)
	require.Equal(t, uint32(0b101), *etching.Spacers)
	require.Equal(t, uint256.NewInt(1000), etching.Premine)
	require.NotNil(t, etching.Terms)
	require.Equal(t, uint256.NewInt(10), etching.Terms.Amount)
	require.Equal(t, uint256.NewInt(100), etching.Terms.Cap)
	require.Equal(t, uint64(840100), *etching.Terms.HeightStart)
	require.Equal(t, uint64(840200), *etching.Terms.HeightEnd)
	require.False(t, etching.Turbo)
}

func TestDecipherMint(t *testing.T) {
	payload := encodePayload(t,
		uint256.NewInt(uint64(TagMint)), uint256.NewInt(840000),
		uint256.NewInt(uint64(TagMint)), uint256.NewInt(7),
	)
	artifact := Decipher(txWithPayload(t, payload, 1))
	require.NotNil(t, artifact.Runestone)
	require.Equal(t, &RuneId{Block: 840000, Tx: 7}, artifact.Runestone.Mint)
}

func TestDecipherEdicts(t *testing.T) {
	payload := encodePayload(t,
		uint256.NewInt(uint64(TagBody)),
		// First edict: absolute id via deltas from 0:0.
		uint256.NewInt(840000), uint256.NewInt(5), uint256.NewInt(100), uint256.NewInt(0),
		// Same block, tx advances by 2.
		uint256.NewInt(0), uint256.NewInt(2), uint256.NewInt(50), uint256.NewInt(1),
		// Next block, tx index absolute again.
		uint256.NewInt(3), uint256.NewInt(1), uint256.NewInt(25), uint256.NewInt(2),
	)
	artifact := Decipher(txWithPayload(t, payload, 2))
	require.NotNil(t, artifact.Runestone)
	edicts := artifact.Runestone.Edicts
	require.Len(t, edicts, 3)
	require.Equal(t, RuneId{Block: 840000, Tx: 5}, edicts[0].Id)
	require.Equal(t, uint256.NewInt(100), edicts[0].Amount)
	require.Equal(t, uint32(0), edicts[0].Output)
	require.Equal(t, RuneId{Block: 840000, Tx: 7}, edicts[1].Id)
	require.Equal(t, RuneId{Block: 840003, Tx: 1}, edicts[2].Id)
	require.Equal(t, uint32(2), edicts[2].Output)
}

func TestDecipherPointer(t *testing.T) {
	payload := encodePayload(t, tagged(TagPointer, 1)...)
	artifact := Decipher(txWithPayload(t, payload, 2))
	require.NotNil(t, artifact.Runestone)
	require.Equal(t, uint32(1), *artifact.Runestone.Pointer)

	// A pointer beyond the output count is a malformed even tag.
	payload = encodePayload(t, tagged(TagPointer, 10)...)
	artifact = Decipher(txWithPayload(t, payload, 2))
	require.NotNil(t, artifact.Cenotaph)
	require.Equal(t, FlawUnrecognizedEvenTag, artifact.Cenotaph.Flaw)
}

func TestDecipherUnknownOddTagIgnored(t *testing.T) {
	payload := encodePayload(t, tagged(Tag(99), 7)...)
	artifact := Decipher(txWithPayload(t, payload, 1))
	require.NotNil(t, artifact.Runestone)
}

func TestDecipherCenotaphs(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
		flaw    Flaw
	}{
		{
			"truncated field",
			encodePayload(t, uint256.NewInt(uint64(TagFlags))),
			FlawTruncatedField,
		},
		{
			"unrecognized even tag",
			encodePayload(t, tagged(Tag(98), 1)...),
			FlawUnrecognizedEvenTag,
		},
		{
			"unrecognized flag",
			encodePayload(t, tagged(TagFlags, 1<<40)...),
			FlawUnrecognizedFlag,
		},
		{
			"explicit cenotaph tag",
			encodePayload(t, tagged(TagCenotaph, 0)...),
			FlawUnrecognizedEvenTag,
		},
		{
			"trailing edict integers",
			encodePayload(t,
				uint256.NewInt(uint64(TagBody)),
				uint256.NewInt(840000), uint256.NewInt(1), uint256.NewInt(5),
			),
			FlawTrailingIntegers,
		},
		{
			"edict output out of range",
			encodePayload(t,
				uint256.NewInt(uint64(TagBody)),
				uint256.NewInt(840000), uint256.NewInt(1), uint256.NewInt(5), uint256.NewInt(40),
			),
			FlawEdictOutput,
		},
		{
			"edict rune id overflow",
			encodePayload(t,
				uint256.NewInt(uint64(TagBody)),
				MaxU128(), uint256.NewInt(1), uint256.NewInt(5), uint256.NewInt(0),
			),
			FlawEdictRuneId,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			artifact := Decipher(txWithPayload(t, tc.payload, 2))
			require.NotNil(t, artifact.Cenotaph, "expected a cenotaph")
			require.Equal(t, tc.flaw, artifact.Cenotaph.Flaw)
		})
	}
}

func TestDecipherVarintFlaws(t *testing.T) {
	// A value above 128 bits: 19 continuation bytes reach 133 bits.
	overflow := make([]byte, 19)
	for i := range overflow {
		overflow[i] = 0xff
	}
	overflow[18] = 0x1f
	artifact := Decipher(txWithPayload(t, overflow, 1))
	require.NotNil(t, artifact.Cenotaph)
	require.Equal(t, FlawVarint, artifact.Cenotaph.Flaw)

	// A varint whose final byte still has the continuation bit set.
	artifact = Decipher(txWithPayload(t, []byte{0x80}, 1))
	require.NotNil(t, artifact.Cenotaph)
	require.Equal(t, FlawVarint, artifact.Cenotaph.Flaw)
}

func TestDecipherOpcodeFlaw(t *testing.T) {
	script := []byte{txscript.OP_RETURN, txscript.OP_13, txscript.OP_VERIFY}
	artifact := Decipher(txWithScript(script, 1))
	require.NotNil(t, artifact.Cenotaph)
	require.Equal(t, FlawOpcode, artifact.Cenotaph.Flaw)
}

func TestDecipherSupplyOverflow(t *testing.T) {
	var values []*uint256.Int
	values = append(values, tagged(TagFlags, 1<<FlagEtching|1<<FlagTerms)...)
	values = append(values, uint256.NewInt(uint64(TagAmount)), MaxU128())
	values = append(values, uint256.NewInt(uint64(TagCap)), uint256.NewInt(2))
	artifact := Decipher(txWithPayload(t, encodePayload(t, values...), 1))
	require.NotNil(t, artifact.Cenotaph)
	require.Equal(t, FlawSupplyOverflow, artifact.Cenotaph.Flaw)
}

// TestDecipherCenotaphKeepsEtchingAndMint checks that a malformed
// message still reserves its declared name and counts its mint.
func TestDecipherCenotaphKeepsEtchingAndMint(t *testing.T) {
	name, err := NewRuneFromString("AAAAAAAAAAAAB")
	require.NoError(t, err)
	var values []*uint256.Int
	values = append(values, tagged(TagFlags, 1<<FlagEtching)...)
	values = append(values, uint256.NewInt(uint64(TagRune)), &name.Value)
	values = append(values, tagged(TagMint, 840000)...)
	values = append(values, tagged(TagMint, 3)...)
	values = append(values, tagged(Tag(98), 1)...)

	artifact := Decipher(txWithPayload(t, encodePayload(t, values...), 1))
	require.NotNil(t, artifact.Cenotaph)
	require.NotNil(t, artifact.Cenotaph.Etching)
	require.Equal(t, name.Value, artifact.Cenotaph.Etching.Value)
	require.Equal(t, &RuneId{Block: 840000, Tx: 3}, artifact.Cenotaph.Mint)
	require.Equal(t, artifact.Cenotaph.Mint, artifact.Mint())
}

// TestDecipherTotality feeds pseudo-random payloads through the
// decoder. Every one must decode to a runestone or a cenotaph.
func TestDecipherTotality(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		payload := make([]byte, rng.Intn(64))
		rng.Read(payload)
		artifact := Decipher(txWithPayload(t, payload, 1+rng.Intn(3)))
		require.NotNil(t, artifact)
		require.True(t, (artifact.Runestone != nil) != (artifact.Cenotaph != nil),
			"exactly one of runestone or cenotaph must be set")
	}
}
