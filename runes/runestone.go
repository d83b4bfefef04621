package runes

import (
	"bytes"
	"errors"

	leb128 "github.com/aviate-labs/leb128"
	uint256 "github.com/holiman/uint256"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Runestone is a well-formed protocol message carried in the first
// output whose script starts OP_RETURN OP_13.
type Runestone struct {
	Edicts  []Edict
	Etching *Etching
	Mint    *RuneId
	Pointer *uint32
}

var (
	errVarintOverlong = errors.New("overlong varint")
	errVarintOverflow = errors.New("varint overflows u128")
)

// Decipher decodes the protocol message of a transaction. It returns
// nil if the transaction carries none, and never fails: malformations
// decode to a cenotaph instead.
func Decipher(tx *wire.MsgTx) *Artifact {
	payload, payloadFlaw, found := runestonePayload(tx)
	if !found {
		return nil
	}
	if payloadFlaw != nil {
		return &Artifact{Cenotaph: &Cenotaph{Flaw: *payloadFlaw}}
	}

	integers, err := intSequence(payload)
	if err != nil {
		return &Artifact{Cenotaph: &Cenotaph{Flaw: FlawVarint}}
	}

	msg := messageFromIntegers(tx, integers)
	flaws := msg.flaws

	flags := new(uint256.Int)
	if v, ok := takeValue(msg.fields, TagFlags); ok {
		flags = v
	}
	etchingFlag := FlagEtching.take(flags)
	termsFlag := FlagTerms.take(flags)
	turbo := FlagTurbo.take(flags)

	var etching *Etching
	if etchingFlag {
		etching = takeEtching(msg.fields, termsFlag, turbo)
	}

	var mint *RuneId
	if id, ok := tagTake(msg.fields, TagMint, 2, func(values []*uint256.Int) (RuneId, bool) {
		if !values[0].IsUint64() {
			return RuneId{}, false
		}
		if !values[1].IsUint64() || values[1].Uint64() > uint64(^uint32(0)) {
			return RuneId{}, false
		}
		return NewRuneId(values[0].Uint64(), uint32(values[1].Uint64()))
	}); ok {
		mint = &id
	}

	var pointer *uint32
	if p, ok := tagTake(msg.fields, TagPointer, 1, func(values []*uint256.Int) (uint32, bool) {
		if !values[0].IsUint64() || values[0].Uint64() >= uint64(len(tx.TxOut)) {
			return 0, false
		}
		return uint32(values[0].Uint64()), true
	}); ok {
		pointer = &p
	}

	if etching != nil {
		if _, ok := etching.Supply(); !ok {
			flaws.add(FlawSupplyOverflow)
		}
	}
	if !flags.IsZero() {
		flaws.add(FlawUnrecognizedFlag)
	}
	for tag := range msg.fields {
		if tag%2 == 0 {
			flaws.add(FlawUnrecognizedEvenTag)
		}
	}

	if !flaws.empty() {
		cenotaph := &Cenotaph{Flaw: flaws.first(), Mint: mint}
		if etching != nil {
			cenotaph.Etching = etching.Rune
		}
		return &Artifact{Cenotaph: cenotaph}
	}

	return &Artifact{Runestone: &Runestone{
		Edicts:  msg.edicts,
		Etching: etching,
		Mint:    mint,
		Pointer: pointer,
	}}
}

func takeEtching(f fields, termsFlag, turbo bool) *Etching {
	e := &Etching{Turbo: turbo}
	if d, ok := tagTake(f, TagDivisibility, 1, func(values []*uint256.Int) (uint8, bool) {
		if !values[0].IsUint64() || values[0].Uint64() > uint64(MaxDivisibility) {
			return 0, false
		}
		return uint8(values[0].Uint64()), true
	}); ok {
		e.Divisibility = &d
	}
	if premine, ok := takeValue(f, TagPremine); ok {
		e.Premine = premine
	}
	if name, ok := takeValue(f, TagRune); ok {
		e.Rune = &Rune{Value: *name}
	}
	if spacers, ok := tagTake(f, TagSpacers, 1, func(values []*uint256.Int) (uint32, bool) {
		if !values[0].IsUint64() || values[0].Uint64() > uint64(maxSpacers) {
			return 0, false
		}
		return uint32(values[0].Uint64()), true
	}); ok {
		e.Spacers = &spacers
	}
	if symbol, ok := tagTake(f, TagSymbol, 1, func(values []*uint256.Int) (rune, bool) {
		if !values[0].IsUint64() || values[0].Uint64() > uint64(^uint32(0)) {
			return 0, false
		}
		c := rune(values[0].Uint64())
		if !validRune(c) {
			return 0, false
		}
		return c, true
	}); ok {
		e.Symbol = &symbol
	}
	if termsFlag {
		t := &Terms{}
		if amount, ok := takeValue(f, TagAmount); ok {
			t.Amount = amount
		}
		if cap_, ok := takeValue(f, TagCap); ok {
			t.Cap = cap_
		}
		if h, ok := takeUint64(f, TagHeightStart); ok {
			t.HeightStart = &h
		}
		if h, ok := takeUint64(f, TagHeightEnd); ok {
			t.HeightEnd = &h
		}
		if o, ok := takeUint64(f, TagOffsetStart); ok {
			t.OffsetStart = &o
		}
		if o, ok := takeUint64(f, TagOffsetEnd); ok {
			t.OffsetEnd = &o
		}
		e.Terms = t
	}
	return e
}

// validRune reports whether c is a unicode scalar value, mirroring the
// symbol range a char may take.
func validRune(c rune) bool {
	return c >= 0 && c <= 0x10FFFF && !(c >= 0xD800 && c <= 0xDFFF)
}

type message struct {
	flaws  flawSet
	fields fields
	edicts []Edict
}

// messageFromIntegers splits the integer sequence into tagged fields
// and, after TagBody, delta-encoded edict groups of four.
func messageFromIntegers(tx *wire.MsgTx, payload []*uint256.Int) message {
	m := message{fields: fields{}}
	for i := 0; i < len(payload); i += 2 {
		tagValue := payload[i]
		if !tagValue.IsUint64() {
			// Tags beyond 64 bits can never be recognized. Even ones
			// still poison the message.
			if i+1 >= len(payload) {
				m.flaws.add(FlawTruncatedField)
				break
			}
			if tagValue[0]&1 == 0 {
				m.flaws.add(FlawUnrecognizedEvenTag)
			}
			continue
		}
		tag := Tag(tagValue.Uint64())

		if tag == TagBody {
			var id RuneId
			rest := payload[i+1:]
			for len(rest) > 0 {
				if len(rest) < 4 {
					m.flaws.add(FlawTrailingIntegers)
					break
				}
				next, ok := id.next(rest[0], rest[1])
				if !ok {
					m.flaws.add(FlawEdictRuneId)
					break
				}
				edict, ok := newEdict(tx, next, rest[2], rest[3])
				if !ok {
					m.flaws.add(FlawEdictOutput)
					break
				}
				id = next
				m.edicts = append(m.edicts, edict)
				rest = rest[4:]
			}
			break
		}

		if i+1 >= len(payload) {
			m.flaws.add(FlawTruncatedField)
			break
		}
		m.fields[tag] = append(m.fields[tag], payload[i+1])
	}
	return m
}

// runestonePayload finds the first marker output and concatenates its
// data pushes. The second return is set when the output is marked but
// unparseable, which makes the transaction a cenotaph.
func runestonePayload(tx *wire.MsgTx) ([]byte, *Flaw, bool) {
	for _, out := range tx.TxOut {
		script := out.PkScript
		if len(script) < 2 || script[0] != txscript.OP_RETURN || script[1] != txscript.OP_13 {
			continue
		}
		payload := []byte{}
		tokenizer := txscript.MakeScriptTokenizer(0, script[2:])
		for tokenizer.Next() {
			if tokenizer.Opcode() > txscript.OP_PUSHDATA4 {
				flaw := FlawOpcode
				return nil, &flaw, true
			}
			payload = append(payload, tokenizer.Data()...)
		}
		if tokenizer.Err() != nil {
			flaw := FlawInvalidScript
			return nil, &flaw, true
		}
		return payload, nil, true
	}
	return nil, nil, false
}

// intSequence decodes the payload as consecutive LEB128 integers.
// Values are bounded to 128 bits and encodings to 19 bytes.
func intSequence(payload []byte) ([]*uint256.Int, error) {
	var integers []*uint256.Int
	r := bytes.NewReader(payload)
	for r.Len() > 0 {
		before := r.Len()
		decoded, err := leb128.DecodeUnsigned(r)
		if err != nil {
			return nil, err
		}
		if before-r.Len() > 19 {
			return nil, errVarintOverlong
		}
		v, overflow := uint256.FromBig(decoded)
		if overflow || v.BitLen() > 128 {
			return nil, errVarintOverflow
		}
		integers = append(integers, v)
	}
	return integers, nil
}
