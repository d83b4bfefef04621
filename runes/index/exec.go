package index

import (
	"encoding/binary"
	"fmt"
	"sort"

	uint256 "github.com/holiman/uint256"

	"github.com/RiemaLabs/modular-indexer-runes/runes"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Exec applies one block to the ledger through the header's write
// set. Malformed messages burn per protocol rules rather than
// failing; the only error is ErrOverflow, which leaves the header's
// write set for the caller to undo. A corrupt stored value is
// unrecoverable and panics.
func Exec(header *Header, block *wire.MsgBlock, height uint) error {
	u := &runeUpdater{
		header:    header,
		height:    uint64(height),
		blockTime: uint64(block.Header.Timestamp.Unix()),
		minimum:   runes.MinimumAt(uint64(height)),
		burned:    make(map[runes.RuneId]*uint256.Int),
	}
	for i, tx := range block.Transactions {
		if err := u.indexTx(uint32(i), tx); err != nil {
			return err
		}
	}
	return u.flushBurned()
}

type runeUpdater struct {
	header    *Header
	height    uint64
	blockTime uint64
	minimum   runes.Rune
	burned    map[runes.RuneId]*uint256.Int
}

func (u *runeUpdater) indexTx(txIndex uint32, tx *wire.MsgTx) error {
	artifact := runes.Decipher(tx)
	unallocated, err := u.unallocated(tx)
	if err != nil {
		return err
	}
	allocated := make([]map[runes.RuneId]*uint256.Int, len(tx.TxOut))
	for i := range allocated {
		allocated[i] = make(map[runes.RuneId]*uint256.Int)
	}

	var etchedId runes.RuneId
	var etchedRune runes.Rune
	etched := false

	if artifact != nil {
		if mintId := artifact.Mint(); mintId != nil {
			if amount, ok := u.mint(*mintId); ok {
				if err := addBalance(unallocated, *mintId, amount); err != nil {
					return err
				}
			}
		}

		etchedId, etchedRune, etched = u.etched(txIndex, artifact)

		if rs := artifact.Runestone; rs != nil {
			if etched && rs.Etching.Premine != nil {
				if err := addBalance(unallocated, etchedId, rs.Etching.Premine); err != nil {
					return err
				}
			}
			for _, edict := range rs.Edicts {
				u.applyEdict(tx, edict, unallocated, allocated, etchedId, etched)
			}
		}

		if etched {
			u.createRuneEntry(tx, artifact, etchedId, etchedRune)
		}
	}

	if artifact != nil && artifact.Cenotaph != nil {
		// Input and minted runes of a cenotaph are burned.
		for id, balance := range unallocated {
			if err := addBalance(u.burned, id, balance); err != nil {
				return err
			}
		}
	} else {
		// Leftovers go to the pointer output, or the first
		// non-OP_RETURN output when no pointer is set.
		var pointer *uint32
		if artifact != nil {
			pointer = artifact.Runestone.Pointer
		}
		vout := -1
		if pointer != nil {
			vout = int(*pointer)
		} else {
			for i, out := range tx.TxOut {
				if !isOpReturn(out.PkScript) {
					vout = i
					break
				}
			}
		}
		if vout >= 0 {
			for id, balance := range unallocated {
				if !balance.IsZero() {
					if err := addBalance(allocated[vout], id, balance); err != nil {
						return err
					}
				}
			}
		} else {
			for id, balance := range unallocated {
				if !balance.IsZero() {
					if err := addBalance(u.burned, id, balance); err != nil {
						return err
					}
				}
			}
		}
	}

	txid := tx.TxHash()
	for vout, balances := range allocated {
		if len(balances) == 0 {
			continue
		}
		if isOpReturn(tx.TxOut[vout].PkScript) {
			for id, balance := range balances {
				if err := addBalance(u.burned, id, balance); err != nil {
					return err
				}
			}
			continue
		}
		outpoint := wire.OutPoint{Hash: txid, Index: uint32(vout)}
		u.header.insert(balanceKey(outpoint), packBalances(balances))
	}
	return nil
}

// unallocated drains the rune balances of every spent input.
func (u *runeUpdater) unallocated(tx *wire.MsgTx) (map[runes.RuneId]*uint256.Int, error) {
	unallocated := make(map[runes.RuneId]*uint256.Int)
	for _, in := range tx.TxIn {
		key := balanceKey(in.PreviousOutPoint)
		value, ok := u.header.get(key)
		if !ok {
			continue
		}
		balances, err := unpackBalances(value)
		if err != nil {
			panic(fmt.Sprintf("balance record of %v: %v", in.PreviousOutPoint, err))
		}
		u.header.remove(key)
		for id, amount := range balances {
			if err := addBalance(unallocated, id, amount); err != nil {
				return nil, err
			}
		}
	}
	return unallocated, nil
}

// mint increments the mint counter and returns the minted amount if
// the entry exists and its terms allow a mint at this height. The
// counter advances even when the minted amount ends up burned.
func (u *runeUpdater) mint(id runes.RuneId) (*uint256.Int, bool) {
	value, ok := u.header.get(entryKey(id))
	if !ok {
		return nil, false
	}
	entry := mustEntry(value)
	amount, mintErr := entry.Mintable(u.height)
	if mintErr != nil {
		return nil, false
	}
	entry.Mints = new(uint256.Int).AddUint64(entry.Mints, 1)
	u.header.insert(entryKey(id), mustEntryBytes(entry))
	return amount, true
}

// etched decides whether this transaction etches a rune and under
// which name. A declared name must be unlocked at this height, not
// reserved, and not already taken; an undeclared name is allocated
// from the reserved range.
func (u *runeUpdater) etched(txIndex uint32, artifact *runes.Artifact) (runes.RuneId, runes.Rune, bool) {
	var declared *runes.Rune
	switch {
	case artifact.Runestone != nil:
		if artifact.Runestone.Etching == nil {
			return runes.RuneId{}, runes.Rune{}, false
		}
		declared = artifact.Runestone.Etching.Rune
	case artifact.Cenotaph != nil:
		if artifact.Cenotaph.Etching == nil {
			return runes.RuneId{}, runes.Rune{}, false
		}
		declared = artifact.Cenotaph.Etching
	}

	var name runes.Rune
	if declared != nil {
		name = *declared
		if name.Value.Lt(&u.minimum.Value) || name.IsReserved() {
			return runes.RuneId{}, runes.Rune{}, false
		}
		if _, taken := u.header.get(nameKey(name)); taken {
			return runes.RuneId{}, runes.Rune{}, false
		}
	} else {
		name = runes.Reserved(u.height, txIndex)
	}
	return runes.RuneId{Block: u.height, Tx: txIndex}, name, true
}

func (u *runeUpdater) createRuneEntry(tx *wire.MsgTx, artifact *runes.Artifact, id runes.RuneId, name runes.Rune) {
	u.header.insert(nameKey(name), id.Bytes())

	count := u.runeCount()
	var next [8]byte
	binary.BigEndian.PutUint64(next[:], count+1)
	u.header.insert(countKey, next[:])

	entry := &RuneEntry{
		Id:          id,
		SpacedRune:  runes.SpacedRune{Rune: name},
		EtchingTxid: tx.TxHash().String(),
		Premine:     uint256.NewInt(0),
		Mints:       uint256.NewInt(0),
		Burned:      uint256.NewInt(0),
		Number:      count,
		Timestamp:   u.blockTime,
	}
	// A cenotaph etching reserves the name but the entry stays
	// unmintable with every field defaulted.
	if artifact.Runestone != nil {
		etching := artifact.Runestone.Etching
		if etching.Divisibility != nil {
			entry.Divisibility = *etching.Divisibility
		}
		if etching.Premine != nil {
			entry.Premine = new(uint256.Int).Set(etching.Premine)
		}
		if etching.Spacers != nil {
			entry.SpacedRune.Spacers = *etching.Spacers
		}
		entry.Symbol = etching.Symbol
		entry.Terms = etching.Terms
		entry.Turbo = etching.Turbo
	}
	u.header.insert(entryKey(id), mustEntryBytes(entry))
}

func (u *runeUpdater) applyEdict(
	tx *wire.MsgTx,
	edict runes.Edict,
	unallocated map[runes.RuneId]*uint256.Int,
	allocated []map[runes.RuneId]*uint256.Int,
	etchedId runes.RuneId,
	etched bool,
) {
	id := edict.Id
	if id == (runes.RuneId{}) {
		// 0:0 targets the rune etched by this very transaction.
		if !etched {
			return
		}
		id = etchedId
	}
	balance, ok := unallocated[id]
	if !ok {
		return
	}

	// Allocations never exceed the drained balance, so the sums stay
	// within u128.
	allocate := func(amount *uint256.Int, vout int) {
		if amount.IsZero() {
			return
		}
		balance.Sub(balance, amount)
		if existing, ok := allocated[vout][id]; ok {
			existing.Add(existing, amount)
		} else {
			allocated[vout][id] = new(uint256.Int).Set(amount)
		}
	}

	if int(edict.Output) == len(tx.TxOut) {
		var destinations []int
		for vout, out := range tx.TxOut {
			if !isOpReturn(out.PkScript) {
				destinations = append(destinations, vout)
			}
		}
		if len(destinations) == 0 {
			return
		}
		if edict.Amount.IsZero() {
			// Split the whole balance evenly, early outputs taking
			// the remainder.
			count := uint256.NewInt(uint64(len(destinations)))
			share := new(uint256.Int)
			remainder := new(uint256.Int)
			share.DivMod(balance, count, remainder)
			extra := remainder.Uint64()
			for i, vout := range destinations {
				amount := new(uint256.Int).Set(share)
				if uint64(i) < extra {
					amount.AddUint64(amount, 1)
				}
				allocate(amount, vout)
			}
		} else {
			for _, vout := range destinations {
				allocate(capAt(edict.Amount, balance), vout)
			}
		}
		return
	}

	if edict.Amount.IsZero() {
		allocate(new(uint256.Int).Set(balance), int(edict.Output))
	} else {
		allocate(capAt(edict.Amount, balance), int(edict.Output))
	}
}

// capAt returns a copy of amount clamped to the available balance.
func capAt(amount, balance *uint256.Int) *uint256.Int {
	if balance.Lt(amount) {
		return new(uint256.Int).Set(balance)
	}
	return new(uint256.Int).Set(amount)
}

// flushBurned adds burned amounts to their entries in id order, so
// the write set is identical on every replay of the block.
func (u *runeUpdater) flushBurned() error {
	ids := make([]runes.RuneId, 0, len(u.burned))
	for id := range u.burned {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
	for _, id := range ids {
		value, ok := u.header.get(entryKey(id))
		if !ok {
			continue
		}
		entry := mustEntry(value)
		burned, ok := runes.CheckedAdd(entry.Burned, u.burned[id])
		if !ok {
			return ErrOverflow
		}
		entry.Burned = burned
		u.header.insert(entryKey(id), mustEntryBytes(entry))
	}
	return nil
}

func (u *runeUpdater) runeCount() uint64 {
	value, ok := u.header.get(countKey)
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint64(value)
}

func addBalance(m map[runes.RuneId]*uint256.Int, id runes.RuneId, amount *uint256.Int) error {
	if existing, ok := m[id]; ok {
		sum, ok := runes.CheckedAdd(existing, amount)
		if !ok {
			return ErrOverflow
		}
		existing.Set(sum)
		return nil
	}
	m[id] = new(uint256.Int).Set(amount)
	return nil
}

func isOpReturn(pkScript []byte) bool {
	return len(pkScript) > 0 && pkScript[0] == txscript.OP_RETURN
}

func mustEntry(value []byte) *RuneEntry {
	entry, err := entryFromBytes(value)
	if err != nil {
		panic(fmt.Sprintf("rune entry: %v", err))
	}
	return entry
}

func mustEntryBytes(entry *RuneEntry) []byte {
	b, err := entry.bytes()
	if err != nil {
		panic(fmt.Sprintf("encode rune entry: %v", err))
	}
	return b
}
