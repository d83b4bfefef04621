package index

import (
	"sort"

	uint256 "github.com/holiman/uint256"

	"github.com/RiemaLabs/modular-indexer-runes/runes"
	"github.com/btcsuite/btcd/wire"
)

// Read helpers over a header. Callers synchronize through the owning
// queue; these do not lock.

// EntriesPageSize is the number of rune entries one page returns.
const EntriesPageSize = 50

type OutpointBalance struct {
	Id     runes.RuneId
	Amount *uint256.Int
}

func GetRuneEntry(header *Header, id runes.RuneId) (*RuneEntry, bool) {
	value, ok := header.get(entryKey(id))
	if !ok {
		return nil, false
	}
	return mustEntry(value), true
}

func GetRuneIdByName(header *Header, name runes.Rune) (runes.RuneId, bool) {
	value, ok := header.get(nameKey(name))
	if !ok {
		return runes.RuneId{}, false
	}
	id, err := runes.NewRuneIdFromBytes(value)
	if err != nil {
		return runes.RuneId{}, false
	}
	return id, true
}

// GetRuneEntries returns the given zero-based page of entries in
// etching order and whether more pages follow. Big-endian entry keys
// sort exactly like their ids, so the order is stable across calls.
func GetRuneEntries(header *Header, page uint) ([]*RuneEntry, bool) {
	prefix := string(entryKeyPrefix)
	keys := make([]string, 0)
	for key := range header.KV {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	start := int(page) * EntriesPageSize
	if start >= len(keys) {
		return nil, false
	}
	end := start + EntriesPageSize
	more := end < len(keys)
	if end > len(keys) {
		end = len(keys)
	}
	entries := make([]*RuneEntry, 0, end-start)
	for _, key := range keys[start:end] {
		entries = append(entries, mustEntry(header.KV[key]))
	}
	return entries, more
}

// GetOutpointBalances returns the rune holdings of an unspent
// transaction output in id order.
func GetOutpointBalances(header *Header, outpoint wire.OutPoint) []OutpointBalance {
	value, ok := header.get(balanceKey(outpoint))
	if !ok {
		return nil
	}
	unpacked, err := unpackBalances(value)
	if err != nil {
		return nil
	}
	balances := make([]OutpointBalance, 0, len(unpacked))
	for id, amount := range unpacked {
		balances = append(balances, OutpointBalance{Id: id, Amount: amount})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Id.Cmp(balances[j].Id) < 0 })
	return balances
}

func GetRuneCount(header *Header) uint64 {
	u := runeUpdater{header: header}
	return u.runeCount()
}
