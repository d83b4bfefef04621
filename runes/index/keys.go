package index

import (
	"encoding/binary"
	"sort"

	uint256 "github.com/holiman/uint256"

	"github.com/RiemaLabs/modular-indexer-runes/runes"
	"github.com/btcsuite/btcd/wire"
)

// Ledger keyspace. Prefixes keep each record family in its own
// contiguous, byte-ordered range.
//
//	e/<rune id>   -> encoded rune entry
//	b/<outpoint>  -> packed balances of the outpoint
//	r/<name>      -> rune id owning the name
//	s/tip         -> tip height, hash and commitment
//	s/count       -> number of etched runes
var (
	entryKeyPrefix   = []byte("e/")
	balanceKeyPrefix = []byte("b/")
	nameKeyPrefix    = []byte("r/")
	tipKey           = []byte("s/tip")
	countKey         = []byte("s/count")
)

func entryKey(id runes.RuneId) []byte {
	return append(append([]byte(nil), entryKeyPrefix...), id.Bytes()...)
}

func nameKey(name runes.Rune) []byte {
	key := make([]byte, 0, len(nameKeyPrefix)+16)
	key = append(key, nameKeyPrefix...)
	b := name.Value.Bytes32()
	return append(key, b[16:]...)
}

func balanceKey(outpoint wire.OutPoint) []byte {
	key := make([]byte, 0, len(balanceKeyPrefix)+36)
	key = append(key, balanceKeyPrefix...)
	key = append(key, outpoint.Hash[:]...)
	var vout [4]byte
	binary.BigEndian.PutUint32(vout[:], outpoint.Index)
	return append(key, vout[:]...)
}

// packBalances encodes an outpoint's holdings as fixed (id, amount)
// groups sorted by id, 44 bytes each.
func packBalances(balances map[runes.RuneId]*uint256.Int) []byte {
	ids := make([]runes.RuneId, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
	packed := make([]byte, 0, len(ids)*44)
	for _, id := range ids {
		packed = append(packed, id.Bytes()...)
		amount := balances[id].Bytes32()
		packed = append(packed, amount[:]...)
	}
	return packed
}

func unpackBalances(packed []byte) (map[runes.RuneId]*uint256.Int, error) {
	if len(packed)%44 != 0 {
		return nil, ErrCorruptValue
	}
	balances := make(map[runes.RuneId]*uint256.Int, len(packed)/44)
	for i := 0; i < len(packed); i += 44 {
		id, err := runes.NewRuneIdFromBytes(packed[i : i+12])
		if err != nil {
			return nil, err
		}
		amount := new(uint256.Int).SetBytes32(packed[i+12 : i+44])
		balances[id] = amount
	}
	return balances, nil
}
