package index

import (
	"encoding/binary"

	uint256 "github.com/holiman/uint256"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/RiemaLabs/modular-indexer-runes/runes"
)

// The protocol launches with one rune already etched: UNCOMMON•GOODS,
// id 1:0, minting one unit per transaction through the first halving
// epoch of the runes era.
var (
	GenesisRuneId = runes.RuneId{Block: 1, Tx: 0}
	GenesisRune   = runes.Rune{Value: *uint256.NewInt(2055900680524219742)}
)

func genesisRuneEntry() *RuneEntry {
	symbol := '⧉'
	heightStart := uint64(runes.RunesStartHeight)
	heightEnd := heightStart + 210000
	return &RuneEntry{
		Id:          GenesisRuneId,
		SpacedRune:  runes.SpacedRune{Rune: GenesisRune, Spacers: 128},
		Symbol:      &symbol,
		EtchingTxid: chainhash.Hash{}.String(),
		Terms: &runes.Terms{
			Amount:      uint256.NewInt(1),
			Cap:         runes.MaxU128(),
			HeightStart: &heightStart,
			HeightEnd:   &heightEnd,
		},
		Premine: uint256.NewInt(0),
		Mints:   uint256.NewInt(0),
		Burned:  uint256.NewInt(0),
		Turbo:   true,
	}
}

// seedGenesisRune writes the genesis rune into a fresh ledger and
// flushes it to the ledger database as the initial tip state, so a
// restore from the store carries it too.
func seedGenesisRune(header *Header) error {
	header.insert(nameKey(GenesisRune), GenesisRuneId.Bytes())
	var count [8]byte
	binary.BigEndian.PutUint64(count[:], 1)
	header.insert(countKey, count[:])
	header.insert(entryKey(GenesisRuneId), mustEntryBytes(genesisRuneEntry()))

	state := DiffState{
		Height: header.Height,
		Hash:   header.Hash,
		Access: header.Access,
		Commit: header.Commit,
	}
	if err := header.commitDiff(&state); err != nil {
		return err
	}
	header.resetAccess()
	return nil
}
