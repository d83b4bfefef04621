package apis

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/RiemaLabs/modular-indexer-runes/runes"
	"github.com/RiemaLabs/modular-indexer-runes/runes/index"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const defaultSymbol = "¤"

// parseRuneIdQuery accepts either id=<block>:<tx>, the block and tx
// parameters separately, or name=<spaced name>. The caller holds the
// queue lock.
func parseRuneIdQuery(c *gin.Context, header *index.Header) (runes.RuneId, error) {
	if id := c.DefaultQuery("id", ""); id != "" {
		return runes.NewRuneIdFromString(id)
	}
	if name := c.DefaultQuery("name", ""); name != "" {
		spaced, err := runes.NewSpacedRuneFromString(name)
		if err != nil {
			return runes.RuneId{}, err
		}
		id, ok := index.GetRuneIdByName(header, spaced.Rune)
		if !ok {
			return runes.RuneId{}, fmt.Errorf("rune %q is not etched", name)
		}
		return id, nil
	}
	blockStr := c.DefaultQuery("block", "")
	txStr := c.DefaultQuery("tx", "")
	if blockStr == "" || txStr == "" {
		return runes.RuneId{}, fmt.Errorf("missing id, name, or block and tx parameters")
	}
	block, err := strconv.ParseUint(blockStr, 10, 64)
	if err != nil {
		return runes.RuneId{}, fmt.Errorf("invalid block %q", blockStr)
	}
	tx, err := strconv.ParseUint(txStr, 10, 32)
	if err != nil {
		return runes.RuneId{}, fmt.Errorf("invalid tx %q", txStr)
	}
	id, ok := runes.NewRuneId(block, uint32(tx))
	if !ok {
		return runes.RuneId{}, fmt.Errorf("invalid rune id %s:%s", blockStr, txStr)
	}
	return id, nil
}

func parseOutpointQuery(c *gin.Context) (wire.OutPoint, error) {
	txid := c.DefaultQuery("txid", "")
	voutStr := c.DefaultQuery("vout", "")
	if txid == "" || voutStr == "" {
		return wire.OutPoint{}, fmt.Errorf("missing txid or vout parameters")
	}
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("invalid txid %q", txid)
	}
	vout, err := strconv.ParseUint(voutStr, 10, 32)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("invalid vout %q", voutStr)
	}
	return wire.OutPoint{Hash: *hash, Index: uint32(vout)}, nil
}

func entryToJSON(entry *index.RuneEntry, nextHeight uint64) RuneEntryJSON {
	symbol := defaultSymbol
	if entry.Symbol != nil {
		symbol = string(*entry.Symbol)
	}
	_, mintErr := entry.Mintable(nextHeight)
	out := RuneEntryJSON{
		Id:           entry.Id.String(),
		Name:         entry.SpacedRune.String(),
		Symbol:       symbol,
		Divisibility: entry.Divisibility,
		EtchingTxid:  entry.EtchingTxid,
		Height:       entry.Id.Block,
		Number:       entry.Number,
		Timestamp:    entry.Timestamp,
		Premine:      entry.Premine.Dec(),
		Mints:        entry.Mints.Dec(),
		Burned:       entry.Burned.Dec(),
		Supply:       entry.Supply().Dec(),
		Mintable:     mintErr == nil,
		Turbo:        entry.Turbo,
	}
	if entry.Terms != nil {
		terms := &RuneTermsJSON{
			HeightStart: entry.Terms.HeightStart,
			HeightEnd:   entry.Terms.HeightEnd,
			OffsetStart: entry.Terms.OffsetStart,
			OffsetEnd:   entry.Terms.OffsetEnd,
		}
		if entry.Terms.Amount != nil {
			amount := entry.Terms.Amount.Dec()
			terms.Amount = &amount
		}
		if entry.Terms.Cap != nil {
			cap_ := entry.Terms.Cap.Dec()
			terms.Cap = &cap_
		}
		out.Terms = terms
	}
	return out
}
