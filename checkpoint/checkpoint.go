package checkpoint

import (
	"fmt"
)

// IndexerIdentification carries the identity an indexer attaches to
// every checkpoint it publishes.
type IndexerIdentification struct {
	URL          string
	Name         string
	Version      string
	MetaProtocol string
}

// Checkpoint is the unit of publication: the chained commitment of the
// ledger at one block, attributed to an identified indexer. Verifiers
// compare checkpoints from independent indexers at the same height and
// hash to detect divergence.
type Checkpoint struct {
	// Hex of the chained state commitment.
	Commitment string `json:"commitment"`
	// Hex of the block hash the commitment covers.
	Hash string `json:"hash"`
	// Block height the commitment covers, in decimal.
	Height string `json:"height"`
	// Protocol name used by the indexer, fixed as "runes" now.
	MetaProtocol string `json:"metaProtocol"`
	// Name of the indexer.
	Name string `json:"name"`
	// URL of the indexer service.
	URL string `json:"url"`
	// Version number of the indexer.
	Version string `json:"version"`
}

type UploadRecord struct {
	Success bool
}

// UploadHistory deduplicates uploads across ticks, keyed by the
// decimal height concatenated with the block hash.
type UploadHistory = map[string]UploadRecord

func NewCheckpoint(indexID *IndexerIdentification, height uint, hash string, commitment string) Checkpoint {
	blockHeight := fmt.Sprintf("%d", height)
	content := Checkpoint{
		URL:          indexID.URL,
		Name:         indexID.Name,
		Version:      indexID.Version,
		MetaProtocol: indexID.MetaProtocol,
		Height:       blockHeight,
		Hash:         hash,
		Commitment:   commitment,
	}
	return content
}
