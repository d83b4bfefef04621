package getter

import (
	"github.com/btcsuite/btcd/wire"
)

// CappedGetter bounds the latest height an inner block source reports.
// Test runs use it to stop the indexer at a fixed block.
type CappedGetter struct {
	inner BlockGetter
	limit uint
}

func NewCappedGetter(inner BlockGetter, limit uint) *CappedGetter {
	return &CappedGetter{inner: inner, limit: limit}
}

func (g *CappedGetter) GetLatestBlockHeight() (uint, error) {
	height, err := g.inner.GetLatestBlockHeight()
	if err != nil {
		return 0, err
	}
	if height > g.limit {
		height = g.limit
	}
	return height, nil
}

func (g *CappedGetter) GetBlockHash(height uint) (string, error) {
	return g.inner.GetBlockHash(height)
}

func (g *CappedGetter) GetBlock(height uint) (*wire.MsgBlock, error) {
	return g.inner.GetBlock(height)
}
