package getter

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/wire"
)

// MemoryBlockGetter serves handcrafted blocks keyed by height, for
// tests and local experiments. Overwriting a height simulates a
// reorganization: the hash served afterwards is the new block's.
type MemoryBlockGetter struct {
	mu     sync.RWMutex
	blocks map[uint]*wire.MsgBlock
	latest uint
}

func NewMemoryBlockGetter() *MemoryBlockGetter {
	return &MemoryBlockGetter{
		blocks: make(map[uint]*wire.MsgBlock),
	}
}

func (m *MemoryBlockGetter) SetBlock(height uint, block *wire.MsgBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[height] = block
	if height > m.latest {
		m.latest = height
	}
}

// SetLatest lowers or raises the served tip without touching blocks.
func (m *MemoryBlockGetter) SetLatest(height uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = height
}

func (m *MemoryBlockGetter) GetLatestBlockHeight() (uint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, nil
}

func (m *MemoryBlockGetter) GetBlockHash(blockHeight uint) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	block, ok := m.blocks[blockHeight]
	if !ok {
		return "", &RpcError{Kind: RpcEndpoint, Err: fmt.Errorf("no block at height %d", blockHeight)}
	}
	return block.BlockHash().String(), nil
}

func (m *MemoryBlockGetter) GetBlock(blockHeight uint) (*wire.MsgBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	block, ok := m.blocks[blockHeight]
	if !ok {
		return nil, &RpcError{Kind: RpcEndpoint, Err: fmt.Errorf("no block at height %d", blockHeight)}
	}
	return block, nil
}
