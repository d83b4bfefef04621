package index

import (
	"bytes"
	"fmt"
	"log"

	"github.com/RiemaLabs/modular-indexer-runes/runes/getter"
)

// DefaultConfirmations is how many trailing blocks the queue can
// undo. One extra anchor state is retained beyond this so a
// recoverable reorg can be told apart from one that reaches past the
// history.
const DefaultConfirmations uint = 6

func (queue *Queue) StartHeight() uint {
	return queue.History[0].Height
}

func (queue *Queue) LatestHeight() uint {
	return queue.Header.Height
}

func (queue *Queue) Println() {
	log.Println("====", queue.Header.Height, "====", queue.Header.Hash, "====")
	for _, node := range queue.History {
		log.Print(node.Height, "*", node.Hash)
	}
}

// advanceHeader executes the block at height on top of the header and
// extends the commitment chain. The write set moves into the returned
// diff state and is cleared from the header. The block must declare
// the current tip as its parent; its hash is derived from the block
// itself, never fetched separately, so the ledger and the recorded
// hash always describe the same branch.
func advanceHeader(header *Header, g getter.BlockGetter, height uint) (DiffState, error) {
	block, err := g.GetBlock(height)
	if err != nil {
		return DiffState{}, err
	}
	if header.Hash != "" && block.Header.PrevBlock.String() != header.Hash {
		return DiffState{}, &ChainLinkageError{Height: height, Parent: block.Header.PrevBlock.String()}
	}
	hash := block.BlockHash().String()
	if err := Exec(header, block, height); err != nil {
		// Undo the partial write set so the header stays at the
		// pre-block state.
		partial := DiffState{Height: height, Hash: hash, Access: header.Access}
		rollback(header, &partial)
		header.resetAccess()
		return DiffState{}, err
	}
	header.Commit = chainCommit(header.Commit, hash, header.Access)
	state := DiffState{
		Height: height,
		Hash:   hash,
		Access: header.Access,
		Commit: header.Commit,
	}
	header.Height = height
	header.Hash = hash
	header.resetAccess()
	return state, nil
}

// ApplyBlock executes one block and commits it to the ledger database
// immediately. Catchup uses it for blocks below the rollback window,
// where the chain is final.
func ApplyBlock(header *Header, g getter.BlockGetter, height uint) error {
	state, err := advanceHeader(header, g, height)
	if err != nil {
		return err
	}
	return header.commitDiff(&state)
}

// NewQueue executes depth+1 blocks from startHeight so the history is
// full from the first Update. None of them reach the ledger database
// yet; a diff state is committed only when it leaves the history, so
// the stored tip stays at startHeight-1 and a restart can rebuild the
// whole window by replaying from the store.
func NewQueue(g getter.BlockGetter, header *Header, startHeight uint, depth uint) (*Queue, error) {
	queue := &Queue{
		Header:  header,
		History: make([]DiffState, depth+1),
	}
	for i := startHeight; i <= startHeight+depth; i++ {
		state, err := advanceHeader(header, g, i)
		if err != nil {
			return nil, err
		}
		queue.History[i-startHeight] = state
	}
	return queue, nil
}

// Update advances the tip to latestHeight. Each new block shifts the
// oldest retained state out of the history; that state is final by
// then and is flushed to the ledger database before the shift.
func (queue *Queue) Update(g getter.BlockGetter, latestHeight uint) error {
	queue.Lock()
	defer queue.Unlock()
	curHeight := queue.Header.Height
	for i := curHeight + 1; i <= latestHeight; i++ {
		// The oldest retained state is final once this block lands.
		// Flushing it first keeps the tip and the undo window in step
		// when either the store write or the execution fails.
		if err := queue.Header.commitDiff(&queue.History[0]); err != nil {
			return err
		}
		state, err := advanceHeader(queue.Header, g, i)
		if err != nil {
			return err
		}
		copy(queue.History, queue.History[1:])
		queue.History[len(queue.History)-1] = state
	}
	return nil
}

// CheckForReorg returns the first retained height whose hash no
// longer matches the chain. A mismatch at the anchor state means the
// reorg reaches past the history and cannot be undone.
func (queue *Queue) CheckForReorg(g getter.BlockGetter) (uint, error) {
	queue.Lock()
	defer queue.Unlock()
	for i := 0; i <= len(queue.History)-1; i++ {
		state := queue.History[i]
		newHash, err := g.GetBlockHash(state.Height)
		if err != nil {
			return 0, err
		}
		if state.Hash == newHash {
			continue
		}
		if i == 0 {
			return 0, &BlockVerificationError{Height: state.Height}
		}
		return state.Height, nil
	}
	return 0, nil
}

// Recovery undoes every block from the tip down to reorgHeight and
// replays the replacement branch over the same history slots. The
// undone blocks never reached the ledger database, so recovery is an
// in-memory operation.
func (queue *Queue) Recovery(g getter.BlockGetter, reorgHeight uint) error {
	queue.Lock()
	defer queue.Unlock()
	curHeight := queue.Header.Height
	startHeight := queue.StartHeight()
	if reorgHeight <= startHeight || reorgHeight > curHeight {
		return &BlockVerificationError{Height: reorgHeight}
	}

	for i := curHeight; i >= reorgHeight; i-- {
		pastState := queue.History[i-startHeight]
		rollback(queue.Header, &pastState)
	}
	parent := queue.History[reorgHeight-1-startHeight]
	queue.Header.Height = parent.Height
	queue.Header.Hash = parent.Hash
	queue.Header.Commit = parent.Commit
	queue.Header.resetAccess()

	for i := reorgHeight; i <= curHeight; i++ {
		state, err := advanceHeader(queue.Header, g, i)
		if err != nil {
			return err
		}
		queue.History[i-startHeight] = state
	}
	return nil
}

// rollback restores the pre-block value of every key a diff state
// touched. The recorded post-value must match the live ledger, or the
// rollback information has diverged from the state it describes.
func rollback(header *Header, state *DiffState) {
	elements := state.Access.Elements
	for i := len(elements) - 1; i >= 0; i-- {
		elem := elements[i]
		current, exists := header.KV[string(elem.Key)]
		switch {
		case elem.NewValue == nil && exists:
			panic(fmt.Sprintf("rollback at height %d: key %x should be absent", state.Height, elem.Key))
		case elem.NewValue != nil && (!exists || !bytes.Equal(current, elem.NewValue)):
			panic(fmt.Sprintf("rollback at height %d: key %x diverged", state.Height, elem.Key))
		}
		if elem.OldValueExists {
			header.KV[string(elem.Key)] = elem.OldValue
		} else {
			delete(header.KV, string(elem.Key))
		}
	}
}
