package index

import (
	"sync"

	"github.com/RiemaLabs/modular-indexer-runes/internal/kvstore"
)

// TripleElement records one ledger write. A nil NewValue is a
// deletion; OldValueExists distinguishes an overwritten key from a
// created one so the write can be undone exactly.
type TripleElement struct {
	Key            []byte
	OldValue       []byte
	NewValue       []byte
	OldValueExists bool
}

type AccessList struct {
	Elements []TripleElement
}

// DiffState is the retained rollback record of one block: the writes
// it made, its hash, and the chained commitment after applying it.
type DiffState struct {
	Height uint
	Hash   string
	Access AccessList
	Commit [32]byte
}

type KeyValueMap = map[string][]byte

// Header is the live ledger at the tip. KV holds the full state,
// Access the writes of the block currently being executed.
type Header struct {
	Height uint
	Hash   string
	Commit [32]byte

	KV     KeyValueMap
	Access AccessList

	// touched maps keys to their slot in Access so repeated writes to
	// one key within a block coalesce into a single element.
	touched map[string]int

	store *kvstore.ByteMap
}

// Queue couples the tip header with the retained diff states, oldest
// first. History[0] is the anchor: a hash mismatch there means the
// reorg predates everything we can undo.
type Queue struct {
	Header  *Header
	History []DiffState
	sync.RWMutex
}

func NewHeader(store *kvstore.ByteMap) *Header {
	return &Header{
		KV:      make(KeyValueMap),
		touched: make(map[string]int),
		store:   store,
	}
}

func (h *Header) get(key []byte) ([]byte, bool) {
	value, ok := h.KV[string(key)]
	return value, ok
}

func (h *Header) insert(key []byte, value []byte) {
	h.record(key, value)
	h.KV[string(key)] = value
}

func (h *Header) remove(key []byte) {
	h.record(key, nil)
	delete(h.KV, string(key))
}

func (h *Header) record(key []byte, newValue []byte) {
	s := string(key)
	if i, ok := h.touched[s]; ok {
		h.Access.Elements[i].NewValue = newValue
		return
	}
	old, exists := h.KV[s]
	h.touched[s] = len(h.Access.Elements)
	h.Access.Elements = append(h.Access.Elements, TripleElement{
		Key:            append([]byte(nil), key...),
		OldValue:       old,
		NewValue:       newValue,
		OldValueExists: exists,
	})
}

// resetAccess clears the per-block write set after it has been
// snapshotted into a DiffState.
func (h *Header) resetAccess() {
	h.Access = AccessList{}
	h.touched = make(map[string]int)
}

func (state DiffState) Copy() DiffState {
	newElements := make([]TripleElement, len(state.Access.Elements))
	copy(newElements, state.Access.Elements)
	return DiffState{
		Height: state.Height,
		Hash:   state.Hash,
		Access: AccessList{Elements: newElements},
		Commit: state.Commit,
	}
}
