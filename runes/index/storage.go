package index

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/RiemaLabs/modular-indexer-runes/internal/kvstore"
	"github.com/RiemaLabs/modular-indexer-runes/internal/metrics"
)

const CachePath = ".cache"
const FileSuffix = ".dat"

// rebuildBatchSize bounds one leveldb batch while reloading a
// snapshot into the store.
const rebuildBatchSize = 10000

type headerSnapshot struct {
	Height uint
	Hash   string
	Commit [32]byte
	KV     KeyValueMap
}

type tipState struct {
	Height uint
	Hash   string
	Commit [32]byte
}

// LoadHeader restores the freshest available state: the store tip if
// the ledger database has one, otherwise the highest snapshot file,
// otherwise an empty header at initHeight.
func LoadHeader(store *kvstore.ByteMap, enableCache bool, initHeight uint) *Header {
	header := NewHeader(store)
	header.Height = initHeight

	if store != nil {
		restored, err := headerFromStore(store)
		if err != nil {
			log.Printf("Failed to restore the ledger database: %v", err)
		} else if restored != nil {
			log.Printf("Recovered from the ledger database at height %d", restored.Height)
			metrics.CurrentHeight.Set(float64(restored.Height))
			return restored
		}
	}

	if enableCache {
		height, ok := latestSnapshotHeight()
		if ok {
			restored, err := Deserialize(height)
			if err == nil {
				restored.store = store
				if err := rebuildStore(restored); err != nil {
					log.Printf("Failed to rebuild the ledger database: %v", err)
				} else {
					log.Printf("Recovered from cache at height %d", height)
					metrics.CurrentHeight.Set(float64(restored.Height))
					return restored
				}
			}
		}
	}

	if err := seedGenesisRune(header); err != nil {
		log.Printf("Failed to persist the genesis rune: %v", err)
	}
	metrics.CurrentHeight.Set(float64(header.Height))
	return header
}

// StoreHeader snapshots the header to .cache/<height>.dat and evicts
// snapshots below evictHeight.
func StoreHeader(header *Header, evictHeight uint) error {
	if err := os.MkdirAll(CachePath, 0755); err != nil {
		return err
	}
	fileName := fmt.Sprintf("%d%s", header.Height, FileSuffix)
	filePath := filepath.Join(CachePath, fileName)

	snapshot := headerSnapshot{
		Height: header.Height,
		Hash:   header.Hash,
		Commit: header.Commit,
		KV:     header.KV,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snapshot); err != nil {
		return err
	}
	if err := os.WriteFile(filePath, buf.Bytes(), 0644); err != nil {
		return err
	}
	log.Printf("Stored header at height %d", header.Height)

	entries, err := os.ReadDir(CachePath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != FileSuffix {
			continue
		}
		heightString := strings.TrimSuffix(entry.Name(), FileSuffix)
		height, err := strconv.Atoi(heightString)
		if err == nil && height < int(evictHeight) {
			if err := os.Remove(filepath.Join(CachePath, entry.Name())); err != nil {
				log.Printf("Failed to remove old file: %s, err: %v", entry.Name(), err)
			} else {
				log.Printf("Removed old file: %s", entry.Name())
			}
		}
	}
	return nil
}

func Deserialize(height uint) (*Header, error) {
	filePath := filepath.Join(CachePath, strconv.Itoa(int(height))+FileSuffix)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var snapshot headerSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("corrupt snapshot %s: %v", filePath, err)
	}
	header := NewHeader(nil)
	header.Height = snapshot.Height
	header.Hash = snapshot.Hash
	header.Commit = snapshot.Commit
	if snapshot.KV != nil {
		header.KV = snapshot.KV
	}
	return header, nil
}

func latestSnapshotHeight() (uint, bool) {
	entries, err := os.ReadDir(CachePath)
	if err != nil {
		return 0, false
	}
	var maxHeight int
	found := false
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != FileSuffix {
			continue
		}
		heightString := strings.TrimSuffix(entry.Name(), FileSuffix)
		height, err := strconv.Atoi(heightString)
		if err == nil && height > maxHeight {
			maxHeight = height
			found = true
		}
	}
	return uint(maxHeight), found
}

// headerFromStore loads the whole ledger database into memory. A nil
// header with nil error means the store has no tip yet.
func headerFromStore(store *kvstore.ByteMap) (*Header, error) {
	value, ok, err := store.Get(tipKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var tip tipState
	if err := gob.NewDecoder(bytes.NewReader(value)).Decode(&tip); err != nil {
		return nil, fmt.Errorf("corrupt tip record: %v", err)
	}
	header := NewHeader(store)
	header.Height = tip.Height
	header.Hash = tip.Hash
	header.Commit = tip.Commit
	err = store.Scan(nil, func(key, value []byte) bool {
		if bytes.Equal(key, tipKey) {
			return true
		}
		header.KV[string(key)] = value
		return true
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

// rebuildStore replaces the ledger database contents with the
// header's state.
func rebuildStore(header *Header) error {
	if header.store == nil {
		return nil
	}
	batch := new(leveldb.Batch)
	err := header.store.Scan(nil, func(key, value []byte) bool {
		batch.Delete(key)
		return true
	})
	if err != nil {
		return err
	}
	if err := header.store.Write(batch); err != nil {
		return err
	}
	batch.Reset()
	for key, value := range header.KV {
		batch.Put([]byte(key), value)
		if batch.Len() >= rebuildBatchSize {
			if err := header.store.Write(batch); err != nil {
				return err
			}
			batch.Reset()
		}
	}
	batch.Put(tipKey, encodeTip(tipState{Height: header.Height, Hash: header.Hash, Commit: header.Commit}))
	return header.store.Write(batch)
}

// commitDiff applies one finalized diff state to the ledger database
// in a single atomic batch, moving the stored tip to that state. The
// stored tip trails the in-memory tip by the retained history.
func (h *Header) commitDiff(state *DiffState) error {
	if h.store == nil {
		return nil
	}
	batch := new(leveldb.Batch)
	for _, elem := range state.Access.Elements {
		if elem.NewValue == nil {
			batch.Delete(elem.Key)
		} else {
			batch.Put(elem.Key, elem.NewValue)
		}
	}
	batch.Put(tipKey, encodeTip(tipState{Height: state.Height, Hash: state.Hash, Commit: state.Commit}))
	return h.store.Write(batch)
}

func encodeTip(tip tipState) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&tip); err != nil {
		panic(fmt.Sprintf("encode tip record: %v", err))
	}
	return buf.Bytes()
}
