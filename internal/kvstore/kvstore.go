package kvstore

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ByteMap is the committed ledger store. Keys are raw bytes and
// iteration follows byte order, so prefix scans come back sorted.
type ByteMap struct {
	db *leveldb.DB
}

func NewByteMap(dbPath string) (*ByteMap, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, err
	}
	return &ByteMap{
		db: db,
	}, nil
}

func (bm *ByteMap) Get(key []byte) ([]byte, bool, error) {
	value, err := bm.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (bm *ByteMap) Insert(key []byte, value []byte) error {
	return bm.db.Put(key, value, nil)
}

func (bm *ByteMap) Delete(key []byte) error {
	err := bm.db.Delete(key, nil)
	if err != nil && err != leveldb.ErrNotFound {
		return err
	}
	return nil
}

// Write applies a batch atomically. One block of ledger changes goes
// through a single batch so a crash never leaves half a block behind.
func (bm *ByteMap) Write(batch *leveldb.Batch) error {
	return bm.db.Write(batch, nil)
}

// Scan visits every key under prefix in byte order until fn returns
// false. Values are copied before fn sees them.
func (bm *ByteMap) Scan(prefix []byte, fn func(key, value []byte) bool) error {
	iter := bm.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if !fn(key, value) {
			break
		}
	}
	return iter.Error()
}

func (bm *ByteMap) Close() error {
	return bm.db.Close()
}
