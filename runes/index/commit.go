package index

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// chainCommit extends the rolling state commitment with one block:
// keccak256(parent commitment, block hash, serialized write set).
// Verifiers replaying published diff sets can recompute the chain
// without holding the full ledger.
func chainCommit(parent [32]byte, blockHash string, access AccessList) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(parent[:])
	h.Write([]byte(blockHash))
	h.Write(serializeAccess(access))
	var commit [32]byte
	copy(commit[:], h.Sum(nil))
	return commit
}

// serializeAccess renders a write set into canonical bytes. Each
// element is length-prefixed; deletions carry a zero marker instead
// of a value.
func serializeAccess(access AccessList) []byte {
	var buf []byte
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(len(access.Elements)))
	buf = append(buf, scratch[:]...)
	for _, elem := range access.Elements {
		binary.BigEndian.PutUint32(scratch[:], uint32(len(elem.Key)))
		buf = append(buf, scratch[:]...)
		buf = append(buf, elem.Key...)
		if elem.NewValue == nil {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		binary.BigEndian.PutUint32(scratch[:], uint32(len(elem.NewValue)))
		buf = append(buf, scratch[:]...)
		buf = append(buf, elem.NewValue...)
	}
	return buf
}
