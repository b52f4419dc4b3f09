// Package ident derives the deterministic document identifier used as the
// correlation key across the index tables. The scheme is a reproducibility
// heuristic, not a cryptographic hash: the same (path, mtime, chunk layout)
// always yields the same id, and collisions are tolerated.
package ident

import "fmt"

// DeriveID encodes a document's path, last-modification epoch time, and
// chunk bookkeeping into a hex identifier.
//
// The encoding sums the byte values of the path into a 64-bit accumulator,
// multiplies it by max(1, chunkCount) and the epoch time with wraparound,
// then appends a 32-bit starting-id encoding and a XOR redundancy word, each
// zero-padded to 8 hex digits. A zero startingID falls back to the epoch
// time modulo 3600 so freshly chunked files still get a nonzero component.
func DeriveID(path string, epochTime int64, chunkCount int, startingID int) string {
	var acc uint64
	for i := 0; i < len(path); i++ {
		acc += uint64(path[i])
	}
	mult := chunkCount
	if mult < 1 {
		mult = 1
	}
	acc *= uint64(mult)
	acc *= uint64(epochTime)

	effective := startingID
	if effective == 0 {
		effective = int(epochTime % 3600)
	}
	encoded := uint32(effective * ((chunkCount + 1) * 2))
	redundancy := uint32(acc) ^ encoded

	return fmt.Sprintf("%x%08x%08x", acc, encoded, redundancy)
}
