package cascade

import (
	"encoding/binary"
	"hash/fnv"
)

// masterSeed derives a deterministic 64-bit seed from a fingerprint digest.
// Identical fingerprints always produce identical master seeds, which is
// what makes repeated runs of the same request against the same snapshot
// byte-identical (the reproducibility contract).
func masterSeed(fingerprint string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fingerprint))
	return h.Sum64()
}

// runSeed derives run index i's seed from the master seed so that no two
// runs share RNG state, while remaining a pure function of (master, index).
func runSeed(master uint64, index int) int64 {
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], master)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(index))
	_, _ = h.Write(buf[:])
	return int64(h.Sum64())
}
