package stream

import (
	"encoding/hex"
	"hash/crc32"

	"github.com/Neumenon/tabwire/tabwire"
)

// crcTable is the IEEE CRC-32 table.
var crcTable = crc32.MakeTable(crc32.IEEE)

// ComputeCRC computes CRC-32 IEEE of the given bytes.
func ComputeCRC(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// StateHash computes the hash of a value: sha256 of its canonical
// serialization. Sender and receiver compute it independently; equal values
// produce equal hashes.
func StateHash(v tabwire.Value) ([32]byte, error) {
	return tabwire.Hash(v)
}

// VerifyBase checks if the current state hash matches the expected base.
func VerifyBase(current, expected [32]byte) bool {
	return current == expected
}

// HashToHex converts a 32-byte hash to lowercase hex string.
func HashToHex(h [32]byte) string {
	return hex.EncodeToString(h[:])
}

// HexToHash parses a 64-character hex string to a 32-byte hash.
func HexToHash(s string) ([32]byte, bool) {
	var h [32]byte
	if len(s) != 2*len(h) {
		return h, false
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, false
	}
	return h, true
}
