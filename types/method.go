package types

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// MethodNum is the number of an actor method
type MethodNum uint64

const firstExportedMethod = 1 << 24

var (
	// MethodSubmitCheckpoint is the subnet actor method accepting bottom-up checkpoints
	MethodSubmitCheckpoint = MethodHash("SubmitCheckpoint")
	// MethodSubmitTopDownCheckpoint is the gateway method accepting top-down checkpoints
	MethodSubmitTopDownCheckpoint = MethodHash("SubmitTopDownCheckpoint")
)

// MethodHash derives the exported method number of a named actor method (FRC-0042)
func MethodHash(name string) MethodNum {
	digest := blake2b.Sum512([]byte("1|" + name))

	for i := 0; i+4 <= len(digest); i += 4 {
		if id := binary.BigEndian.Uint32(digest[i : i+4]); id >= firstExportedMethod {
			return MethodNum(id)
		}
	}

	// unreachable for the method names in use
	return 0
}
