// encode.go - Public-input encoding for the external verifier.
//
// The layout is a versioned wire contract: a 12-byte header (public-input
// count, private-input count, vector length, each uint32 big-endian)
// followed by four 32-byte field elements. This is byte-identical to the
// gnark binary public-witness encoding, so a gnark-based verifier can
// decode the blob directly. Any change to field order, width or byte
// order silently breaks proof acceptance and must be versioned, never
// altered in place.

package pool

import "encoding/binary"

const (
	// PublicInputCount is the number of public field elements.
	PublicInputCount = 4

	// PublicInputsLen is the total encoded length in bytes.
	PublicInputsLen = 12 + PublicInputCount*32
)

// EncodePublicInputs deterministically encodes (root, nullifier_hash,
// recipient, amount) into the 140-byte layout appended after the proof.
func EncodePublicInputs(root, nullifierHash Bytes32, recipient Identity, amount uint64) []byte {
	buf := make([]byte, PublicInputsLen)
	binary.BigEndian.PutUint32(buf[0:4], PublicInputCount)
	binary.BigEndian.PutUint32(buf[4:8], 0)
	binary.BigEndian.PutUint32(buf[8:12], PublicInputCount)
	copy(buf[12:44], root[:])
	copy(buf[44:76], nullifierHash[:])
	copy(buf[76:108], recipient[:])
	binary.BigEndian.PutUint64(buf[132:140], amount)
	return buf
}
