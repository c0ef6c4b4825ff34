// note.go - Notes and their MiMC-derived protocol values.
//
// A note is the hidden pre-image behind a deposit: (nullifier, secret,
// amount). Its commitment is published at deposit time; its nullifier
// hash is published at withdrawal time. Both derivations must match the
// withdrawal circuit exactly, so all inputs are reduced into the BN254
// scalar field before hashing.

package wallet

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"shieldedpool/internal/pool"
)

// Note is a confidential claim on pooled value.
type Note struct {
	Nullifier  pool.Bytes32 `json:"nullifier"`
	Secret     pool.Bytes32 `json:"secret"`
	Amount     uint64       `json:"amount"`
	Commitment pool.Bytes32 `json:"commitment"`
	LeafIndex  uint64       `json:"leaf_index"`
	Spent      bool         `json:"spent"`
}

// NewNote creates a note for the given amount with fresh randomness.
func NewNote(amount uint64) (*Note, error) {
	var nullifier, secret fr.Element
	if _, err := nullifier.SetRandom(); err != nil {
		return nil, err
	}
	if _, err := secret.SetRandom(); err != nil {
		return nil, err
	}
	n := &Note{
		Nullifier: pool.Bytes32(nullifier.Bytes()),
		Secret:    pool.Bytes32(secret.Bytes()),
		Amount:    amount,
	}
	n.Commitment = Commitment(n.Nullifier, n.Secret, amount)
	return n, nil
}

// NullifierHash returns the spend marker published when the note is spent.
func (n *Note) NullifierHash() pool.Bytes32 {
	return hashFields(n.Nullifier[:])
}

// Commitment derives the published commitment of a note.
func Commitment(nullifier, secret pool.Bytes32, amount uint64) pool.Bytes32 {
	var a fr.Element
	a.SetUint64(amount)
	ab := a.Bytes()
	return hashFields(nullifier[:], secret[:], ab[:])
}

// RandomIdentity returns a fresh identity that is a canonical field
// element, as required of recipients bound into proofs.
func RandomIdentity() (pool.Identity, error) {
	var e fr.Element
	if _, err := e.SetRandom(); err != nil {
		return pool.Identity{}, err
	}
	return pool.Identity(e.Bytes()), nil
}

// hashFields hashes field-reduced inputs with MiMC over BN254.
func hashFields(fields ...[]byte) pool.Bytes32 {
	h := mimc.NewMiMC()
	for _, f := range fields {
		var e fr.Element
		e.SetBytes(f)
		b := e.Bytes()
		h.Write(b[:])
	}
	var out pool.Bytes32
	copy(out[:], h.Sum(nil))
	return out
}

// bigInt converts a 32-byte value into the big-endian integer form that
// circuit assignments take.
func bigInt(b [32]byte) *big.Int {
	return new(big.Int).SetBytes(b[:])
}
