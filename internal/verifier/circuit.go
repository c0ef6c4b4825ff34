// circuit.go - Withdrawal circuit for the shielded pool.
//
// Public inputs, in wire order: root, nullifier hash, recipient, amount.
// The prover shows knowledge of a note (nullifier, secret, amount) whose
// commitment sits at some leaf of a tree with the given root, and that the
// nullifier hash is the correctly derived spend marker. Recipient is bound
// into the statement so a proof pays exactly one destination.
//
// BN254 is used rather than the larger pairing-friendly curves: the
// public-input wire contract carries 32-byte field elements, which fixes a
// 254-bit scalar field.

package verifier

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// TreeDepth must match the off-ledger commitment tree.
const TreeDepth = 10

type WithdrawCircuit struct {
	// Public
	Root          frontend.Variable `gnark:",public"`
	NullifierHash frontend.Variable `gnark:",public"`
	Recipient     frontend.Variable `gnark:",public"`
	Amount        frontend.Variable `gnark:",public"`

	// Private
	Nullifier    frontend.Variable
	Secret       frontend.Variable
	PathElements [TreeDepth]frontend.Variable
	PathIndices  [TreeDepth]frontend.Variable // 0 = node is a left child
}

func (c *WithdrawCircuit) Define(api frontend.API) error {
	// (1) Nullifier hash is the PRF of the nullifier
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(c.Nullifier)
	api.AssertIsEqual(c.NullifierHash, hasher.Sum())

	// (2) Commitment over (nullifier, secret, amount)
	hasher.Reset()
	hasher.Write(c.Nullifier)
	hasher.Write(c.Secret)
	hasher.Write(c.Amount)
	leaf := hasher.Sum()

	// (3) Merkle membership of the commitment under Root
	current := leaf
	for i := 0; i < TreeDepth; i++ {
		api.AssertIsBoolean(c.PathIndices[i])
		left := api.Select(c.PathIndices[i], c.PathElements[i], current)
		right := api.Select(c.PathIndices[i], current, c.PathElements[i])
		hasher.Reset()
		hasher.Write(left)
		hasher.Write(right)
		current = hasher.Sum()
	}
	api.AssertIsEqual(c.Root, current)

	// (4) Bind the recipient into the statement
	api.Mul(c.Recipient, c.Recipient)

	return nil
}
