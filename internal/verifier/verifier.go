// verifier.go - Proof verification backends.
//
// The pool talks to a verifier through a single synchronous call taking
// the raw proof bytes and the encoded public inputs. Groth16 is the real
// backend; Mock stands in for it in tests and local runs, mirroring the
// always-accept verifier the protocol ships for development.

package verifier

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
)

// Groth16 verifies withdrawal proofs against a fixed verifying key.
type Groth16 struct {
	vk groth16.VerifyingKey
}

// NewGroth16 creates a verifier for the given verifying key.
func NewGroth16(vk groth16.VerifyingKey) *Groth16 {
	return &Groth16{vk: vk}
}

// VerifyProof decodes the proof and the public-input blob and runs the
// pairing check. The blob is the gnark binary public-witness encoding, so
// it is parsed directly; no reassembly of individual fields happens here.
func (v *Groth16) VerifyProof(proof []byte, publicInputs []byte) error {
	p := groth16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return fmt.Errorf("cannot unmarshal proof: %w", err)
	}
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return err
	}
	if _, err := w.ReadFrom(bytes.NewReader(publicInputs)); err != nil {
		return fmt.Errorf("cannot unmarshal public inputs: %w", err)
	}
	if err := groth16.Verify(p, v.vk, w); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	return nil
}

// Mock is a verifier test double. With a nil Reject it accepts
// everything; otherwise it rejects with that error. It records each call
// so tests can assert the verifier was (or was not) reached.
type Mock struct {
	Reject error

	Calls      int
	LastProof  []byte
	LastInputs []byte
}

func (m *Mock) VerifyProof(proof []byte, publicInputs []byte) error {
	m.Calls++
	m.LastProof = append([]byte(nil), proof...)
	m.LastInputs = append([]byte(nil), publicInputs...)
	return m.Reject
}
