// wallet.go - Client-side wallet: notes, local tree view, proving.
//
// The wallet maintains its own copy of the commitment tree from the
// deposit event stream (plus its own pending insertions), derives the new
// root submitted with each deposit, and generates Groth16 withdrawal
// proofs. Wallets persist as JSON files, one per participant.

package wallet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"shieldedpool/internal/merkle"
	"shieldedpool/internal/pool"
	"shieldedpool/internal/verifier"
)

// Wallet stores a participant's notes and local commitment-tree view.
type Wallet struct {
	Name   string         `json:"name"`
	Notes  []*Note        `json:"notes"`
	Leaves []pool.Bytes32 `json:"leaves"`

	tree *merkle.Tree
}

// New creates an empty wallet.
func New(name string) *Wallet {
	return &Wallet{
		Name:  name,
		Notes: make([]*Note, 0),
		tree:  merkle.NewTree(pool.TreeDepth),
	}
}

// Load loads a wallet from a JSON file and rebuilds its tree view.
func Load(path string) (*Wallet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var w Wallet
	if err := json.NewDecoder(f).Decode(&w); err != nil {
		return nil, err
	}
	w.tree = merkle.NewTree(pool.TreeDepth)
	for _, leaf := range w.Leaves {
		if _, err := w.tree.AddLeaf(leaf); err != nil {
			return nil, err
		}
	}
	return &w, nil
}

// Save saves the wallet to a JSON file.
func (w *Wallet) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(w)
}

// Root returns the wallet's current view of the commitment-tree root.
func (w *Wallet) Root() pool.Bytes32 {
	return pool.Bytes32(w.tree.Root())
}

func (w *Wallet) addLeaf(leaf pool.Bytes32) (int, error) {
	idx, err := w.tree.AddLeaf(leaf)
	if err != nil {
		return 0, err
	}
	w.Leaves = append(w.Leaves, leaf)
	return idx, nil
}

// PrepareDeposit creates a note for amount, inserts its commitment into
// the local tree and returns the note together with the new root to
// submit. The leaf index recorded on the note must match the pool's
// next_leaf_index at submission time.
func (w *Wallet) PrepareDeposit(amount uint64) (*Note, pool.Bytes32, error) {
	note, err := NewNote(amount)
	if err != nil {
		return nil, pool.Bytes32{}, err
	}
	idx, err := w.addLeaf(note.Commitment)
	if err != nil {
		return nil, pool.Bytes32{}, err
	}
	note.LeafIndex = uint64(idx)
	w.Notes = append(w.Notes, note)
	return note, w.Root(), nil
}

// ObserveDeposit ingests a deposit event from the pool, extending the
// local tree with other participants' commitments. Events for leaves the
// wallet inserted itself are verified and skipped.
func (w *Wallet) ObserveDeposit(ev pool.DepositEvent) error {
	count := uint64(w.tree.LeafCount())
	if ev.LeafIndex < count {
		leaf, err := w.tree.Leaf(int(ev.LeafIndex))
		if err != nil {
			return err
		}
		if pool.Bytes32(leaf) != ev.Commitment {
			return fmt.Errorf("commitment mismatch at leaf %d", ev.LeafIndex)
		}
		return nil
	}
	if ev.LeafIndex != count {
		return fmt.Errorf("deposit event gap: got leaf %d, expected %d", ev.LeafIndex, count)
	}
	_, err := w.addLeaf(ev.Commitment)
	return err
}

// UnspentNotes returns all notes that have not been spent yet.
func (w *Wallet) UnspentNotes() []*Note {
	var unspent []*Note
	for _, n := range w.Notes {
		if !n.Spent {
			unspent = append(unspent, n)
		}
	}
	return unspent
}

// ProveWithdraw generates a Groth16 proof that the note's commitment is
// in the wallet's current tree and that the nullifier hash, recipient and
// amount are correctly bound. Returns the serialized proof bytes.
func (w *Wallet) ProveWithdraw(note *Note, recipient pool.Identity, pk groth16.ProvingKey, ccs constraint.ConstraintSystem) ([]byte, error) {
	path, bits, err := w.tree.Witness(int(note.LeafIndex))
	if err != nil {
		return nil, err
	}

	assignment := &verifier.WithdrawCircuit{
		Root:          bigInt(w.tree.Root()),
		NullifierHash: bigInt(note.NullifierHash()),
		Recipient:     bigInt(recipient),
		Amount:        note.Amount,
		Nullifier:     bigInt(note.Nullifier),
		Secret:        bigInt(note.Secret),
	}
	for i := 0; i < verifier.TreeDepth; i++ {
		assignment.PathElements[i] = bigInt(path[i])
		assignment.PathIndices[i] = bits[i]
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WithdrawRequest assembles the pool request for spending a note.
func (w *Wallet) WithdrawRequest(note *Note, proof []byte, root pool.Bytes32, recipient pool.Identity, verifierID pool.Identity) pool.WithdrawRequest {
	return pool.WithdrawRequest{
		Proof:            proof,
		NullifierHash:    note.NullifierHash(),
		Root:             root,
		Recipient:        recipient,
		RecipientAccount: recipient,
		VerifierID:       verifierID,
		Amount:           note.Amount,
	}
}
