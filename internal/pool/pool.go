// pool.go - Pool state and the commitment-root history ring buffer.
//
// The Pool is the singleton on-ledger record. Its root history answers
// "is this root still acceptable for a withdrawal proof": a root stays
// known while it occupies one of the last RootHistorySize slots and is
// permanently unknown once overwritten.

package pool

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"shieldedpool/internal/merkle"
)

// Protocol constants. TreeDepth bounds the commitment tree computed
// off-ledger; the pool only enforces the resulting leaf budget.
const (
	TreeDepth         = 10
	MaxLeaves         = 1 << TreeDepth
	RootHistorySize   = 10
	MinDepositAmount  = 1_000_000
	NullifierCapacity = 256
)

// EmptyRoot is the well-known root of the depth-10 tree with no leaves.
// Slot 0 of every new pool's root history holds it.
var EmptyRoot = Bytes32(merkle.EmptyRoot(TreeDepth))

// Bytes32 is an opaque 32-byte protocol value (commitment, root or
// nullifier hash). Its meaning belongs to the external proof scheme.
type Bytes32 [32]byte

// MarshalText encodes the value as lowercase hex.
func (b Bytes32) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b[:])), nil
}

// UnmarshalText decodes a 64-character hex string.
func (b *Bytes32) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(raw) != 32 {
		return fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(b[:], raw)
	return nil
}

func (b Bytes32) String() string {
	return hex.EncodeToString(b[:])
}

// Identity is a 32-byte account identity on the host ledger.
type Identity [32]byte

// MarshalText encodes the identity as lowercase hex.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(id[:])), nil
}

// UnmarshalText decodes a 64-character hex string.
func (id *Identity) UnmarshalText(text []byte) error {
	var b Bytes32
	if err := b.UnmarshalText(text); err != nil {
		return err
	}
	*id = Identity(b)
	return nil
}

func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// Verifier is the external proof-verification capability. VerifyProof
// returns nil exactly when the proof is a valid attestation over the
// encoded public inputs; any other outcome is a rejection.
type Verifier interface {
	VerifyProof(proof []byte, publicInputs []byte) error
}

// Pool is the singleton shielded-pool record. All mutation goes through
// Deposit and Withdraw, each of which runs as one atomic operation; the
// pool's own lock stands in for the host ledger's write serialization.
type Pool struct {
	mu sync.Mutex

	Authority        Identity                     `json:"authority"`
	Address          Identity                     `json:"address"`
	Vault            Identity                     `json:"vault"`
	VerifierID       Identity                     `json:"verifier_id"`
	NextLeafIndex    uint64                       `json:"next_leaf_index"`
	TotalDeposits    uint64                       `json:"total_deposits"`
	CurrentRootIndex uint64                       `json:"current_root_index"`
	Roots            [RootHistorySize]Bytes32     `json:"roots"`
	Nullifiers       *NullifierSet                `json:"nullifiers"`
	DepositLog       []DepositEvent               `json:"deposit_log"`
	WithdrawLog      []WithdrawEvent              `json:"withdraw_log"`

	bank     *Bank
	verifier Verifier
	sink     EventSink
}

// Initialize creates the Pool and its NullifierSet. Counters start at
// zero and roots[0] holds the empty-tree root, so the history always
// contains at least one valid root.
func Initialize(authority, verifierID Identity, v Verifier, bank *Bank) *Pool {
	addr := PoolAddress()
	p := &Pool{
		Authority:  authority,
		Address:    addr,
		Vault:      VaultAddress(addr),
		VerifierID: verifierID,
		bank:       bank,
		verifier:   v,
	}
	p.Roots[0] = EmptyRoot
	p.Nullifiers = &NullifierSet{Pool: addr}
	return p
}

// Attach wires the runtime collaborators after a load from disk.
func (p *Pool) Attach(bank *Bank, v Verifier) {
	p.bank = bank
	p.verifier = v
}

// SetEventSink registers an optional sink that receives every committed
// event, e.g. a feed publisher for off-ledger indexers.
func (p *Pool) SetEventSink(sink EventSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

// recordRoot appends a root at the next ring-buffer slot and advances the
// pointer. O(1), always succeeds; the evicted root becomes unknown.
func (p *Pool) recordRoot(root Bytes32) {
	next := (p.CurrentRootIndex + 1) % RootHistorySize
	p.CurrentRootIndex = next
	p.Roots[next] = root
}

// IsKnownRoot reports whether root occupies any slot of the history
// window. Order is irrelevant; the scan covers all RootHistorySize slots.
func (p *Pool) IsKnownRoot(root Bytes32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isKnownRoot(root)
}

func (p *Pool) isKnownRoot(root Bytes32) bool {
	for _, r := range p.Roots {
		if r == root {
			return true
		}
	}
	return false
}

// Snapshot is a consistent read of the pool's counters and root history.
type Snapshot struct {
	NextLeafIndex    uint64                   `json:"next_leaf_index"`
	TotalDeposits    uint64                   `json:"total_deposits"`
	CurrentRootIndex uint64                   `json:"current_root_index"`
	Roots            [RootHistorySize]Bytes32 `json:"roots"`
}

// Snapshot returns the counters and root history as they stood at one
// point between operations. Readers must use this rather than the struct
// fields, which are only stable under the pool's lock.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		NextLeafIndex:    p.NextLeafIndex,
		TotalDeposits:    p.TotalDeposits,
		CurrentRootIndex: p.CurrentRootIndex,
		Roots:            p.Roots,
	}
}

// CurrentRoot returns the most recently recorded root.
func (p *Pool) CurrentRoot() Bytes32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Roots[p.CurrentRootIndex]
}

// VaultBalance returns the current escrow balance.
func (p *Pool) VaultBalance() uint64 {
	return p.bank.Balance(p.Vault)
}

// SaveToFile writes the pool state as an indented JSON snapshot,
// overwriting any existing file.
func (p *Pool) SaveToFile(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// LoadFromFile restores a pool snapshot and attaches the runtime
// collaborators. Returns an error if the file is missing or invalid.
func LoadFromFile(path string, bank *Bank, v Verifier) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var p Pool
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return nil, err
	}
	if p.Nullifiers == nil {
		p.Nullifiers = &NullifierSet{Pool: p.Address}
	}
	p.Attach(bank, v)
	return &p, nil
}
