// vault.go - Account balances and the pool-derived vault authority.
//
// The Bank models the host ledger's atomic value-move primitive: a
// transfer either debits and credits in full or fails. The vault is an
// ordinary bank account whose address is derived from the pool identity;
// only the pool's operations move value out of it.

package pool

import (
	"crypto/sha256"
	"sync"
)

// PoolAddress derives the singleton pool account identity.
func PoolAddress() Identity {
	return Identity(sha256.Sum256([]byte("pool")))
}

// VaultAddress derives the escrow account bound to a pool identity.
func VaultAddress(poolAddr Identity) Identity {
	h := sha256.New()
	h.Write([]byte("vault"))
	h.Write(poolAddr[:])
	var id Identity
	copy(id[:], h.Sum(nil))
	return id
}

// Bank holds account balances. Accounts come into existence at first
// credit; a zero balance and a missing account are indistinguishable.
type Bank struct {
	mu       sync.Mutex
	balances map[Identity]uint64
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[Identity]uint64)}
}

// Balance returns the current balance of an account.
func (b *Bank) Balance(id Identity) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[id]
}

// Mint credits newly issued value to an account. Test and faucet use.
func (b *Bank) Mint(id Identity, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[id] += amount
}

// Transfer atomically moves amount from one account to another. Fails
// with ErrInsufficientFunds when the source balance cannot cover it.
func (b *Bank) Transfer(from, to Identity, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[from] < amount {
		return ErrInsufficientFunds
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}
