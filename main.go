// main.go - End-to-end shielded pool walkthrough.
//
// Runs the whole protocol in one process: trusted setup, two deposits,
// a proven withdrawal and a replayed withdrawal that the pool rejects.
// The daemon under cmd/poold exposes the same flow over HTTP.
package main

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/consensys/gnark/backend/groth16"

	"shieldedpool/internal/pool"
	"shieldedpool/internal/verifier"
	"shieldedpool/internal/wallet"
)

func main() {
	fmt.Println("=== Shielded Pool Walkthrough ===")

	// --- Circuit setup ---
	start := time.Now()
	ccs, err := verifier.Compile()
	if err != nil {
		log.Fatalf("circuit compilation failed: %v", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		log.Fatalf("trusted setup failed: %v", err)
	}
	fmt.Printf("circuit compiled and keys generated in %v\n", time.Since(start))

	var vkBuf bytes.Buffer
	if _, err := vk.WriteTo(&vkBuf); err != nil {
		log.Fatalf("verifying key serialization failed: %v", err)
	}
	verifierID := pool.Identity(sha256.Sum256(vkBuf.Bytes()))

	// --- Pool initialization ---
	bank := pool.NewBank()
	authority := pool.Identity(sha256.Sum256([]byte("pool-authority")))
	p := pool.Initialize(authority, verifierID, verifier.NewGroth16(vk), bank)
	fmt.Printf("pool %s initialized, vault %s\n", p.Address, p.Vault)

	// --- Participants ---
	alice := wallet.New("alice")
	bob := wallet.New("bob")
	aliceAccount := pool.Identity(sha256.Sum256([]byte("alice-account")))
	bank.Mint(aliceAccount, 20_000_000)

	// --- Deposits ---
	note1 := deposit(p, alice, aliceAccount, 5_000_000)
	if err := bob.ObserveDeposit(p.DepositLog[len(p.DepositLog)-1]); err != nil {
		log.Fatalf("bob failed to track deposit: %v", err)
	}

	deposit(p, alice, aliceAccount, 7_000_000)
	if err := bob.ObserveDeposit(p.DepositLog[len(p.DepositLog)-1]); err != nil {
		log.Fatalf("bob failed to track deposit: %v", err)
	}
	fmt.Printf("vault balance after deposits: %d\n", p.VaultBalance())
	if alice.Root() != bob.Root() {
		log.Fatalf("wallet views diverged")
	}

	// --- Withdrawal ---
	recipient, err := wallet.RandomIdentity()
	if err != nil {
		log.Fatalf("recipient generation failed: %v", err)
	}
	start = time.Now()
	proof, err := alice.ProveWithdraw(note1, recipient, pk, ccs)
	if err != nil {
		log.Fatalf("proving failed: %v", err)
	}
	fmt.Printf("withdrawal proof generated in %v\n", time.Since(start))

	req := alice.WithdrawRequest(note1, proof, alice.Root(), recipient, verifierID)
	ev, err := p.Withdraw(req)
	if err != nil {
		log.Fatalf("withdrawal rejected: %v", err)
	}
	note1.Spent = true
	fmt.Printf("withdrawal accepted: nullifier %s -> recipient %s\n", ev.NullifierHash, ev.Recipient)
	fmt.Printf("recipient balance: %d, vault balance: %d\n", bank.Balance(recipient), p.VaultBalance())

	// --- Replay attempt ---
	if _, err := p.Withdraw(req); errors.Is(err, pool.ErrNullifierUsed) {
		fmt.Println("replayed withdrawal rejected: nullifier already used")
	} else {
		log.Fatalf("replay protection failed: %v", err)
	}

	fmt.Println("=== Walkthrough complete ===")
}

// deposit inserts a fresh note for amount through the wallet and submits
// it to the pool.
func deposit(p *pool.Pool, w *wallet.Wallet, account pool.Identity, amount uint64) *wallet.Note {
	note, newRoot, err := w.PrepareDeposit(amount)
	if err != nil {
		log.Fatalf("deposit preparation failed: %v", err)
	}
	ev, err := p.Deposit(account, note.Commitment, newRoot, amount)
	if err != nil {
		log.Fatalf("deposit rejected: %v", err)
	}
	if ev.LeafIndex != note.LeafIndex {
		log.Fatalf("leaf index mismatch: pool %d, wallet %d", ev.LeafIndex, note.LeafIndex)
	}
	fmt.Printf("deposited %d at leaf %d (root %s)\n", amount, ev.LeafIndex, newRoot)
	return note
}
