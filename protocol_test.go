package main

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/consensys/gnark/backend/groth16"

	"shieldedpool/internal/indexer"
	"shieldedpool/internal/pool"
	"shieldedpool/internal/verifier"
	"shieldedpool/internal/wallet"
)

func testIdentity(name string) pool.Identity {
	return pool.Identity(sha256.Sum256([]byte(name)))
}

// TestProtocolLifecycle exercises the deposit/withdraw protocol end to end
// with the mock verifier standing in for proof verification.
func TestProtocolLifecycle(t *testing.T) {
	mock := &verifier.Mock{}
	bank := pool.NewBank()
	verifierID := testIdentity("verifier")
	p := pool.Initialize(testIdentity("authority"), verifierID, mock, bank)

	alice := wallet.New("alice")
	bob := wallet.New("bob")
	aliceAccount := testIdentity("alice-account")
	bobAccount := testIdentity("bob-account")
	bank.Mint(aliceAccount, 20_000_000)
	bank.Mint(bobAccount, 20_000_000)

	t.Run("Deposits Advance Tree And Vault", func(t *testing.T) {
		note, root, err := alice.PrepareDeposit(5_000_000)
		if err != nil {
			t.Fatalf("prepare: %v", err)
		}
		ev, err := p.Deposit(aliceAccount, note.Commitment, root, note.Amount)
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if ev.LeafIndex != 0 || p.NextLeafIndex != 1 {
			t.Fatalf("tree position wrong after first deposit")
		}
		if err := bob.ObserveDeposit(*ev); err != nil {
			t.Fatalf("bob observe: %v", err)
		}

		note2, root2, err := bob.PrepareDeposit(7_000_000)
		if err != nil {
			t.Fatalf("prepare: %v", err)
		}
		ev2, err := p.Deposit(bobAccount, note2.Commitment, root2, note2.Amount)
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if err := alice.ObserveDeposit(*ev2); err != nil {
			t.Fatalf("alice observe: %v", err)
		}

		if alice.Root() != bob.Root() {
			t.Fatalf("wallet views diverged")
		}
		if !p.IsKnownRoot(alice.Root()) {
			t.Fatalf("latest root not in the pool's history")
		}
		if p.VaultBalance() != 12_000_000 {
			t.Fatalf("vault balance = %d, want 12000000", p.VaultBalance())
		}
	})

	var spentReq pool.WithdrawRequest

	t.Run("Withdrawal Releases Escrow", func(t *testing.T) {
		note := alice.UnspentNotes()[0]
		recipient, err := wallet.RandomIdentity()
		if err != nil {
			t.Fatalf("recipient: %v", err)
		}
		req := alice.WithdrawRequest(note, []byte("mock-proof"), alice.Root(), recipient, verifierID)

		ev, err := p.Withdraw(req)
		if err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		note.Spent = true
		spentReq = req

		if bank.Balance(recipient) != note.Amount {
			t.Fatalf("recipient not paid")
		}
		if p.VaultBalance() != 12_000_000-note.Amount {
			t.Fatalf("vault not debited")
		}
		if ev.NullifierHash != note.NullifierHash() {
			t.Fatalf("event carries wrong nullifier hash")
		}
		want := pool.EncodePublicInputs(req.Root, req.NullifierHash, req.Recipient, req.Amount)
		if !bytes.Equal(mock.LastInputs, want) {
			t.Fatalf("verifier saw wrong public inputs")
		}
	})

	t.Run("Replay Rejected", func(t *testing.T) {
		if _, err := p.Withdraw(spentReq); !errors.Is(err, pool.ErrNullifierUsed) {
			t.Fatalf("err = %v, want ErrNullifierUsed", err)
		}
	})

	t.Run("Front-Running Rejected", func(t *testing.T) {
		note := bob.UnspentNotes()[0]
		recipient, _ := wallet.RandomIdentity()
		req := bob.WithdrawRequest(note, []byte("mock-proof"), bob.Root(), recipient, verifierID)
		req.RecipientAccount = testIdentity("attacker")

		if _, err := p.Withdraw(req); !errors.Is(err, pool.ErrRecipientMismatch) {
			t.Fatalf("err = %v, want ErrRecipientMismatch", err)
		}
	})

	t.Run("Stale Root Ages Out", func(t *testing.T) {
		staleRoot := alice.Root()
		filler := wallet.New("filler")
		for i := 0; i < pool.RootHistorySize; i++ {
			note, root, err := filler.PrepareDeposit(1_000_000)
			if err != nil {
				t.Fatalf("prepare: %v", err)
			}
			// Filler builds on a different local view; the pool takes its
			// roots on trust, which is enough to rotate the window.
			if _, err := p.Deposit(bobAccount, note.Commitment, root, note.Amount); err != nil {
				t.Fatalf("deposit %d: %v", i, err)
			}
		}
		if p.IsKnownRoot(staleRoot) {
			t.Fatalf("stale root survived %d newer roots", pool.RootHistorySize)
		}

		note := bob.UnspentNotes()[0]
		recipient, _ := wallet.RandomIdentity()
		req := bob.WithdrawRequest(note, []byte("mock-proof"), staleRoot, recipient, verifierID)
		if _, err := p.Withdraw(req); !errors.Is(err, pool.ErrInvalidRoot) {
			t.Fatalf("err = %v, want ErrInvalidRoot", err)
		}
	})
}

// TestProtocolWithGroth16 runs one real proof through the pool: the
// verifier decodes the pool's 140-byte public-input blob and accepts only
// the statement the wallet proved.
func TestProtocolWithGroth16(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Groth16 setup in short mode")
	}

	ccs, err := verifier.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	var vkBuf bytes.Buffer
	if _, err := vk.WriteTo(&vkBuf); err != nil {
		t.Fatalf("vk serialization: %v", err)
	}
	verifierID := pool.Identity(sha256.Sum256(vkBuf.Bytes()))

	bank := pool.NewBank()
	p := pool.Initialize(testIdentity("authority"), verifierID, verifier.NewGroth16(vk), bank)

	alice := wallet.New("alice")
	aliceAccount := testIdentity("alice-account")
	bank.Mint(aliceAccount, 20_000_000)

	note, root, err := alice.PrepareDeposit(5_000_000)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := p.Deposit(aliceAccount, note.Commitment, root, note.Amount); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	recipient, err := wallet.RandomIdentity()
	if err != nil {
		t.Fatalf("recipient: %v", err)
	}
	proof, err := alice.ProveWithdraw(note, recipient, pk, ccs)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	req := alice.WithdrawRequest(note, proof, alice.Root(), recipient, verifierID)
	if _, err := p.Withdraw(req); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if bank.Balance(recipient) != note.Amount {
		t.Fatalf("recipient not paid")
	}

	// The same proof cannot pay a different amount.
	req2 := req
	req2.NullifierHash = pool.Bytes32{31: 0x01} // fresh nullifier, stolen proof
	req2.Amount = 1
	if _, err := p.Withdraw(req2); err == nil {
		t.Fatalf("tampered request accepted")
	}
}

// TestIndexerTracksPool replays the pool's deposit log into an indexer and
// checks the reconstructed tree agrees with the depositors' roots.
func TestIndexerTracksPool(t *testing.T) {
	bank := pool.NewBank()
	p := pool.Initialize(testIdentity("authority"), testIdentity("verifier"), &verifier.Mock{}, bank)

	alice := wallet.New("alice")
	aliceAccount := testIdentity("alice-account")
	bank.Mint(aliceAccount, 20_000_000)

	for i := 0; i < 4; i++ {
		note, root, err := alice.PrepareDeposit(2_000_000)
		if err != nil {
			t.Fatalf("prepare: %v", err)
		}
		if _, err := p.Deposit(aliceAccount, note.Commitment, root, note.Amount); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}

	ix := indexer.New()
	if err := ix.Replay(p.DepositLog); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if ix.Root() != alice.Root() {
		t.Fatalf("indexer root diverges from wallet root")
	}
	if len(ix.DivergentLeaves()) != 0 {
		t.Fatalf("honest deposits flagged divergent")
	}
}
