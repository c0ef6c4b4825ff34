package pool

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"shieldedpool/internal/verifier"
)

// fundedPool returns a pool whose vault holds 5*MinDepositAmount behind
// the root b32(0xaa), plus a well-formed withdrawal request against it.
func fundedPool(t *testing.T, v Verifier) (*Pool, *Bank, WithdrawRequest) {
	t.Helper()
	p, bank, depositor := newTestPool(t, v)
	if _, err := p.Deposit(depositor, b32(0x01), b32(0xaa), 5*MinDepositAmount); err != nil {
		t.Fatalf("funding deposit: %v", err)
	}
	recipient := ident("recipient")
	req := WithdrawRequest{
		Proof:            []byte("opaque-proof"),
		NullifierHash:    b32(0x33),
		Root:             b32(0xaa),
		Recipient:        recipient,
		RecipientAccount: recipient,
		VerifierID:       p.VerifierID,
		Amount:           MinDepositAmount,
	}
	return p, bank, req
}

func TestWithdrawSuccess(t *testing.T) {
	mock := &verifier.Mock{}
	p, bank, req := fundedPool(t, mock)
	vaultBefore := p.VaultBalance()

	ev, err := p.Withdraw(req)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if ev.NullifierHash != req.NullifierHash || ev.Recipient != req.RecipientAccount {
		t.Fatalf("event fields do not match the request")
	}
	if !p.Nullifiers.Contains(req.NullifierHash) {
		t.Fatalf("nullifier not marked spent")
	}
	if got := bank.Balance(req.RecipientAccount); got != req.Amount {
		t.Fatalf("recipient balance = %d, want %d", got, req.Amount)
	}
	if got := p.VaultBalance(); got != vaultBefore-req.Amount {
		t.Fatalf("vault balance = %d, want %d", got, vaultBefore-req.Amount)
	}
	if len(p.WithdrawLog) != 1 {
		t.Fatalf("withdraw log length = %d, want 1", len(p.WithdrawLog))
	}

	if mock.Calls != 1 {
		t.Fatalf("verifier called %d times, want 1", mock.Calls)
	}
	want := EncodePublicInputs(req.Root, req.NullifierHash, req.Recipient, req.Amount)
	if !bytes.Equal(mock.LastInputs, want) {
		t.Fatalf("verifier received wrong public inputs")
	}
	if !bytes.Equal(mock.LastProof, req.Proof) {
		t.Fatalf("verifier received wrong proof bytes")
	}
}

func TestWithdrawWrongVerifierID(t *testing.T) {
	mock := &verifier.Mock{}
	p, _, req := fundedPool(t, mock)
	req.VerifierID = ident("someone-else")

	if _, err := p.Withdraw(req); err != ErrInvalidVerifier {
		t.Fatalf("err = %v, want ErrInvalidVerifier", err)
	}
	if mock.Calls != 0 {
		t.Fatalf("verifier reached despite identity mismatch")
	}
}

func TestWithdrawReplayRejected(t *testing.T) {
	mock := &verifier.Mock{}
	p, bank, req := fundedPool(t, mock)

	if _, err := p.Withdraw(req); err != nil {
		t.Fatalf("first withdraw: %v", err)
	}
	balanceAfterFirst := bank.Balance(req.RecipientAccount)

	if _, err := p.Withdraw(req); err != ErrNullifierUsed {
		t.Fatalf("err = %v, want ErrNullifierUsed", err)
	}
	if bank.Balance(req.RecipientAccount) != balanceAfterFirst {
		t.Fatalf("replay moved funds")
	}
	if mock.Calls != 1 {
		t.Fatalf("replay reached the verifier")
	}
}

func TestWithdrawUnknownRoot(t *testing.T) {
	mock := &verifier.Mock{}
	p, _, req := fundedPool(t, mock)
	req.Root = b32(0xee)

	if _, err := p.Withdraw(req); err != ErrInvalidRoot {
		t.Fatalf("err = %v, want ErrInvalidRoot", err)
	}
	if mock.Calls != 0 {
		t.Fatalf("verifier reached despite unknown root")
	}
}

func TestWithdrawAgainstOlderRootInWindow(t *testing.T) {
	p, _, req := fundedPool(t, &verifier.Mock{})
	depositor := ident("depositor")
	// Newer deposits push the window forward without evicting 0xaa.
	for i := 0; i < RootHistorySize-2; i++ {
		if _, err := p.Deposit(depositor, b32(byte(0x10+i)), b32(byte(0xb0+i)), MinDepositAmount); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}
	if _, err := p.Withdraw(req); err != nil {
		t.Fatalf("withdraw against in-window root: %v", err)
	}
}

func TestWithdrawRecipientMismatch(t *testing.T) {
	mock := &verifier.Mock{}
	p, bank, req := fundedPool(t, mock)
	req.RecipientAccount = ident("attacker")

	if _, err := p.Withdraw(req); err != ErrRecipientMismatch {
		t.Fatalf("err = %v, want ErrRecipientMismatch", err)
	}
	if mock.Calls != 0 {
		t.Fatalf("verifier reached despite recipient mismatch")
	}
	if p.Nullifiers.Contains(req.NullifierHash) {
		t.Fatalf("nullifier consumed by a rejected request")
	}
	if bank.Balance(ident("attacker")) != 0 {
		t.Fatalf("funds moved to swapped recipient")
	}
}

func TestWithdrawInsufficientVaultBalance(t *testing.T) {
	mock := &verifier.Mock{}
	p, _, req := fundedPool(t, mock)
	req.Amount = p.VaultBalance() + 1

	if _, err := p.Withdraw(req); err != ErrInsufficientVaultBalance {
		t.Fatalf("err = %v, want ErrInsufficientVaultBalance", err)
	}
	if mock.Calls != 0 {
		t.Fatalf("verifier reached despite underfunded vault")
	}
}

func TestWithdrawProofRejectedLeavesStateUntouched(t *testing.T) {
	reject := errors.New("pairing check failed")
	p, bank, req := fundedPool(t, &verifier.Mock{Reject: reject})
	vaultBefore := p.VaultBalance()

	_, err := p.Withdraw(req)
	if !errors.Is(err, reject) {
		t.Fatalf("err = %v, want wrapped verifier rejection", err)
	}
	if p.Nullifiers.Contains(req.NullifierHash) {
		t.Fatalf("nullifier consumed by a rejected proof")
	}
	if p.VaultBalance() != vaultBefore || bank.Balance(req.RecipientAccount) != 0 {
		t.Fatalf("rejected proof moved funds")
	}
	if len(p.WithdrawLog) != 0 {
		t.Fatalf("rejected proof was logged")
	}
}

func TestWithdrawConcurrentSameNullifier(t *testing.T) {
	p, bank, req := fundedPool(t, &verifier.Mock{})

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Withdraw(req)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch err {
		case nil:
			succeeded++
		case ErrNullifierUsed:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d concurrent withdrawals succeeded, want exactly 1", succeeded)
	}
	if got := bank.Balance(req.RecipientAccount); got != req.Amount {
		t.Fatalf("recipient balance = %d, want %d", got, req.Amount)
	}
}
