// withdraw.go - Withdraw protocol.
//
// Checks run cheapest first so malformed or already-settled requests fail
// before the expensive proof verification. The nullifier is marked spent
// after verification succeeds and strictly before the payout; the whole
// operation runs in one critical section, so no state is ever visible
// where a nullifier is spent without a payout or paid out twice.

package pool

import (
	"fmt"
	"time"
)

// WithdrawRequest carries the inputs of a withdrawal. Recipient is the
// identity bound into the proof's public inputs; RecipientAccount is the
// account actually supplied for the payout. Binding the two together
// stops an observer from resubmitting a broadcast tuple with a swapped
// destination (front-running protection).
type WithdrawRequest struct {
	Proof            []byte   `json:"proof"`
	NullifierHash    Bytes32  `json:"nullifier_hash"`
	Root             Bytes32  `json:"root"`
	Recipient        Identity `json:"recipient"`
	RecipientAccount Identity `json:"recipient_account"`
	VerifierID       Identity `json:"verifier_id"`
	Amount           uint64   `json:"amount"`
}

// Withdraw validates the request, delegates cryptographic acceptance to
// the external verifier and releases value from the vault. The first
// failing check aborts the whole operation with no state change.
func (p *Pool) Withdraw(req WithdrawRequest) (*WithdrawEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if req.VerifierID != p.VerifierID {
		return nil, ErrInvalidVerifier
	}
	if p.Nullifiers.Contains(req.NullifierHash) {
		return nil, ErrNullifierUsed
	}
	if !p.isKnownRoot(req.Root) {
		return nil, ErrInvalidRoot
	}
	if req.RecipientAccount != req.Recipient {
		return nil, ErrRecipientMismatch
	}
	if p.bank.Balance(p.Vault) < req.Amount {
		return nil, ErrInsufficientVaultBalance
	}

	publicInputs := EncodePublicInputs(req.Root, req.NullifierHash, req.Recipient, req.Amount)
	if err := p.verifier.VerifyProof(req.Proof, publicInputs); err != nil {
		return nil, fmt.Errorf("proof rejected: %w", err)
	}

	if err := p.Nullifiers.MarkUsed(req.NullifierHash); err != nil {
		return nil, err
	}
	if err := p.bank.Transfer(p.Vault, req.RecipientAccount, req.Amount); err != nil {
		// Balance was checked in this critical section and only pool
		// operations debit the vault, so this path is unreachable; the
		// rollback keeps the all-or-nothing boundary regardless.
		p.Nullifiers.rollback(req.NullifierHash)
		return nil, err
	}

	ev := WithdrawEvent{
		NullifierHash: req.NullifierHash,
		Recipient:     req.RecipientAccount,
		Timestamp:     time.Now().Unix(),
	}
	p.WithdrawLog = append(p.WithdrawLog, ev)
	if p.sink != nil {
		p.sink.PublishWithdraw(ev)
	}
	return &ev, nil
}
