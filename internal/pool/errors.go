// errors.go - Failure taxonomy of the shielded pool.
//
// Every error is detected synchronously inside the operation and aborts it
// with no state change; nothing is retried internally. Clients recover by
// adjusting inputs off-ledger (e.g. reproving against a fresher root).

package pool

import "errors"

var (
	// ErrTreeFull: the commitment tree reached MaxLeaves; no further
	// deposits are possible for this pool instance.
	ErrTreeFull = errors.New("commitment tree is full")

	// ErrDepositTooSmall: deposit amount below MinDepositAmount.
	ErrDepositTooSmall = errors.New("deposit amount too small")

	// ErrNullifierUsed: the nullifier hash was already marked spent.
	ErrNullifierUsed = errors.New("nullifier already used")

	// ErrInvalidRoot: the root is not in the history window.
	ErrInvalidRoot = errors.New("unknown commitment root")

	// ErrNullifierSetFull: the bounded nullifier set is exhausted;
	// withdrawals halt for this pool instance.
	ErrNullifierSetFull = errors.New("nullifier set is full")

	// ErrRecipientMismatch: the payout account differs from the recipient
	// bound into the proof's public inputs.
	ErrRecipientMismatch = errors.New("recipient account does not match recipient parameter")

	// ErrInvalidVerifier: the verifier identity presented with the request
	// is not the pool's configured verifier.
	ErrInvalidVerifier = errors.New("invalid verifier identity")

	// ErrInsufficientVaultBalance: the vault cannot cover the withdrawal.
	ErrInsufficientVaultBalance = errors.New("insufficient vault balance for withdrawal")

	// ErrInsufficientFunds: a bank transfer exceeds the source balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
