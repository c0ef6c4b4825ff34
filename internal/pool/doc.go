// Package pool implements the on-ledger state machine of a shielded-value
// pool: depositors escrow value against an opaque commitment, withdrawers
// later release value to an arbitrary recipient by presenting a
// zero-knowledge proof checked by an external verifier.
//
// State model:
//   - One Pool per deployment, holding the counters and the bounded window
//     of recent commitment-tree roots (the ring buffer).
//   - One NullifierSet per Pool, the append-only double-spend guard.
//   - A Bank models the host ledger's atomic value-move primitive; the
//     Vault is the pool-derived escrow account inside it.
//
// Every Deposit and Withdraw runs as a single critical section: all checks
// pass and every state change commits, or the operation aborts with no
// visible effect. The cryptographic backend is pluggable through the
// Verifier interface; the pool treats proofs and all 32-byte values as
// opaque.
//
// Merkle arithmetic is deliberately absent here. Clients compute the new
// root off-ledger when depositing; a wrong root is never accepted by any
// later withdrawal's root-window check, so a buggy client only harms
// itself. See the merkle, wallet and indexer packages for the off-ledger
// side.
package pool
