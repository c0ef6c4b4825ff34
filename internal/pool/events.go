// events.go - Published events for off-ledger indexers.
//
// The emitted (commitment, leaf_index) sequence is sufficient to rebuild
// the commitment tree in full; new_root lets indexers cross-check the
// depositor-supplied root against their own recomputation.

package pool

// DepositEvent is emitted on every successful deposit.
type DepositEvent struct {
	Commitment Bytes32 `json:"commitment"`
	LeafIndex  uint64  `json:"leaf_index"`
	NewRoot    Bytes32 `json:"new_root"`
	Timestamp  int64   `json:"timestamp"`
}

// WithdrawEvent is emitted on every successful withdrawal.
type WithdrawEvent struct {
	NullifierHash Bytes32  `json:"nullifier_hash"`
	Recipient     Identity `json:"recipient"`
	Timestamp     int64    `json:"timestamp"`
}

// EventSink receives committed events. Implementations must not call back
// into the pool; publication happens inside the operation's critical
// section.
type EventSink interface {
	PublishDeposit(DepositEvent)
	PublishWithdraw(WithdrawEvent)
}
