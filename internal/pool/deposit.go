// deposit.go - Deposit protocol.
//
// The depositor computes the commitment and the resulting tree root
// off-ledger (commitment inserted at leaf index = next_leaf_index). The
// pool accepts new_root on trust: an incorrect root is simply never
// matched by any future withdrawal's root check, so a malicious or buggy
// depositor only harms itself. There is no way to correct a bad root
// afterwards; it ages out of the ring buffer through later deposits.

package pool

import "time"

// Deposit moves amount from the depositor into the vault, records the
// new root and returns the emitted event. On any failure no state
// changes: counters, vault balance and root history stay as they were.
func (p *Pool) Deposit(depositor Identity, commitment, newRoot Bytes32, amount uint64) (*DepositEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.NextLeafIndex >= MaxLeaves {
		return nil, ErrTreeFull
	}
	if amount < MinDepositAmount {
		return nil, ErrDepositTooSmall
	}
	if err := p.bank.Transfer(depositor, p.Vault, amount); err != nil {
		return nil, err
	}

	leafIndex := p.NextLeafIndex
	p.recordRoot(newRoot)
	p.NextLeafIndex++
	p.TotalDeposits++

	ev := DepositEvent{
		Commitment: commitment,
		LeafIndex:  leafIndex,
		NewRoot:    newRoot,
		Timestamp:  time.Now().Unix(),
	}
	p.DepositLog = append(p.DepositLog, ev)
	if p.sink != nil {
		p.sink.PublishDeposit(ev)
	}
	return &ev, nil
}
