// nullifier.go - Append-only spent-note markers for one pool.
//
// The set is the sole double-spend guard of the withdraw protocol: marking
// a nullifier twice must fail. Membership and insertion are linear scans,
// acceptable at the fixed 256-entry bound; a relaxed bound would require a
// hashed or sorted structure instead.

package pool

// NullifierSet records spent-note markers for the pool it references.
// Entries are never removed and each value appears at most once.
type NullifierSet struct {
	Pool       Identity  `json:"pool"`
	Nullifiers []Bytes32 `json:"nullifiers"`
}

// Contains reports whether the nullifier hash was already marked used.
func (s *NullifierSet) Contains(n Bytes32) bool {
	for _, v := range s.Nullifiers {
		if v == n {
			return true
		}
	}
	return false
}

// MarkUsed records a nullifier hash as spent. It fails with
// ErrNullifierUsed on a duplicate and ErrNullifierSetFull at capacity.
func (s *NullifierSet) MarkUsed(n Bytes32) error {
	if s.Contains(n) {
		return ErrNullifierUsed
	}
	if len(s.Nullifiers) >= NullifierCapacity {
		return ErrNullifierSetFull
	}
	s.Nullifiers = append(s.Nullifiers, n)
	return nil
}

// rollback removes the most recent entry if it equals n. Used only to
// unwind a mark when the value transfer of the same operation is refused,
// so no committed state ever contains a nullifier without a payout.
func (s *NullifierSet) rollback(n Bytes32) {
	if l := len(s.Nullifiers); l > 0 && s.Nullifiers[l-1] == n {
		s.Nullifiers = s.Nullifiers[:l-1]
	}
}

// Len returns the number of recorded nullifiers.
func (s *NullifierSet) Len() int {
	return len(s.Nullifiers)
}
