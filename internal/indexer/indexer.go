// indexer.go - Off-ledger reconstruction of the commitment tree.
//
// Indexers rebuild the tree from the pool's DepositEvent stream: the
// (commitment, leaf_index) sequence fully determines it. Because the pool
// accepts depositor-supplied roots on trust, the indexer also recomputes
// each root and flags deposits whose reported root diverges — those
// notes can never be withdrawn against the bogus root.

package indexer

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"shieldedpool/internal/feed"
	"shieldedpool/internal/merkle"
	"shieldedpool/internal/pool"
)

// Indexer maintains a reconstructed view of one pool's commitment tree.
type Indexer struct {
	mu          sync.Mutex
	tree        *merkle.Tree
	commitments []pool.Bytes32
	divergent   []uint64
}

// New creates an empty indexer.
func New() *Indexer {
	return &Indexer{
		tree:        merkle.NewTree(pool.TreeDepth),
		commitments: make([]pool.Bytes32, 0),
	}
}

// ApplyDeposit extends the reconstructed tree with one event. Events must
// arrive in leaf order; a gap is an error the caller must resolve by
// replaying the log.
func (ix *Indexer) ApplyDeposit(ev pool.DepositEvent) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ev.LeafIndex != uint64(len(ix.commitments)) {
		return fmt.Errorf("unexpected leaf index %d, want %d", ev.LeafIndex, len(ix.commitments))
	}
	if _, err := ix.tree.AddLeaf(ev.Commitment); err != nil {
		return err
	}
	ix.commitments = append(ix.commitments, ev.Commitment)
	if pool.Bytes32(ix.tree.Root()) != ev.NewRoot {
		ix.divergent = append(ix.divergent, ev.LeafIndex)
	}
	return nil
}

// Replay applies a whole deposit log in order.
func (ix *Indexer) Replay(events []pool.DepositEvent) error {
	for _, ev := range events {
		if err := ix.ApplyDeposit(ev); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the recomputed tree root.
func (ix *Indexer) Root() pool.Bytes32 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return pool.Bytes32(ix.tree.Root())
}

// LeafCount returns the number of indexed commitments.
func (ix *Indexer) LeafCount() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.commitments)
}

// DivergentLeaves returns the leaf indices whose reported root did not
// match the recomputed one.
func (ix *Indexer) DivergentLeaves() []uint64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]uint64, len(ix.divergent))
	copy(out, ix.divergent)
	return out
}

// Witness returns the Merkle path for a leaf, for wallets that rely on an
// indexer instead of a full local tree.
func (ix *Indexer) Witness(index int) ([][32]byte, []int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.tree.Witness(index)
}

// Subscribe registers this indexer on a feed node so deposit events are
// applied as they arrive.
func (ix *Indexer) Subscribe(n *feed.Node) {
	n.RegisterHandler(feed.MsgDeposit, func(_ *feed.Node, msg feed.Message) {
		var ev pool.DepositEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			log.Printf("[indexer] bad deposit payload: %v", err)
			return
		}
		if err := ix.ApplyDeposit(ev); err != nil {
			log.Printf("[indexer] apply deposit failed: %v", err)
		}
	})
}
