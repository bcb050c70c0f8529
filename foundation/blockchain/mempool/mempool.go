// Package mempool maintains the set of pending transactions that have been
// received but not yet proposed in a consensus round, keyed by sender and
// nonce so a later resubmission with the same nonce naturally replaces the
// earlier one.
package mempool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
)

// Pool represents the pending pool of signed transactions waiting on a
// consensus round to include them.
type Pool struct {
	mu   sync.RWMutex
	pool map[string]database.SignedTx
}

// New constructs an empty pending pool.
func New() *Pool {
	return &Pool{
		pool: make(map[string]database.SignedTx),
	}
}

// Count returns the current number of transactions in the pool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.pool)
}

// Upsert adds or replaces a transaction in the pool, keyed by sender and
// nonce. A later submission for the same sender:nonce pair overwrites the
// earlier one, mirroring how a real sender would rebroadcast to bump a fee.
func (p *Pool) Upsert(tx database.SignedTx) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pool[mapKey(tx)] = tx

	return len(p.pool)
}

// Delete removes a transaction from the pool, called once it has been
// applied to the ledger.
func (p *Pool) Delete(tx database.SignedTx) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.pool, mapKey(tx))
}

// Truncate clears every pending transaction from the pool.
func (p *Pool) Truncate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pool = make(map[string]database.SignedTx)
}

// PickBatch returns up to howMany pending transactions for the next
// consensus proposal. Transactions for the same sender are always returned
// in nonce order; senders are otherwise interleaved round-robin so no
// single sender can crowd out the batch. Pass -1 for howMany to receive
// every pending transaction.
func (p *Pool) PickBatch(howMany int) []database.SignedTx {
	p.mu.RLock()
	grouped := make(map[database.AccountID][]database.SignedTx)
	for _, tx := range p.pool {
		grouped[tx.From] = append(grouped[tx.From], tx)
	}
	p.mu.RUnlock()

	if howMany == -1 {
		howMany = 0
		for _, txs := range grouped {
			howMany += len(txs)
		}
	}

	senders := make([]database.AccountID, 0, len(grouped))
	for from, txs := range grouped {
		sort.Sort(byNonce(txs))
		grouped[from] = txs
		senders = append(senders, from)
	}
	sort.Slice(senders, func(i, j int) bool { return senders[i] < senders[j] })

	var final []database.SignedTx
	for len(final) < howMany {
		progressed := false
		for _, from := range senders {
			if len(grouped[from]) == 0 {
				continue
			}
			final = append(final, grouped[from][0])
			grouped[from] = grouped[from][1:]
			progressed = true
			if len(final) == howMany {
				break
			}
		}
		if !progressed {
			break
		}
	}

	return final
}

// =============================================================================

// byNonce provides ascending sort by nonce so a sender's transactions are
// always proposed in the order they must be applied.
type byNonce []database.SignedTx

func (bn byNonce) Len() int           { return len(bn) }
func (bn byNonce) Less(i, j int) bool { return bn[i].Nonce < bn[j].Nonce }
func (bn byNonce) Swap(i, j int)      { bn[i], bn[j] = bn[j], bn[i] }

// =============================================================================

func mapKey(tx database.SignedTx) string {
	return fmt.Sprintf("%s:%d", tx.From, tx.Nonce)
}
