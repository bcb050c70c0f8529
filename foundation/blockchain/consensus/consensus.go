// Package consensus implements the PBFT-style three-phase agreement
// protocol (pre-prepare/prepare/commit) that orders transactions before
// they are handed to the ledger engine. The validator set is fixed at
// construction; leader rotation is deterministic modular rotation over
// the view number, and quorum is 2f+1 counting a validator's own implicit
// vote, where f = floor((n-1)/3).
package consensus

import (
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/errs"
	"github.com/clawrrency/clawrrency/foundation/blockchain/mempool"
	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
)

// EventHandler defines a function called when events occur in the engine,
// matching the logging convention used across the other foundation
// packages.
type EventHandler func(v string, args ...any)

// Ledger is the subset of the ledger engine the consensus module needs:
// applying a committed transaction and reading sender state to validate a
// submission before it enters the pending set.
type Ledger interface {
	ApplyTransaction(tx database.SignedTx) (database.StoredTx, error)
	GetAccount(accountID database.AccountID) (database.Account, bool)
}

// Broadcaster sends signed protocol messages to every other validator in
// the configured set. Physical network transport between validator peers
// is out of scope for this module; a concrete implementation (HTTP,
// gossip, or an in-process bus for single-process tests) satisfies this
// interface and is supplied by the caller.
type Broadcaster interface {
	SendPrePrepare(msg Message, tx database.SignedTx)
	SendBatchPrePrepare(msg Message, txs []database.SignedTx)
	SendPrepare(msg Message)
	SendCommit(msg Message)
}

// CommitCallback is invoked synchronously, in registration order, for
// every transaction this validator commits, before the next protocol
// message is processed.
type CommitCallback func(stored database.StoredTx)

// Member identifies one validator in the fixed validator set by its
// account id (public key) and network host.
type Member struct {
	ID   database.AccountID
	Host string
}

// =============================================================================

// pendingEntry tracks one transaction's (or one batch's) progress through
// the three-phase state machine. txs holds a single element for the
// common single-transaction path and more than one for a batched
// PRE-PREPARE, applied to the ledger in order at commit time.
type pendingEntry struct {
	txs         []database.SignedTx
	arrivedAt   time.Time
	view        uint64
	sequence    uint64
	prePrepared bool
	prepared    bool
	committed   bool
}

// Engine runs the PBFT state machine for a single validator process.
type Engine struct {
	mu sync.Mutex

	members    []Member
	selfIndex  int
	privateKey ed25519.PrivateKey

	view         uint64
	nextSequence uint64

	pending      map[string]*pendingEntry
	prepareVotes map[string]map[database.AccountID]bool
	commitVotes  map[string]map[database.AccountID]bool
	messageLog   []Message

	ledger      Ledger
	mempool     *mempool.Pool
	broadcaster Broadcaster
	callbacks   []CommitCallback

	viewTimeout  time.Duration
	lastProgress time.Time
	evHandler    EventHandler

	worker *worker
}

// New constructs a consensus engine. members must list every validator in
// a stable order with self included at selfIndex; this order is what
// determines leader rotation.
func New(members []Member, selfIndex int, privateKey ed25519.PrivateKey, ledger Ledger, broadcaster Broadcaster, viewTimeout time.Duration, evHandler EventHandler) (*Engine, error) {
	if selfIndex < 0 || selfIndex >= len(members) {
		return nil, fmt.Errorf("self index %d out of range for %d members", selfIndex, len(members))
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	e := Engine{
		members:      members,
		selfIndex:    selfIndex,
		privateKey:   privateKey,
		pending:      make(map[string]*pendingEntry),
		prepareVotes: make(map[string]map[database.AccountID]bool),
		commitVotes:  make(map[string]map[database.AccountID]bool),
		ledger:       ledger,
		mempool:      mempool.New(),
		broadcaster:  broadcaster,
		viewTimeout:  viewTimeout,
		lastProgress: time.Now(),
		evHandler:    ev,
	}

	return &e, nil
}

// Start launches the background goroutine that checks for a stalled view
// and triggers a view change. Callers that only want to drive the engine
// synchronously (tests, single-shot CLI submissions) may skip Start and
// call CheckViewTimeout themselves.
func (e *Engine) Start() {
	e.worker = runWorker(e)
}

// Stop halts the background view-timeout checker started by Start. It is
// a no-op if Start was never called.
func (e *Engine) Stop() {
	if e.worker != nil {
		e.worker.shutdown()
	}
}

// Self returns this validator's member record.
func (e *Engine) Self() Member {
	return e.members[e.selfIndex]
}

// OnCommit registers a callback invoked for every transaction this
// validator commits.
func (e *Engine) OnCommit(cb CommitCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.callbacks = append(e.callbacks, cb)
}

// View returns the current view number.
func (e *Engine) View() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.view
}

// PendingCount returns the number of transactions in flight through the
// state machine.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.pending)
}

// MessageLog returns every protocol message this validator has sent or
// recorded, in the order observed. Intended for diagnostics and the
// single-node property tests.
func (e *Engine) MessageLog() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Message, len(e.messageLog))
	copy(out, e.messageLog)
	return out
}

// =============================================================================

// quorum returns 2f+1 where f = floor((n-1)/3), counting a validator's own
// implicit vote as part of that count.
func (e *Engine) quorum() int {
	n := len(e.members)
	f := (n - 1) / 3
	return 2*f + 1
}

// QuorumForTest exposes the quorum size for property tests that pin the
// f=floor((n-1)/3), quorum=2f+1 formula without needing a full protocol
// run for every validator-set size.
func (e *Engine) QuorumForTest() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.quorum()
}

// leaderIndex returns the index into members of the leader for view.
func (e *Engine) leaderIndex(view uint64) int {
	return int(view % uint64(len(e.members)))
}

// Leader returns the account id of the leader for the current view.
func (e *Engine) Leader() database.AccountID {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.members[e.leaderIndex(e.view)].ID
}

// isLeaderLocked reports whether this validator is the leader for the current
// view. Must be called with e.mu held.
func (e *Engine) isLeaderLocked() bool {
	return e.leaderIndex(e.view) == e.selfIndex
}

// =============================================================================

// SubmitTransaction validates tx and, if this validator is the current
// leader, proposes it immediately via PRE-PREPARE. Otherwise it is held in
// the pending pool awaiting a PRE-PREPARE from the leader.
func (e *Engine) SubmitTransaction(tx database.SignedTx) error {
	if err := tx.Validate(); err != nil {
		return errs.Newf(errs.InvalidSignature, "%s", err)
	}

	sender, exists := e.ledger.GetAccount(tx.From)
	if !exists {
		return errs.Newf(errs.UnknownSender, "sender %s is not known", tx.From)
	}

	if tx.Nonce != sender.Nonce+1 {
		return errs.NewInvalidNonce(sender.Nonce + 1)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	digest := tx.Digest()
	if _, exists := e.pending[digest]; exists {
		return errs.Newf(errs.DuplicateTransaction, "transaction %s already pending", digest)
	}

	e.mempool.Upsert(tx)

	if !e.isLeaderLocked() {
		e.evHandler("consensus: SubmitTransaction: queued: digest[%s] awaiting leader[%s]", digest, e.members[e.leaderIndex(e.view)].ID)
		return nil
	}

	return e.proposeLocked(tx)
}

// proposeLocked assigns the next sequence number, records the pending
// entry, signs and broadcasts PRE-PREPARE, and advances this validator
// straight to its own PREPARE vote. Must be called with e.mu held.
func (e *Engine) proposeLocked(tx database.SignedTx) error {
	digest := tx.Digest()

	e.nextSequence++
	seq := e.nextSequence

	e.pending[digest] = &pendingEntry{
		txs:         []database.SignedTx{tx},
		arrivedAt:   time.Now(),
		view:        e.view,
		sequence:    seq,
		prePrepared: true,
	}
	e.lastProgress = time.Now()

	msg := Message{Type: PhasePrePrepare, View: e.view, Sequence: seq, Digest: digest, Validator: string(e.Self().ID)}
	signed, err := sign(msg, e.privateKey)
	if err != nil {
		return fmt.Errorf("signing pre-prepare: %w", err)
	}
	e.messageLog = append(e.messageLog, signed)

	e.evHandler("consensus: proposeLocked: pre-prepare: digest[%s] view[%d] seq[%d]", digest, e.view, seq)

	if e.broadcaster != nil {
		e.broadcaster.SendPrePrepare(signed, tx)
	}

	return e.advanceToPrepareLocked(digest)
}

// SubmitBatch validates every transaction in txs and, if this validator is
// the current leader, proposes the whole batch as a single PRE-PREPARE
// whose digest is a merkle root over the batch's transaction digests
// rather than a single transaction digest. Once quorum commits the batch,
// the ledger applies each transaction in order; a rejection partway
// through (a nonce race with something applied outside the batch, say)
// stops the batch there rather than rolling back what already landed.
// This path exists for a leader that wants to order several independent
// transactions in one round; single-transaction submission through
// SubmitTransaction remains the common case.
func (e *Engine) SubmitBatch(txs []database.SignedTx) error {
	if len(txs) == 0 {
		return errs.Newf(errs.InvalidAmount, "batch must contain at least one transaction")
	}

	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return errs.Newf(errs.InvalidSignature, "%s", err)
		}
		sender, exists := e.ledger.GetAccount(tx.From)
		if !exists {
			return errs.Newf(errs.UnknownSender, "sender %s is not known", tx.From)
		}
		if tx.Nonce != sender.Nonce+1 {
			return errs.NewInvalidNonce(sender.Nonce + 1)
		}
	}

	digest, err := batchDigest(txs)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.pending[digest]; exists {
		return errs.Newf(errs.DuplicateTransaction, "batch %s already pending", digest)
	}

	for _, tx := range txs {
		e.mempool.Upsert(tx)
	}

	if !e.isLeaderLocked() {
		e.evHandler("consensus: SubmitBatch: queued: digest[%s] size[%d] awaiting leader[%s]", digest, len(txs), e.members[e.leaderIndex(e.view)].ID)
		return nil
	}

	return e.proposeBatchLocked(digest, txs)
}

// proposeBatchLocked mirrors proposeLocked for a merkle-batched
// PRE-PREPARE. Must be called with e.mu held.
func (e *Engine) proposeBatchLocked(digest string, txs []database.SignedTx) error {
	e.nextSequence++
	seq := e.nextSequence

	e.pending[digest] = &pendingEntry{
		txs:         txs,
		arrivedAt:   time.Now(),
		view:        e.view,
		sequence:    seq,
		prePrepared: true,
	}
	e.lastProgress = time.Now()

	msg := Message{Type: PhasePrePrepare, View: e.view, Sequence: seq, Digest: digest, Validator: string(e.Self().ID)}
	signed, err := sign(msg, e.privateKey)
	if err != nil {
		return fmt.Errorf("signing batch pre-prepare: %w", err)
	}
	e.messageLog = append(e.messageLog, signed)

	e.evHandler("consensus: proposeBatchLocked: pre-prepare: digest[%s] size[%d] view[%d] seq[%d]", digest, len(txs), e.view, seq)

	if e.broadcaster != nil {
		e.broadcaster.SendBatchPrePrepare(signed, txs)
	}

	return e.advanceToPrepareLocked(digest)
}

// HandleBatchPrePrepare processes a batched PRE-PREPARE received from the
// network, verifying that its digest is in fact the merkle root over the
// carried transactions' digests before entering the pending set.
func (e *Engine) HandleBatchPrePrepare(msg Message, txs []database.SignedTx) error {
	leaderKey, err := signature.DecodePublicKey(msg.Validator)
	if err != nil || !verify(msg, leaderKey) {
		e.evHandler("consensus: HandleBatchPrePrepare: dropped: bad signature")
		return nil
	}

	want, err := batchDigest(txs)
	if err != nil || msg.Digest != want {
		e.evHandler("consensus: HandleBatchPrePrepare: dropped: digest mismatch")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if msg.View != e.view {
		e.evHandler("consensus: HandleBatchPrePrepare: dropped: view mismatch got[%d] have[%d]", msg.View, e.view)
		return nil
	}

	if database.AccountID(msg.Validator) != e.members[e.leaderIndex(e.view)].ID {
		e.evHandler("consensus: HandleBatchPrePrepare: dropped: not from current leader")
		return nil
	}

	if entry, exists := e.pending[msg.Digest]; exists && entry.prePrepared {
		return nil
	}

	e.pending[msg.Digest] = &pendingEntry{
		txs:         txs,
		arrivedAt:   time.Now(),
		view:        msg.View,
		sequence:    msg.Sequence,
		prePrepared: true,
	}
	e.lastProgress = time.Now()
	e.messageLog = append(e.messageLog, msg)

	e.evHandler("consensus: HandleBatchPrePrepare: recorded: digest[%s] size[%d] view[%d] seq[%d]", msg.Digest, len(txs), msg.View, msg.Sequence)

	return e.advanceToPrepareLocked(msg.Digest)
}

// HandlePrePrepare processes a PRE-PREPARE received from the network. tx
// is the transaction the message's digest refers to, carried alongside
// the message by the transport layer.
func (e *Engine) HandlePrePrepare(msg Message, tx database.SignedTx) error {
	leaderKey, err := signature.DecodePublicKey(msg.Validator)
	if err != nil || !verify(msg, leaderKey) {
		e.evHandler("consensus: HandlePrePrepare: dropped: bad signature")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if msg.View != e.view {
		e.evHandler("consensus: HandlePrePrepare: dropped: view mismatch got[%d] have[%d]", msg.View, e.view)
		return nil
	}

	if database.AccountID(msg.Validator) != e.members[e.leaderIndex(e.view)].ID {
		e.evHandler("consensus: HandlePrePrepare: dropped: not from current leader")
		return nil
	}

	if msg.Digest != tx.Digest() {
		e.evHandler("consensus: HandlePrePrepare: dropped: digest mismatch")
		return nil
	}

	if entry, exists := e.pending[msg.Digest]; exists && entry.prePrepared {
		return nil
	}

	e.pending[msg.Digest] = &pendingEntry{
		txs:         []database.SignedTx{tx},
		arrivedAt:   time.Now(),
		view:        msg.View,
		sequence:    msg.Sequence,
		prePrepared: true,
	}
	e.lastProgress = time.Now()
	e.messageLog = append(e.messageLog, msg)

	e.evHandler("consensus: HandlePrePrepare: recorded: digest[%s] view[%d] seq[%d]", msg.Digest, msg.View, msg.Sequence)

	return e.advanceToPrepareLocked(msg.Digest)
}

// advanceToPrepareLocked emits this validator's PREPARE vote for digest.
// Must be called with e.mu held and with the entry already marked
// prePrepared.
func (e *Engine) advanceToPrepareLocked(digest string) error {
	entry := e.pending[digest]

	msg := Message{Type: PhasePrepare, View: entry.view, Sequence: entry.sequence, Digest: digest, Validator: string(e.Self().ID)}
	signed, err := sign(msg, e.privateKey)
	if err != nil {
		return fmt.Errorf("signing prepare: %w", err)
	}
	e.messageLog = append(e.messageLog, signed)

	if e.broadcaster != nil {
		e.broadcaster.SendPrepare(signed)
	}

	return e.tryAdvanceToCommitLocked(digest)
}

// HandlePrepare records a PREPARE vote from the network and advances the
// entry to COMMIT once quorum is reached.
func (e *Engine) HandlePrepare(msg Message) error {
	return e.recordVote(msg, PhasePrepare)
}

// HandleCommit records a COMMIT vote from the network and applies the
// transaction to the ledger once quorum is reached.
func (e *Engine) HandleCommit(msg Message) error {
	return e.recordVote(msg, PhaseCommit)
}

func (e *Engine) recordVote(msg Message, phase Phase) error {
	validatorKey, err := signature.DecodePublicKey(msg.Validator)
	if err != nil || !verify(msg, validatorKey) {
		e.evHandler("consensus: recordVote: dropped: bad signature phase[%s]", phase)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if msg.View != e.view {
		e.evHandler("consensus: recordVote: dropped: view mismatch phase[%s]", phase)
		return nil
	}

	entry, exists := e.pending[msg.Digest]
	if !exists || !entry.prePrepared {
		e.evHandler("consensus: recordVote: dropped: no pre-prepare recorded yet digest[%s]", msg.Digest)
		return nil
	}

	e.messageLog = append(e.messageLog, msg)

	validator := database.AccountID(msg.Validator)
	switch phase {
	case PhasePrepare:
		votes := e.prepareVotes[msg.Digest]
		if votes == nil {
			votes = make(map[database.AccountID]bool)
			e.prepareVotes[msg.Digest] = votes
		}
		votes[validator] = true

		if entry.prepared || len(votes)+1 < e.quorum() {
			return nil
		}
		entry.prepared = true
		e.lastProgress = time.Now()
		e.evHandler("consensus: recordVote: prepared: digest[%s]", msg.Digest)

		return e.advanceToCommitLocked(msg.Digest)

	case PhaseCommit:
		votes := e.commitVotes[msg.Digest]
		if votes == nil {
			votes = make(map[database.AccountID]bool)
			e.commitVotes[msg.Digest] = votes
		}
		votes[validator] = true

		if entry.committed || len(votes)+1 < e.quorum() {
			return nil
		}

		return e.applyAndFinalizeLocked(msg.Digest)
	}

	return nil
}

// tryAdvanceToCommitLocked checks whether this validator's own implicit
// PREPARE vote is already enough to satisfy quorum (the common case on a
// single-node deployment, n=1) and if so proceeds straight to COMMIT.
func (e *Engine) tryAdvanceToCommitLocked(digest string) error {
	entry := e.pending[digest]
	votes := e.prepareVotes[digest]

	if entry.prepared || len(votes)+1 < e.quorum() {
		return nil
	}
	entry.prepared = true
	e.lastProgress = time.Now()

	return e.advanceToCommitLocked(digest)
}

// advanceToCommitLocked emits this validator's COMMIT vote for digest and
// checks whether that implicit vote alone reaches quorum.
func (e *Engine) advanceToCommitLocked(digest string) error {
	entry := e.pending[digest]

	msg := Message{Type: PhaseCommit, View: entry.view, Sequence: entry.sequence, Digest: digest, Validator: string(e.Self().ID)}
	signed, err := sign(msg, e.privateKey)
	if err != nil {
		return fmt.Errorf("signing commit: %w", err)
	}
	e.messageLog = append(e.messageLog, signed)

	if e.broadcaster != nil {
		e.broadcaster.SendCommit(signed)
	}

	votes := e.commitVotes[digest]
	if entry.committed || len(votes)+1 < e.quorum() {
		return nil
	}

	return e.applyAndFinalizeLocked(digest)
}

// applyAndFinalizeLocked applies every transaction carried by the
// committed entry to the ledger in order, invokes registered commit
// callbacks synchronously for each one applied, and erases the pending
// entry and its vote sets. For the common single-transaction entry this
// is one ledger call; for a batch it is one call per transaction in the
// merkle-ordered digest.
func (e *Engine) applyAndFinalizeLocked(digest string) error {
	entry := e.pending[digest]
	entry.committed = true

	var lastErr error
	for _, tx := range entry.txs {
		stored, err := e.ledger.ApplyTransaction(tx)
		if err != nil {
			e.evHandler("consensus: applyAndFinalizeLocked: ledger rejected digest[%s] tx[%s]: %v", digest, tx.Digest(), err)
			lastErr = err
			break
		}

		e.mempool.Delete(tx)

		for _, cb := range e.callbacks {
			cb(stored)
		}

		e.evHandler("consensus: applyAndFinalizeLocked: committed: digest[%s] tx[%s] height[%d]", digest, tx.Digest(), stored.BlockHeight)
	}

	e.lastProgress = time.Now()

	delete(e.pending, digest)
	delete(e.prepareVotes, digest)
	delete(e.commitVotes, digest)

	return lastErr
}

// =============================================================================

// CheckViewTimeout advances the view if the validator has made no progress
// within viewTimeout while a transaction is in flight at the current
// sequence. It is driven by the engine's background worker on a tick and
// is exported so tests can exercise view change deterministically.
func (e *Engine) CheckViewTimeout() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if time.Since(e.lastProgress) < e.viewTimeout {
		return
	}

	inFlight := false
	for _, entry := range e.pending {
		if entry.view == e.view && !entry.committed {
			inFlight = true
			break
		}
	}
	if !inFlight {
		return
	}

	oldView := e.view
	e.view++
	e.lastProgress = time.Now()

	for digest, entry := range e.pending {
		if entry.view == oldView {
			delete(e.prepareVotes, digest)
			delete(e.commitVotes, digest)
		}
	}

	e.evHandler("consensus: CheckViewTimeout: view change: old[%d] new[%d] leader[%s]", oldView, e.view, e.members[e.leaderIndex(e.view)].ID)

	if e.isLeaderLocked() {
		for _, tx := range e.mempool.PickBatch(-1) {
			if entry, exists := e.pending[tx.Digest()]; exists && entry.committed {
				continue
			}
			_ = e.proposeLocked(tx)
		}
	}
}
