// Package private implements the validator-to-validator administrative
// HTTP surface that carries the PBFT wire messages between peers.
package private

import (
	"context"
	"net/http"

	v1 "github.com/clawrrency/clawrrency/business/web/v1"
	"github.com/clawrrency/clawrrency/foundation/blockchain/consensus"
	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/errs"
	"github.com/clawrrency/clawrrency/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of private, validator-facing endpoints.
type Handlers struct {
	Log       *zap.SugaredLogger
	Consensus *consensus.Engine
}

// prePrepareRequest carries the PRE-PREPARE message alongside the
// transaction its digest refers to, since the wire message itself only
// carries the digest.
type prePrepareRequest struct {
	Message consensus.Message `json:"message"`
	Tx      database.SignedTx `json:"tx"`
}

// PrePrepare delivers a PRE-PREPARE message from the current leader.
func (h Handlers) PrePrepare(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.Consensus == nil {
		return v1.FromCoreError(errs.New(errs.ConsensusFailure, "consensus is not enabled on this node"))
	}

	var req prePrepareRequest
	if err := web.Decode(r, &req); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	if err := h.Consensus.HandlePrePrepare(req.Message, req.Tx); err != nil {
		return v1.FromCoreError(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// batchPrePrepareRequest carries a batched PRE-PREPARE message alongside
// the transactions whose digests its merkle root covers.
type batchPrePrepareRequest struct {
	Message consensus.Message   `json:"message"`
	Txs     []database.SignedTx `json:"txs"`
}

// BatchPrePrepare delivers a merkle-batched PRE-PREPARE message from the
// current leader.
func (h Handlers) BatchPrePrepare(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.Consensus == nil {
		return v1.FromCoreError(errs.New(errs.ConsensusFailure, "consensus is not enabled on this node"))
	}

	var req batchPrePrepareRequest
	if err := web.Decode(r, &req); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	if err := h.Consensus.HandleBatchPrePrepare(req.Message, req.Txs); err != nil {
		return v1.FromCoreError(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// Prepare delivers a PREPARE vote from a peer validator.
func (h Handlers) Prepare(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.Consensus == nil {
		return v1.FromCoreError(errs.New(errs.ConsensusFailure, "consensus is not enabled on this node"))
	}

	var msg consensus.Message
	if err := web.Decode(r, &msg); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	if err := h.Consensus.HandlePrepare(msg); err != nil {
		return v1.FromCoreError(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// Commit delivers a COMMIT vote from a peer validator.
func (h Handlers) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.Consensus == nil {
		return v1.FromCoreError(errs.New(errs.ConsensusFailure, "consensus is not enabled on this node"))
	}

	var msg consensus.Message
	if err := web.Decode(r, &msg); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	if err := h.Consensus.HandleCommit(msg); err != nil {
		return v1.FromCoreError(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// Status reports this validator's current view, pending count, and leader.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.Consensus == nil {
		return v1.FromCoreError(errs.New(errs.ConsensusFailure, "consensus is not enabled on this node"))
	}

	status := struct {
		View    uint64             `json:"view"`
		Pending int                `json:"pending"`
		Leader  database.AccountID `json:"leader"`
		Self    database.AccountID `json:"self"`
	}{
		View:    h.Consensus.View(),
		Pending: h.Consensus.PendingCount(),
		Leader:  h.Consensus.Leader(),
		Self:    h.Consensus.Self().ID,
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}
