package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/consensus"
	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"go.uber.org/zap"
)

// httpBroadcaster implements consensus.Broadcaster by POSTing each signed
// protocol message to every other validator's private API. Physical
// network transport is otherwise out of scope for the consensus module
// itself; this is the concrete binding this node supplies.
type httpBroadcaster struct {
	self    database.AccountID
	peers   []consensus.Member
	client  http.Client
	log     *zap.SugaredLogger
	running bool
}

func newHTTPBroadcaster(members []consensus.Member, selfIndex int, log *zap.SugaredLogger) *httpBroadcaster {
	b := httpBroadcaster{
		self: members[selfIndex].ID,
		log:  log,
		client: http.Client{
			Timeout: 5 * time.Second,
		},
	}

	for i, m := range members {
		if i != selfIndex {
			b.peers = append(b.peers, m)
		}
	}

	return &b
}

// started records that the private server is listening. Nothing reads the
// flag: every message is sent whether or not started has been called.
func (b *httpBroadcaster) started() {
	b.running = true
}

// SendPrePrepare delivers a PRE-PREPARE message and its transaction to
// every peer.
func (b *httpBroadcaster) SendPrePrepare(msg consensus.Message, tx database.SignedTx) {
	body := struct {
		Message consensus.Message `json:"message"`
		Tx      database.SignedTx `json:"tx"`
	}{msg, tx}

	b.broadcast("/v1/consensus/pre-prepare", body)
}

// SendBatchPrePrepare delivers a merkle-batched PRE-PREPARE message and
// its transactions to every peer.
func (b *httpBroadcaster) SendBatchPrePrepare(msg consensus.Message, txs []database.SignedTx) {
	body := struct {
		Message consensus.Message   `json:"message"`
		Txs     []database.SignedTx `json:"txs"`
	}{msg, txs}

	b.broadcast("/v1/consensus/batch-pre-prepare", body)
}

// SendPrepare delivers a PREPARE vote to every peer.
func (b *httpBroadcaster) SendPrepare(msg consensus.Message) {
	b.broadcast("/v1/consensus/prepare", msg)
}

// SendCommit delivers a COMMIT vote to every peer.
func (b *httpBroadcaster) SendCommit(msg consensus.Message) {
	b.broadcast("/v1/consensus/commit", msg)
}

func (b *httpBroadcaster) broadcast(path string, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		b.log.Errorw("broadcaster: marshal failed", "ERROR", err)
		return
	}

	for _, peer := range b.peers {
		go func(host string) {
			resp, err := b.client.Post("http://"+host+path, "application/json", bytes.NewReader(data))
			if err != nil {
				b.log.Infow("broadcaster: send failed", "host", host, "path", path, "ERROR", err)
				return
			}
			resp.Body.Close()
		}(peer.Host)
	}
}
