// Package public implements the operator/wallet-facing HTTP surface: read
// access to ledger state, transaction submission, the marketplace, and a
// websocket feed of commit events.
package public

import (
	"context"
	"net/http"
	"strconv"

	v1 "github.com/clawrrency/clawrrency/business/web/v1"
	"github.com/clawrrency/clawrrency/foundation/blockchain/consensus"
	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/economics"
	"github.com/clawrrency/clawrrency/foundation/blockchain/errs"
	"github.com/clawrrency/clawrrency/foundation/blockchain/genesis"
	"github.com/clawrrency/clawrrency/foundation/blockchain/identity"
	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
	"github.com/clawrrency/clawrrency/foundation/blockchain/skills"
	"github.com/clawrrency/clawrrency/foundation/events"
	"github.com/clawrrency/clawrrency/foundation/nameservice"
	"github.com/clawrrency/clawrrency/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log       *zap.SugaredLogger
	Gen       genesis.Genesis
	Ledger    *database.Ledger
	Identity  *identity.Registry
	Market    *skills.Market
	Consensus *consensus.Engine
	NS        *nameservice.NameService
	Evts      *events.Events
	WS        websocket.Upgrader
}

// Genesis returns the genesis parameters this node was seeded from.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Gen, http.StatusOK)
}

// Accounts returns every known account, or a single account when :account
// is present in the route.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountParam := web.Param(r, "account")
	if accountParam == "" {
		return web.Respond(ctx, w, h.Ledger.ListAccounts(), http.StatusOK)
	}

	acc, exists := h.Ledger.GetAccount(database.AccountID(accountParam))
	if !exists {
		return v1.FromCoreError(errs.Newf(errs.UnknownSender, "unknown account %s", accountParam))
	}

	return web.Respond(ctx, w, acc, http.StatusOK)
}

// TxHistory returns the newest-first transaction history for :account,
// truncated to an optional ?limit= query parameter.
func (h Handlers) TxHistory(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountParam := web.Param(r, "account")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return v1.NewRequestError(err, http.StatusBadRequest)
		}
		limit = n
	}

	history := h.Ledger.GetTransactionHistory(database.AccountID(accountParam), limit)

	return web.Respond(ctx, w, history, http.StatusOK)
}

// TxSubmit accepts a signed transaction and routes it into consensus
// submission when a consensus engine is configured, otherwise applies it
// directly to the ledger for a single embedded node.
func (h Handlers) TxSubmit(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var tx database.SignedTx
	if err := web.Decode(r, &tx); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	if h.Consensus != nil {
		if err := h.Consensus.SubmitTransaction(tx); err != nil {
			return v1.FromCoreError(err)
		}

		return web.Respond(ctx, w, struct {
			Digest string `json:"digest"`
			Status string `json:"status"`
		}{tx.Digest(), "pending"}, http.StatusAccepted)
	}

	stored, err := h.Ledger.ApplyTransaction(tx)
	if err != nil {
		return v1.FromCoreError(err)
	}

	return web.Respond(ctx, w, stored, http.StatusOK)
}

// SkillsList returns every listing in the marketplace.
func (h Handlers) SkillsList(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Market.ListListings(), http.StatusOK)
}

// SkillGet returns a single skill's manifest and listing state.
func (h Handlers) SkillGet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")

	skill, exists := h.Market.Get(id)
	if !exists {
		return v1.FromCoreError(errs.Newf(errs.InvalidSkill, "unknown skill %s", id))
	}

	listing, _ := h.Market.GetListing(id)

	return web.Respond(ctx, w, struct {
		Skill   skills.Skill   `json:"skill"`
		Listing skills.Listing `json:"listing"`
	}{skill, listing}, http.StatusOK)
}

// skillCreateRequest is the payload for POST /v1/skills.
type skillCreateRequest struct {
	Name        string            `json:"name" validate:"required"`
	Description string            `json:"description"`
	Version     string            `json:"version" validate:"required"`
	Type        string            `json:"type" validate:"required"`
	Files       map[string]string `json:"files" validate:"required"`
	FileOrder   []string          `json:"file_order" validate:"required"`
	Creator     string            `json:"creator" validate:"required"`
	Deps        []string          `json:"deps"`
	License     string            `json:"license"`
	Entry       string            `json:"entry"`
}

// SkillCreate hashes and stores a new skill manifest and its files.
func (h Handlers) SkillCreate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req skillCreateRequest
	if err := web.Decode(r, &req); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	files := make(map[string][]byte, len(req.Files))
	for path, content := range req.Files {
		files[path] = []byte(content)
	}

	skill, err := h.Market.CreateSkill(req.Name, req.Description, req.Version, req.Type, files, req.FileOrder, req.Creator, req.Deps, req.License, req.Entry)
	if err != nil {
		return v1.FromCoreError(err)
	}

	return web.Respond(ctx, w, skill, http.StatusCreated)
}

// skillListRequest is the payload for POST /v1/skills/list.
type skillListRequest struct {
	SkillID string `json:"skill_id" validate:"required"`
	Price   uint64 `json:"price"`
	Seller  string `json:"seller" validate:"required"`
}

// SkillListCreate marks a previously created skill as an active listing.
func (h Handlers) SkillListCreate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req skillListRequest
	if err := web.Decode(r, &req); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	listing, err := h.Market.ListSkill(req.SkillID, req.Price, req.Seller)
	if err != nil {
		return v1.FromCoreError(err)
	}

	return web.Respond(ctx, w, listing, http.StatusOK)
}

// skillPurchaseRequest is the payload for POST /v1/skills/purchase.
type skillPurchaseRequest struct {
	SkillID         string `json:"skill_id" validate:"required"`
	Buyer           string `json:"buyer" validate:"required"`
	BuyerPrivateKey string `json:"buyer_private_key" validate:"required"`
}

// SkillPurchase settles a skill purchase as a ledger transaction.
func (h Handlers) SkillPurchase(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req skillPurchaseRequest
	if err := web.Decode(r, &req); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	privateKey, err := signature.DecodePrivateKey(req.BuyerPrivateKey)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	purchase, err := h.Market.PurchaseSkill(req.SkillID, req.Buyer, privateKey)
	if err != nil {
		return v1.FromCoreError(err)
	}

	return web.Respond(ctx, w, purchase, http.StatusOK)
}

// skillReviewRequest is the payload for POST /v1/skills/review.
type skillReviewRequest struct {
	SkillID  string `json:"skill_id" validate:"required"`
	Reviewer string `json:"reviewer" validate:"required"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Comment  string `json:"comment"`
}

// SkillReview appends a review of a purchased skill.
func (h Handlers) SkillReview(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req skillReviewRequest
	if err := web.Decode(r, &req); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	review, err := h.Market.AddReview(req.SkillID, req.Reviewer, req.Rating, req.Comment)
	if err != nil {
		return v1.FromCoreError(err)
	}

	return web.Respond(ctx, w, review, http.StatusOK)
}

// identityWalletRequest is the payload for POST /v1/identity/wallets.
type identityWalletRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// IdentityCreateWallet generates a fresh keypair, opens a zero-balance
// ledger account for it, and returns both halves of the keypair. The
// caller is responsible for persisting the private key; the registry
// keeps a copy, which in-process code can read back through
// identity.Registry.PrivateKey. No HTTP route returns it.
func (h Handlers) IdentityCreateWallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req identityWalletRequest
	if err := web.Decode(r, &req); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	kp, err := h.Identity.CreateWallet(req.Name, req.Description)
	if err != nil {
		return v1.FromCoreError(err)
	}

	return web.Respond(ctx, w, struct {
		PublicKey  string `json:"public_key"`
		PrivateKey string `json:"private_key"`
	}{kp.PublicKeyHex(), kp.PrivateKeyHex()}, http.StatusCreated)
}

// Identities returns every known identity, or a single identity when
// :account is present in the route.
func (h Handlers) Identities(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountParam := web.Param(r, "account")
	if accountParam == "" {
		return web.Respond(ctx, w, h.Identity.List(), http.StatusOK)
	}

	id, exists := h.Identity.Get(accountParam)
	if !exists {
		return v1.FromCoreError(errs.Newf(errs.UnknownSender, "unknown identity %s", accountParam))
	}

	return web.Respond(ctx, w, id, http.StatusOK)
}

// identityRegisterRequest is the payload for POST /v1/identity/register.
type identityRegisterRequest struct {
	PublicKey  string `json:"public_key" validate:"required"`
	Stake      uint64 `json:"stake" validate:"required"`
	AttesterPK string `json:"attester_public_key"`
}

// IdentityRegister locks the bot's stake and mints its registration reward.
func (h Handlers) IdentityRegister(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req identityRegisterRequest
	if err := web.Decode(r, &req); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	if err := h.Identity.RegisterBot(req.PublicKey, req.Stake, req.AttesterPK); err != nil {
		return v1.FromCoreError(err)
	}

	id, _ := h.Identity.Get(req.PublicKey)

	return web.Respond(ctx, w, id, http.StatusOK)
}

// identityReputationRequest is the payload for POST /v1/identity/reputation.
type identityReputationRequest struct {
	PublicKey string                       `json:"public_key" validate:"required"`
	Counters  economics.ReputationCounters `json:"counters"`
}

// IdentityReputation recomputes and stores a bot's reputation score from
// the supplied activity counters.
func (h Handlers) IdentityReputation(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req identityReputationRequest
	if err := web.Decode(r, &req); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	score, err := h.Identity.UpdateReputation(req.PublicKey, req.Counters)
	if err != nil {
		return v1.FromCoreError(err)
	}

	return web.Respond(ctx, w, struct {
		Reputation float64 `json:"reputation"`
	}{score}, http.StatusOK)
}

// Events upgrades the connection to a websocket and streams every commit
// and consensus event to the caller until the connection closes.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	traceID := web.GetTraceID(ctx)
	ch := h.Evts.Acquire(traceID)
	defer h.Evts.Release(traceID)

	for msg := range ch {
		if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			h.Log.Infow("events: write failed, closing", "traceid", traceID, "ERROR", err)
			return nil
		}
	}

	return nil
}
