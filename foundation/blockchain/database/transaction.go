package database

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
)

// TxType identifies the kind of state transition a transaction performs.
type TxType string

// Supported transaction types.
const (
	TxTransfer      TxType = "transfer"
	TxMint          TxType = "mint"
	TxBurn          TxType = "burn"
	TxStake         TxType = "stake"
	TxSkillCreate   TxType = "skill_create"
	TxSkillPurchase TxType = "skill_purchase"
)

// CurrentVersion is the only transaction wire version this implementation
// understands.
const CurrentVersion = 1

// =============================================================================

// SkillPayload carries the skill identifiers attached to a skill_purchase
// transaction. It is validated by the marketplace before the transaction is
// ever submitted to the ledger; the ledger only moves value.
type SkillPayload struct {
	SkillID      string `json:"skill_id"`
	ManifestHash string `json:"manifest_hash"`
	Creator      string `json:"creator"`
	Price        uint64 `json:"price"`
	CreatedAt    int64  `json:"created_at"`
}

// GovernancePayload carries a reference to an external governance proposal
// touched by a transaction, reserved for transaction types that tie value
// movement to a governance outcome.
type GovernancePayload struct {
	ProposalID string `json:"proposal_id"`
	Action     string `json:"action"`
}

// Payload is the typed, optional data carried by a transaction. Exactly one
// of its fields is populated depending on Tx.Type; both are omitted from
// the canonical encoding when nil so absent payloads are genuinely absent.
type Payload struct {
	Skill      *SkillPayload      `json:"skill,omitempty"`
	Governance *GovernancePayload `json:"governance,omitempty"`
}

// =============================================================================

// Tx is the unsigned transaction record. Field order and tags here define
// the canonical JSON this implementation hashes and signs; the signature
// is intentionally absent from Tx and only appears on SignedTx.
type Tx struct {
	Version   int       `json:"version"`
	Type      TxType    `json:"type"`
	From      AccountID `json:"from"`
	To        AccountID `json:"to,omitempty"`
	Amount    uint64    `json:"amount"`
	Nonce     uint64    `json:"nonce"`
	Timestamp int64     `json:"timestamp"`
	Data      *Payload  `json:"data,omitempty"`
}

// Hash returns the canonical SHA-256 digest of the unsigned transaction,
// hex-encoded. This is the transaction's stable identity.
func (tx Tx) Hash() string {
	return signature.Hash(tx)
}

// Sign produces a SignedTx by signing the transaction's hash with the given
// private key. The caller is responsible for ensuring the private key
// corresponds to tx.From.
func (tx Tx) Sign(privateKey ed25519.PrivateKey) (SignedTx, error) {
	sig, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, fmt.Errorf("signing transaction: %w", err)
	}

	return SignedTx{
		Tx:        tx,
		Signature: signature.SignatureHex(sig),
	}, nil
}

// =============================================================================

// signedTxWire mirrors the transaction wire format: {version, type, from,
// to?, amount, nonce, timestamp, data?, signature}. SignedTx marshals
// through this shape so the embedded Tx's fields appear flattened
// alongside the signature rather than nested under a "Tx" key.
type signedTxWire struct {
	Version   int       `json:"version"`
	Type      TxType    `json:"type"`
	From      AccountID `json:"from"`
	To        AccountID `json:"to,omitempty"`
	Amount    uint64    `json:"amount"`
	Nonce     uint64    `json:"nonce"`
	Timestamp int64     `json:"timestamp"`
	Data      *Payload  `json:"data,omitempty"`
	Signature string    `json:"signature"`
}

// SignedTx pairs an unsigned transaction with its detached signature. This
// is the form clients submit and the form that crosses the wire.
type SignedTx struct {
	Tx
	Signature string `json:"signature"`
}

// MarshalJSON flattens Tx's fields alongside the signature.
func (tx SignedTx) MarshalJSON() ([]byte, error) {
	return json.Marshal(signedTxWire{
		Version:   tx.Version,
		Type:      tx.Type,
		From:      tx.From,
		To:        tx.To,
		Amount:    tx.Amount,
		Nonce:     tx.Nonce,
		Timestamp: tx.Timestamp,
		Data:      tx.Data,
		Signature: tx.Signature,
	})
}

// UnmarshalJSON reconstitutes a SignedTx from the transaction wire format.
func (tx *SignedTx) UnmarshalJSON(b []byte) error {
	var w signedTxWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	tx.Tx = Tx{
		Version:   w.Version,
		Type:      w.Type,
		From:      w.From,
		To:        w.To,
		Amount:    w.Amount,
		Nonce:     w.Nonce,
		Timestamp: w.Timestamp,
		Data:      w.Data,
	}
	tx.Signature = w.Signature

	return nil
}

// Validate checks the transaction is well formed and its signature is
// valid. It does not consult ledger state (nonce, balance); that is the
// job of apply_transaction's ordered checks.
func (tx SignedTx) Validate() error {
	if tx.Version != CurrentVersion {
		return fmt.Errorf("unsupported transaction version %d", tx.Version)
	}

	if !tx.From.IsAccountID() {
		return errors.New("invalid from account")
	}

	pubKey, err := signature.DecodePublicKey(string(tx.From))
	if err != nil {
		return errors.New("invalid from account")
	}

	sig, err := signature.DecodeSignature(tx.Signature)
	if err != nil {
		return err
	}

	if !signature.VerifyHash(tx.Tx.Hash(), sig, pubKey) {
		return signature.ErrInvalidSignature
	}

	return nil
}

// Digest returns the hex digest that identifies this transaction, computed
// over the unsigned transaction (the signature field is excluded).
func (tx SignedTx) Digest() string {
	return tx.Tx.Hash()
}

// =============================================================================

// StoredTx is the record appended to the ledger's global transaction log
// once a transaction has been successfully applied.
type StoredTx struct {
	SignedTx
	Digest      string `json:"digest"`
	BlockHeight uint64 `json:"block_height"`
	AppliedAt   int64  `json:"applied_at"`
}

// storedTxWire is signedTxWire with the stored-record fields appended. This
// is needed because SignedTx defines its own MarshalJSON, which Go would
// otherwise promote onto StoredTx and silently drop Digest/BlockHeight/
// AppliedAt from the encoding.
type storedTxWire struct {
	signedTxWire
	Digest      string `json:"digest"`
	BlockHeight uint64 `json:"block_height"`
	AppliedAt   int64  `json:"applied_at"`
}

// MarshalJSON flattens the signed transaction alongside the stored-record
// bookkeeping fields.
func (stx StoredTx) MarshalJSON() ([]byte, error) {
	return json.Marshal(storedTxWire{
		signedTxWire: signedTxWire{
			Version:   stx.Version,
			Type:      stx.Type,
			From:      stx.From,
			To:        stx.To,
			Amount:    stx.Amount,
			Nonce:     stx.Nonce,
			Timestamp: stx.Timestamp,
			Data:      stx.Data,
			Signature: stx.Signature,
		},
		Digest:      stx.Digest,
		BlockHeight: stx.BlockHeight,
		AppliedAt:   stx.AppliedAt,
	})
}

// UnmarshalJSON reconstitutes a StoredTx from its persisted form.
func (stx *StoredTx) UnmarshalJSON(b []byte) error {
	var w storedTxWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	stx.SignedTx = SignedTx{
		Tx: Tx{
			Version:   w.Version,
			Type:      w.Type,
			From:      w.From,
			To:        w.To,
			Amount:    w.Amount,
			Nonce:     w.Nonce,
			Timestamp: w.Timestamp,
			Data:      w.Data,
		},
		Signature: w.Signature,
	}
	stx.Digest = w.Digest
	stx.BlockHeight = w.BlockHeight
	stx.AppliedAt = w.AppliedAt

	return nil
}
