package consensus

import (
	"crypto/ed25519"

	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
)

// Phase identifies one of the three PBFT message types.
type Phase string

// The three phases of the agreement protocol.
const (
	PhasePrePrepare Phase = "pre-prepare"
	PhasePrepare    Phase = "prepare"
	PhaseCommit     Phase = "commit"
)

// Message is a signed PBFT protocol message exchanged between validators.
// Its canonical JSON encoding with Signature held to the empty string is
// what gets hashed and signed.
type Message struct {
	Type      Phase  `json:"type"`
	View      uint64 `json:"view"`
	Sequence  uint64 `json:"sequence"`
	Digest    string `json:"digest"`
	Validator string `json:"validator"`
	Signature string `json:"signature"`
}

// sign computes the signature over the message with Signature held blank,
// then returns the message with Signature populated.
func sign(msg Message, privateKey ed25519.PrivateKey) (Message, error) {
	msg.Signature = ""

	sig, err := signature.Sign(msg, privateKey)
	if err != nil {
		return Message{}, err
	}

	msg.Signature = signature.SignatureHex(sig)
	return msg, nil
}

// verify checks msg's signature against the supplied public key, using the
// same blank-signature convention used to produce it.
func verify(msg Message, publicKey ed25519.PublicKey) bool {
	sig, err := signature.DecodeSignature(msg.Signature)
	if err != nil {
		return false
	}

	unsigned := msg
	unsigned.Signature = ""

	return signature.Verify(unsigned, sig, publicKey)
}
