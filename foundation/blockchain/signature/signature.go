// Package signature provides helper functions for handling the canonical
// hashing and Ed25519 signing needs of the blockchain.
package signature

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ZeroHash represents a hash code of all zeros, used as a safe default
// when hashing unexpectedly fails.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

const (
	// PublicKeySize is the length in bytes of an Ed25519 public key.
	PublicKeySize = ed25519.PublicKeySize

	// PrivateKeySize is the length in bytes of an Ed25519 private key.
	PrivateKeySize = ed25519.PrivateKeySize

	// SignatureSize is the length in bytes of an Ed25519 signature.
	SignatureSize = ed25519.SignatureSize
)

// ErrInvalidPublicKey is returned when a hex string does not decode to a
// 32-byte Ed25519 public key.
var ErrInvalidPublicKey = errors.New("invalid public key")

// ErrInvalidSignature is returned when a hex string does not decode to a
// 64-byte Ed25519 signature, or when verification fails.
var ErrInvalidSignature = errors.New("invalid signature")

// =============================================================================

// KeyPair holds an Ed25519 key pair in their raw (non-hex) form.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateKeyPair constructs a new Ed25519 key pair using a cryptographically
// secure random source.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generating keypair: %w", err)
	}

	return KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// PublicKeyHex returns the lowercase, compact hex encoding of the public key.
func (kp KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.PublicKey)
}

// PrivateKeyHex returns the lowercase, compact hex encoding of the private key.
func (kp KeyPair) PrivateKeyHex() string {
	return hex.EncodeToString(kp.PrivateKey)
}

// =============================================================================

// DecodePublicKey validates and decodes a hex-encoded public key. The
// decoded key must be exactly PublicKeySize bytes.
func DecodePublicKey(hexKey string) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}

	if len(b) != PublicKeySize {
		return nil, ErrInvalidPublicKey
	}

	return ed25519.PublicKey(b), nil
}

// DecodePrivateKey validates and decodes a hex-encoded private key. The
// decoded key must be exactly PrivateKeySize bytes.
func DecodePrivateKey(hexKey string) (ed25519.PrivateKey, error) {
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.New("invalid private key")
	}

	if len(b) != PrivateKeySize {
		return nil, errors.New("invalid private key")
	}

	return ed25519.PrivateKey(b), nil
}

// DecodeSignature validates and decodes a hex-encoded signature. The decoded
// signature must be exactly SignatureSize bytes.
func DecodeSignature(hexSig string) ([]byte, error) {
	b, err := hex.DecodeString(hexSig)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	if len(b) != SignatureSize {
		return nil, ErrInvalidSignature
	}

	return b, nil
}

// =============================================================================

// Hash returns the lowercase hex-encoded SHA-256 hash of the canonical JSON
// serialization of value. Any marshaling failure collapses to ZeroHash so
// callers never observe a partially computed digest.
func Hash(value any) string {
	data, err := CanonicalJSON(value)
	if err != nil {
		return ZeroHash
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalJSON produces a deterministic JSON encoding of value: object keys
// sorted lexicographically at every nesting level, no insignificant
// whitespace, and no reliance on encoding/json's incidental map-key
// ordering (which is an implementation detail, not a language guarantee).
func CanonicalJSON(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	return canonicalEncode(generic)
}

// canonicalEncode walks a decoded JSON value (maps, slices, json.Number,
// strings, bools, nil) and re-serializes it with map keys sorted at every
// level.
func canonicalEncode(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}

			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')

			vb, err := canonicalEncode(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil

	case []any:
		buf := []byte{'['}
		for i, e := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			eb, err := canonicalEncode(e)
			if err != nil {
				return nil, err
			}
			buf = append(buf, eb...)
		}
		buf = append(buf, ']')
		return buf, nil

	default:
		return json.Marshal(val)
	}
}

// =============================================================================

// Sign signs the hex-encoded hash string of value, treated as a UTF-8 byte
// string, with the given private key. This matches the source convention
// of signing the textual hash representation rather than the raw digest
// bytes.
func Sign(value any, privateKey ed25519.PrivateKey) ([]byte, error) {
	if len(privateKey) != PrivateKeySize {
		return nil, errors.New("invalid private key")
	}

	digestHex := Hash(value)
	return ed25519.Sign(privateKey, []byte(digestHex)), nil
}

// SignHash signs an already-computed hex digest string directly.
func SignHash(digestHex string, privateKey ed25519.PrivateKey) ([]byte, error) {
	if len(privateKey) != PrivateKeySize {
		return nil, errors.New("invalid private key")
	}

	return ed25519.Sign(privateKey, []byte(digestHex)), nil
}

// Verify recomputes the canonical hash of value and checks the signature
// against it using the supplied public key.
func Verify(value any, signature []byte, publicKey ed25519.PublicKey) bool {
	if len(publicKey) != PublicKeySize || len(signature) != SignatureSize {
		return false
	}

	digestHex := Hash(value)
	return ed25519.Verify(publicKey, []byte(digestHex), signature)
}

// VerifyHash checks a signature against an already-computed hex digest.
func VerifyHash(digestHex string, signature []byte, publicKey ed25519.PublicKey) bool {
	if len(publicKey) != PublicKeySize || len(signature) != SignatureSize {
		return false
	}

	return ed25519.Verify(publicKey, []byte(digestHex), signature)
}

// SignatureHex returns the lowercase hex encoding of a raw signature.
func SignatureHex(sig []byte) string {
	return hex.EncodeToString(sig)
}
