package signature_test

import (
	"testing"

	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
)

func Test_SignAndVerify(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	kp, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Should be able to generate a keypair: %s", err)
	}

	sig, err := signature.Sign(value, kp.PrivateKey)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	if !signature.Verify(value, sig, kp.PublicKey) {
		t.Fatalf("Should be able to verify the signature.")
	}
}

func Test_VerifyRejectsWrongKey(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	kp, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Should be able to generate a keypair: %s", err)
	}

	other, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Should be able to generate a second keypair: %s", err)
	}

	sig, err := signature.Sign(value, kp.PrivateKey)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	if signature.Verify(value, sig, other.PublicKey) {
		t.Fatalf("Should not verify against a different key.")
	}
}

func Test_HashIsDeterministic(t *testing.T) {
	value := struct {
		Name string
		Tags []string
	}{
		Name: "Bill",
		Tags: []string{"a", "b"},
	}

	h1 := signature.Hash(value)
	h2 := signature.Hash(value)

	if h1 != h2 {
		t.Fatalf("Should get back the same hash twice: got %s and %s", h1, h2)
	}

	if len(h1) != len(signature.ZeroHash) {
		t.Fatalf("Hash should be %d hex characters, got %d", len(signature.ZeroHash), len(h1))
	}
}

func Test_CanonicalJSONKeyOrderIndependence(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2}
	b := map[string]any{"a": 2, "b": 1}

	ha := signature.Hash(a)
	hb := signature.Hash(b)

	if ha != hb {
		t.Fatalf("Hash should be independent of map key insertion order: got %s and %s", ha, hb)
	}
}

func Test_SignConsistency(t *testing.T) {
	value1 := struct {
		Name string
	}{
		Name: "Bill",
	}
	value2 := struct {
		Name string
	}{
		Name: "Jill",
	}

	kp, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Should be able to generate a keypair: %s", err)
	}

	sig1, err := signature.Sign(value1, kp.PrivateKey)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	sig2, err := signature.Sign(value2, kp.PrivateKey)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	if signature.Verify(value1, sig2, kp.PublicKey) {
		t.Fatalf("A signature over value2 should not verify against value1.")
	}

	if !signature.Verify(value1, sig1, kp.PublicKey) || !signature.Verify(value2, sig2, kp.PublicKey) {
		t.Fatalf("Each signature should verify against its own value.")
	}
}
