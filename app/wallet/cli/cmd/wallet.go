package cmd

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
)

// walletFile is the on-disk shape of a local wallet. The node itself also
// keeps a copy of the private key under managed custody (see
// identity.Registry.PrivateKey); this local copy is what lets the CLI sign
// transactions without round-tripping a private key over the network for
// every send.
type walletFile struct {
	Name       string `json:"name"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

func saveWallet(path string, wf walletFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating wallet directory: %w", err)
	}

	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func loadWallet(path string) (walletFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return walletFile{}, fmt.Errorf("reading wallet %s: %w", path, err)
	}

	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return walletFile{}, fmt.Errorf("decoding wallet %s: %w", path, err)
	}

	return wf, nil
}

func (wf walletFile) privateKey() (ed25519.PrivateKey, error) {
	return signature.DecodePrivateKey(wf.PrivateKey)
}

// apiGet performs a GET against the node and decodes the JSON response
// into out.
func apiGet(path string, out any) error {
	resp, err := http.Get(nodeURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// apiPost performs a POST of body against the node and decodes the JSON
// response into out, when out is non-nil.
func apiPost(path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := http.Post(nodeURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
