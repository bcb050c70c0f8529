package consensus

import (
	"fmt"
	"hash"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/merkle"
	"golang.org/x/crypto/blake2b"
)

// txDigest wraps one transaction's digest so it can serve as a leaf value
// in the merkle package's generic tree. Batching only ever needs the
// digest string, not the full transaction body, as the leaf's identity.
type txDigest string

// Hash satisfies merkle.Hashable.
func (d txDigest) Hash() ([]byte, error) {
	sum := blake2b.Sum256([]byte(d))
	return sum[:], nil
}

// Equals satisfies merkle.Hashable.
func (d txDigest) Equals(other txDigest) bool {
	return d == other
}

// blake2b256 adapts blake2b.New256 to the hash.Hash-returning shape the
// merkle package's WithHashStrategy option expects. A nil key never
// produces an error from New256, so the panic path is unreachable.
func blake2b256() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	return h
}

// batchDigest builds a merkle tree over the digests of txs, in the order
// supplied, using blake2b for both leaf and internal node hashing, and
// returns its root as a hex string. That root is what a batched
// PRE-PREPARE carries in place of a single transaction's digest.
func batchDigest(txs []database.SignedTx) (string, error) {
	leaves := make([]txDigest, len(txs))
	for i, tx := range txs {
		leaves[i] = txDigest(tx.Digest())
	}

	tree, err := merkle.NewTree(leaves, merkle.WithHashStrategy[txDigest](blake2b256))
	if err != nil {
		return "", fmt.Errorf("building batch merkle tree: %w", err)
	}

	return tree.RootHex(), nil
}
