// Package peer maintains the set of known validators participating in
// consensus and their last-reported status.
package peer

import (
	"sync"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
)

// Peer represents a validator node in the network.
type Peer struct {
	Host      string             `json:"host"`
	PublicKey database.AccountID `json:"public_key"`
}

// New constructs a Peer value.
func New(host string, publicKey database.AccountID) Peer {
	return Peer{
		Host:      host,
		PublicKey: publicKey,
	}
}

// Match validates if the specified host matches this peer.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// =============================================================================

// Status represents the status a peer last reported about itself.
type Status struct {
	View        uint64 `json:"view"`
	BlockHeight uint64 `json:"block_height"`
	KnownPeers  []Peer `json:"known_peers"`
}

// =============================================================================

// Set maintains a set of known validator peers.
type Set struct {
	mu  sync.RWMutex
	set map[Peer]struct{}
}

// NewSet constructs a new set to manage validator peer information.
func NewSet() *Set {
	return &Set{
		set: make(map[Peer]struct{}),
	}
}

// Add adds a new peer to the set. Returns false if the peer was already
// known.
func (s *Set) Add(peer Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.set[peer]
	if !exists {
		s.set[peer] = struct{}{}
		return true
	}

	return false
}

// Remove removes a peer from the set.
func (s *Set) Remove(peer Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.set, peer)
}

// Copy returns the list of known peers other than host.
func (s *Set) Copy(host string) []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var peers []Peer
	for peer := range s.set {
		if !peer.Match(host) {
			peers = append(peers, peer)
		}
	}

	return peers
}
