// Package skills implements the content-addressed skill marketplace:
// artifact storage with per-file content hashing, listings, purchases
// settled as ledger transactions, and reviews.
package skills

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/errs"
	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
)

// EventHandler defines a function called when events occur in the
// marketplace, matching the logging convention used across the package.
type EventHandler func(v string, args ...any)

// Ledger is the subset of the ledger engine the marketplace needs to
// settle a purchase as a signed transaction.
type Ledger interface {
	GetAccount(accountID database.AccountID) (database.Account, bool)
	ApplyTransaction(tx database.SignedTx) (database.StoredTx, error)
}

// Identity is the subset of the identity registry the marketplace needs to
// credit a creator's skill count toward reputation.
type Identity interface {
	IncrementSkillCount(pk string) error
}

// =============================================================================

// File is a single file's path and content hash within a skill's manifest,
// listed in the order the creator supplied them.
type File struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// Manifest is the canonical, hashable description of a skill artifact. Its
// hash is the skill's id.
type Manifest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Type        string   `json:"type"`
	Files       []File   `json:"files"`
	Creator     string   `json:"creator"`
	Deps        []string `json:"deps,omitempty"`
	License     string   `json:"license"`
	Entry       string   `json:"entry"`
}

// Hash returns the canonical hash of the manifest, which is the skill id.
func (m Manifest) Hash() string {
	return signature.Hash(m)
}

// Skill is the marketplace's full record for a published artifact: its
// manifest, the raw file content it was built from, and bookkeeping.
type Skill struct {
	ID         string            `json:"id"`
	Manifest   Manifest          `json:"manifest"`
	Contents   map[string][]byte `json:"contents"`
	Creator    string            `json:"creator"`
	CreatedAt  int64             `json:"created_at"`
	SalesCount uint64            `json:"sales_count"`
}

// Listing is a skill's current marketplace state: price, activity status,
// and aggregate rating.
type Listing struct {
	SkillID string  `json:"skill_id"`
	Seller  string  `json:"seller"`
	Price   uint64  `json:"price"`
	Active  bool    `json:"active"`
	Status  string  `json:"status"`
	Rating  float64 `json:"rating"`
}

// Purchase records a single settled purchase of a listed skill.
type Purchase struct {
	SkillID   string `json:"skill_id"`
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Price     uint64 `json:"price"`
	TxDigest  string `json:"tx_digest"`
	CreatedAt int64  `json:"created_at"`
}

// Review is a buyer's rating of a skill they purchased.
type Review struct {
	SkillID   string `json:"skill_id"`
	Reviewer  string `json:"reviewer"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	CreatedAt int64  `json:"created_at"`
}

// Listing status values.
const (
	StatusActive   = "active"
	StatusDelisted = "delisted"
)

// =============================================================================

// Market manages the marketplace's skills, listings, purchases, and
// reviews, backed by JSON persistence.
type Market struct {
	mu sync.RWMutex

	skills    map[string]Skill
	listings  map[string]Listing
	purchases map[string][]Purchase
	reviews   map[string][]Review

	path      string
	ledger    Ledger
	identity  Identity
	evHandler EventHandler
}

type persistedState struct {
	Version   int                   `json:"version"`
	Skills    map[string]Skill      `json:"skills"`
	Listings  map[string]Listing    `json:"listings"`
	Purchases map[string][]Purchase `json:"purchases"`
	Reviews   map[string][]Review   `json:"reviews"`
}

// New constructs a Market backed by ledger for purchase settlement and
// identity for reputation bookkeeping, persisted as JSON at path.
func New(path string, ledger Ledger, identity Identity, evHandler EventHandler) (*Market, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	m := Market{
		skills:    make(map[string]Skill),
		listings:  make(map[string]Listing),
		purchases: make(map[string][]Purchase),
		reviews:   make(map[string][]Review),
		path:      path,
		ledger:    ledger,
		identity:  identity,
		evHandler: ev,
	}

	if err := m.load(); err != nil {
		return nil, fmt.Errorf("loading marketplace state: %w", err)
	}

	return &m, nil
}

// =============================================================================

// CreateSkill hashes each supplied file's content, assembles the canonical
// manifest in input order, and stores the artifact under its manifest
// hash. Duplicates (same id) are rejected.
func (m *Market) CreateSkill(name, description, version, typ string, files map[string][]byte, fileOrder []string, creator string, deps []string, license, entry string) (Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	manifestFiles := make([]File, 0, len(fileOrder))
	for _, path := range fileOrder {
		content, ok := files[path]
		if !ok {
			return Skill{}, errs.Newf(errs.InvalidSkill, "file %q declared but not supplied", path)
		}
		manifestFiles = append(manifestFiles, File{Path: path, Hash: contentHash(content)})
	}

	manifest := Manifest{
		Name:        name,
		Description: description,
		Version:     version,
		Type:        typ,
		Files:       manifestFiles,
		Creator:     creator,
		Deps:        deps,
		License:     license,
		Entry:       entry,
	}

	id := manifest.Hash()
	if _, exists := m.skills[id]; exists {
		return Skill{}, errs.Newf(errs.InvalidSkill, "skill %s already exists", id)
	}

	skill := Skill{
		ID:        id,
		Manifest:  manifest,
		Contents:  files,
		Creator:   creator,
		CreatedAt: time.Now().UnixMilli(),
	}
	m.skills[id] = skill

	if m.identity != nil {
		if err := m.identity.IncrementSkillCount(creator); err != nil {
			delete(m.skills, id)
			return Skill{}, err
		}
	}

	m.evHandler("skills: CreateSkill: created: id[%s] creator[%s]", id, creator)

	return skill, m.save()
}

// ListSkill marks a skill as an active listing at the given price. seller
// must equal the skill's creator.
func (m *Market) ListSkill(id string, price uint64, seller string) (Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	skill, exists := m.skills[id]
	if !exists {
		return Listing{}, errs.Newf(errs.InvalidSkill, "unknown skill %s", id)
	}

	if skill.Creator != seller {
		return Listing{}, errs.Newf(errs.InvalidSkill, "seller %s is not the creator of skill %s", seller, id)
	}

	listing := Listing{
		SkillID: id,
		Seller:  seller,
		Price:   price,
		Active:  true,
		Status:  StatusActive,
	}
	m.listings[id] = listing

	m.evHandler("skills: ListSkill: listed: id[%s] price[%d]", id, price)

	return listing, m.save()
}

// PurchaseSkill settles a purchase as a skill_purchase transaction applied
// to the ledger: from=buyer, to=seller, amount=price, payload carrying the
// skill id, manifest hash, creator, and price. On success the purchase is
// recorded and the skill's sales count is incremented. The buyer's
// successful-trades count is not updated here.
func (m *Market) PurchaseSkill(id string, buyer string, buyerPrivateKey ed25519.PrivateKey) (Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing, exists := m.listings[id]
	if !exists || !listing.Active {
		return Purchase{}, errs.Newf(errs.InvalidSkill, "skill %s is not listed for sale", id)
	}

	skill := m.skills[id]

	buyerAccount, ok := m.ledger.GetAccount(database.AccountID(buyer))
	if !ok {
		return Purchase{}, errs.Newf(errs.UnknownSender, "unknown buyer %s", buyer)
	}

	if buyerAccount.Balance < listing.Price {
		return Purchase{}, errs.Newf(errs.InsufficientBalance, "buyer balance %d below price %d", buyerAccount.Balance, listing.Price)
	}

	now := time.Now()
	tx := database.Tx{
		Version:   database.CurrentVersion,
		Type:      database.TxSkillPurchase,
		From:      database.AccountID(buyer),
		To:        database.AccountID(listing.Seller),
		Amount:    listing.Price,
		Nonce:     buyerAccount.Nonce + 1,
		Timestamp: now.UnixMilli(),
		Data: &database.Payload{
			Skill: &database.SkillPayload{
				SkillID:      id,
				ManifestHash: skill.ID,
				Creator:      skill.Creator,
				Price:        listing.Price,
				CreatedAt:    now.UnixMilli(),
			},
		},
	}

	signedTx, err := tx.Sign(buyerPrivateKey)
	if err != nil {
		return Purchase{}, fmt.Errorf("signing purchase transaction: %w", err)
	}

	stored, err := m.ledger.ApplyTransaction(signedTx)
	if err != nil {
		return Purchase{}, err
	}

	purchase := Purchase{
		SkillID:   id,
		Buyer:     buyer,
		Seller:    listing.Seller,
		Price:     listing.Price,
		TxDigest:  stored.Digest,
		CreatedAt: now.UnixMilli(),
	}
	m.purchases[id] = append(m.purchases[id], purchase)

	skill.SalesCount++
	m.skills[id] = skill

	m.evHandler("skills: PurchaseSkill: settled: id[%s] buyer[%s] digest[%s]", id, buyer, stored.Digest)

	return purchase, m.save()
}

// VerifySkill recomputes the manifest hash from the stored fields and each
// file's content hash, and compares them against what was stored at
// creation time. Any mismatch means the artifact is no longer trustworthy.
func (m *Market) VerifySkill(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	skill, exists := m.skills[id]
	if !exists {
		return false, errs.Newf(errs.InvalidSkill, "unknown skill %s", id)
	}

	if skill.Manifest.Hash() != skill.ID {
		return false, nil
	}

	for _, f := range skill.Manifest.Files {
		content, ok := skill.Contents[f.Path]
		if !ok {
			return false, nil
		}
		if contentHash(content) != f.Hash {
			return false, nil
		}
	}

	return true, nil
}

// AddReview appends a review by a buyer who has purchased the skill, and
// recomputes the listing's rating as the arithmetic mean of all ratings.
func (m *Market) AddReview(id, reviewer string, rating int, comment string) (Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rating < 1 || rating > 5 {
		return Review{}, errs.Newf(errs.InvalidSkill, "rating out of range")
	}

	if !m.hasPurchased(id, reviewer) {
		return Review{}, errs.Newf(errs.InvalidSkill, "reviewer %s has not purchased skill %s", reviewer, id)
	}

	review := Review{
		SkillID:   id,
		Reviewer:  reviewer,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UnixMilli(),
	}
	m.reviews[id] = append(m.reviews[id], review)

	listing := m.listings[id]
	listing.Rating = averageRating(m.reviews[id])
	m.listings[id] = listing

	m.evHandler("skills: AddReview: reviewed: id[%s] reviewer[%s] rating[%d]", id, reviewer, rating)

	return review, m.save()
}

// DelistSkill sets a listing's status to delisted. seller must match the
// listing's seller.
func (m *Market) DelistSkill(id, seller string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing, exists := m.listings[id]
	if !exists {
		return errs.Newf(errs.InvalidSkill, "unknown listing %s", id)
	}

	if listing.Seller != seller {
		return errs.Newf(errs.InvalidSkill, "seller %s does not match listing seller %s", seller, listing.Seller)
	}

	listing.Active = false
	listing.Status = StatusDelisted
	m.listings[id] = listing

	m.evHandler("skills: DelistSkill: delisted: id[%s]", id)

	return m.save()
}

// =============================================================================

// Get returns the skill record for id.
func (m *Market) Get(id string) (Skill, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	skill, ok := m.skills[id]
	return skill, ok
}

// GetListing returns the listing for id.
func (m *Market) GetListing(id string) (Listing, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	listing, ok := m.listings[id]
	return listing, ok
}

// ListListings returns every listing, sorted by skill id.
func (m *Market) ListListings() []Listing {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Listing, 0, len(m.listings))
	for _, l := range m.listings {
		out = append(out, l)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SkillID < out[j].SkillID })

	return out
}

// Reviews returns every review recorded against id.
func (m *Market) Reviews(id string) []Review {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Review(nil), m.reviews[id]...)
}

func (m *Market) hasPurchased(id, buyer string) bool {
	for _, p := range m.purchases[id] {
		if p.Buyer == buyer {
			return true
		}
	}
	return false
}

func averageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}

	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}

	return float64(sum) / float64(len(reviews))
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// =============================================================================

func (m *Market) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}

	m.skills = state.Skills
	m.listings = state.Listings
	m.purchases = state.Purchases
	m.reviews = state.Reviews

	if m.skills == nil {
		m.skills = make(map[string]Skill)
	}
	if m.listings == nil {
		m.listings = make(map[string]Listing)
	}
	if m.purchases == nil {
		m.purchases = make(map[string][]Purchase)
	}
	if m.reviews == nil {
		m.reviews = make(map[string][]Review)
	}

	return nil
}

func (m *Market) save() error {
	if m.path == "" {
		return nil
	}

	state := persistedState{
		Version:   1,
		Skills:    m.skills,
		Listings:  m.listings,
		Purchases: m.purchases,
		Reviews:   m.reviews,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, m.path)
}
