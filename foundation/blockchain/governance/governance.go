// Package governance provides an in-process reference implementation of
// the external code-review governance channel: an opaque proposal/voting
// oracle the rest of the system treats as a replaceable collaborator. A
// production deployment binds the same minimal interface to a client of
// the real external review platform instead of this package.
package governance

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/errs"
)

// EventHandler defines a function called when events occur in the oracle,
// matching the logging convention used across the package.
type EventHandler func(v string, args ...any)

// Status is the lifecycle state of a proposal.
type Status string

// Supported proposal statuses.
const (
	StatusOpen     Status = "open"
	StatusPassed   Status = "passed"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
)

// Vote is a single cast ballot.
type Vote struct {
	Voter     string `json:"voter"`
	Approve   bool   `json:"approve"`
	CreatedAt int64  `json:"created_at"`
}

// Proposal is the oracle's record for a single governance item.
type Proposal struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Status    Status `json:"status"`
	Votes     []Vote `json:"votes"`
	CreatedAt int64  `json:"created_at"`
}

// Tally is the vote count summary for a proposal.
type Tally struct {
	ProposalID string `json:"proposal_id"`
	Approve    int    `json:"approve"`
	Reject     int    `json:"reject"`
}

// =============================================================================

// Oracle manages the proposal/vote record set.
type Oracle struct {
	mu sync.RWMutex

	proposals map[string]Proposal
	nextID    uint64

	path      string
	evHandler EventHandler
}

type persistedState struct {
	Version   int                 `json:"version"`
	NextID    uint64              `json:"next_id"`
	Proposals map[string]Proposal `json:"proposals"`
}

// New constructs an Oracle backed by JSON persistence at path.
func New(path string, evHandler EventHandler) (*Oracle, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	o := Oracle{
		proposals: make(map[string]Proposal),
		path:      path,
		evHandler: ev,
	}

	if err := o.load(); err != nil {
		return nil, fmt.Errorf("loading governance state: %w", err)
	}

	return &o, nil
}

// =============================================================================

// SubmitProposal opens a new proposal authored by author and returns its
// assigned id.
func (o *Oracle) SubmitProposal(author, title, body string) (Proposal, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	id := fmt.Sprintf("prop-%d", o.nextID)

	proposal := Proposal{
		ID:        id,
		Author:    author,
		Title:     title,
		Body:      body,
		Status:    StatusOpen,
		CreatedAt: time.Now().UnixMilli(),
	}
	o.proposals[id] = proposal

	o.evHandler("governance: SubmitProposal: opened: id[%s] author[%s]", id, author)

	return proposal, o.save()
}

// CastVote records voter's ballot on an open proposal. A voter casting a
// second vote replaces their earlier ballot.
func (o *Oracle) CastVote(proposalID, voter string, approve bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	proposal, exists := o.proposals[proposalID]
	if !exists {
		return errs.Newf(errs.InvalidSkill, "unknown proposal %s", proposalID)
	}

	if proposal.Status != StatusOpen {
		return errs.Newf(errs.InvalidSkill, "proposal %s is not open for voting", proposalID)
	}

	vote := Vote{Voter: voter, Approve: approve, CreatedAt: time.Now().UnixMilli()}

	replaced := false
	for i, v := range proposal.Votes {
		if v.Voter == voter {
			proposal.Votes[i] = vote
			replaced = true
			break
		}
	}
	if !replaced {
		proposal.Votes = append(proposal.Votes, vote)
	}

	o.proposals[proposalID] = proposal

	o.evHandler("governance: CastVote: recorded: proposal[%s] voter[%s] approve[%t]", proposalID, voter, approve)

	return o.save()
}

// Tally returns the current approve/reject counts for a proposal, and
// transitions an open proposal with at least one vote to passed or
// rejected by simple majority.
func (o *Oracle) Tally(proposalID string) (Tally, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	proposal, exists := o.proposals[proposalID]
	if !exists {
		return Tally{}, errs.Newf(errs.InvalidSkill, "unknown proposal %s", proposalID)
	}

	tally := Tally{ProposalID: proposalID}
	for _, v := range proposal.Votes {
		if v.Approve {
			tally.Approve++
		} else {
			tally.Reject++
		}
	}

	if proposal.Status == StatusOpen && len(proposal.Votes) > 0 {
		if tally.Approve > tally.Reject {
			proposal.Status = StatusPassed
		} else {
			proposal.Status = StatusRejected
		}
		o.proposals[proposalID] = proposal

		if err := o.save(); err != nil {
			return Tally{}, err
		}
	}

	return tally, nil
}

// Execute marks a passed proposal as executed. It is a no-op on the
// proposal's external effects, which are applied by whatever subsystem
// consumes this oracle's decisions.
func (o *Oracle) Execute(proposalID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	proposal, exists := o.proposals[proposalID]
	if !exists {
		return errs.Newf(errs.InvalidSkill, "unknown proposal %s", proposalID)
	}

	if proposal.Status != StatusPassed {
		return errs.Newf(errs.InvalidSkill, "proposal %s has not passed", proposalID)
	}

	proposal.Status = StatusExecuted
	o.proposals[proposalID] = proposal

	o.evHandler("governance: Execute: executed: id[%s]", proposalID)

	return o.save()
}

// Get returns the proposal record for id.
func (o *Oracle) Get(id string) (Proposal, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	proposal, ok := o.proposals[id]
	return proposal, ok
}

// List returns every proposal, sorted by id.
func (o *Oracle) List() []Proposal {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]Proposal, 0, len(o.proposals))
	for _, p := range o.proposals {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// =============================================================================

func (o *Oracle) load() error {
	data, err := os.ReadFile(o.path)
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

	o.proposals = state.Proposals
	o.nextID = state.NextID
	if o.proposals == nil {
		o.proposals = make(map[string]Proposal)
	}

	return nil
}

func (o *Oracle) save() error {
	if o.path == "" {
		return nil
	}

	state := persistedState{
		Version:   1,
		NextID:    o.nextID,
		Proposals: o.proposals,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := o.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, o.path)
}
