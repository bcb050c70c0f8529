// Package economics implements the fee schedule, reputation formula, voting
// power calculation, and minting/staking parameters shared by the ledger,
// identity registry, and consensus reward distribution.
package economics

import "math"

// Priority selects the fee multiplier applied to a transaction.
type Priority string

// Supported transaction priorities.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// BaseFee is the fixed fee burned by a transfer at normal priority.
const BaseFee = 1

// priorityMultiplier maps a priority level to its fee multiplier.
var priorityMultiplier = map[Priority]float64{
	PriorityLow:    0.5,
	PriorityNormal: 1.0,
	PriorityHigh:   2.0,
}

// Fee computes the priority-adjusted fee: ceil(base * multiplier). An
// unrecognized priority is treated as PriorityNormal.
func Fee(priority Priority) uint64 {
	mult, ok := priorityMultiplier[priority]
	if !ok {
		mult = priorityMultiplier[PriorityNormal]
	}

	return uint64(math.Ceil(float64(BaseFee) * mult))
}

// =============================================================================
// Reputation and voting power

// ReputationCounters holds the raw activity counters used to compute the
// reputation score for an identity.
type ReputationCounters struct {
	Trades        uint64
	Skills        uint64
	UptimeHours   float64
	GovVotes      uint64
	DisputesLost  uint64
	SpamFlags     uint64
	AccountAgeMos float64
}

// ageDecay is the monthly decay factor applied to the raw reputation score.
const ageDecay = 0.99

// Reputation computes R = max(0, (10*trades + 20*skills + 0.1*uptime +
// 5*gov_votes - 50*disputes_lost - 100*spam_flags) * (1-0.01)^age_months).
func Reputation(c ReputationCounters) float64 {
	raw := 10*float64(c.Trades) +
		20*float64(c.Skills) +
		0.1*c.UptimeHours +
		5*float64(c.GovVotes) -
		50*float64(c.DisputesLost) -
		100*float64(c.SpamFlags)

	decayed := raw * math.Pow(ageDecay, c.AccountAgeMos)

	return math.Max(0, decayed)
}

// VotingPower computes min(0.5*R + 0.001*shellsHeld, 1000).
func VotingPower(reputation float64, shellsHeld uint64) float64 {
	vp := 0.5*reputation + 0.001*float64(shellsHeld)
	return math.Min(vp, 1000)
}

// =============================================================================
// Minting, staking, and validator rewards

// RegistrationMintAttested and RegistrationMintUnattested are the amounts of
// shells minted to a newly registered bot with and without an attestation.
const (
	RegistrationMintAttested   uint64 = 100
	RegistrationMintUnattested uint64 = 50
)

// ValidatorRewardPerBlock is the total reward minted per committed block,
// before distribution by participation score.
const ValidatorRewardPerBlock uint64 = 10

// TreasuryPerBlock is the amount minted to the treasury account per block,
// independent of validator participation.
const TreasuryPerBlock uint64 = 5

// Stake requirements.
const (
	// StakeRequired is the default stake, in shells, required to register
	// as a bot.
	StakeRequired uint64 = 50

	// StakeRequiredAttested is the discounted stake required when the
	// registrant is attested by a sufficiently reputable bot.
	StakeRequiredAttested uint64 = 25

	// AttesterMinReputation is the minimum reputation an attester must
	// have for their attestation to unlock the discounted stake.
	AttesterMinReputation float64 = 100

	// StakeLockDays is the number of days stake remains locked after
	// registration.
	StakeLockDays = 30
)

// RequiredStake returns the stake amount required to register given whether
// an eligible attester backs the registration.
func RequiredStake(attested bool) uint64 {
	if attested {
		return StakeRequiredAttested
	}
	return StakeRequired
}

// DistributeValidatorReward splits ValidatorRewardPerBlock proportionally to
// the given participation scores. If every score is zero the reward is
// split equally. The returned slice has the same length and order as
// scores; rounding remainders accumulate on the last nonzero recipient to
// keep the total exactly ValidatorRewardPerBlock.
func DistributeValidatorReward(scores []float64) []uint64 {
	n := len(scores)
	out := make([]uint64, n)
	if n == 0 {
		return out
	}

	var total float64
	for _, s := range scores {
		total += s
	}

	if total == 0 {
		base := ValidatorRewardPerBlock / uint64(n)
		remainder := ValidatorRewardPerBlock % uint64(n)
		for i := range out {
			out[i] = base
		}
		for i := uint64(0); i < remainder; i++ {
			out[i] += 1
		}
		return out
	}

	var distributed uint64
	lastPositive := -1
	for i, s := range scores {
		share := uint64(math.Floor(float64(ValidatorRewardPerBlock) * s / total))
		out[i] = share
		distributed += share
		if s > 0 {
			lastPositive = i
		}
	}

	if lastPositive >= 0 {
		out[lastPositive] += ValidatorRewardPerBlock - distributed
	}

	return out
}

// =============================================================================
// Pre-apply economic constraint checks

// MaxSafeAmount is the largest amount value the ledger will accept, matching
// the IEEE-754 double safe-integer bound used elsewhere in the protocol's
// canonical encoding.
const MaxSafeAmount uint64 = 1<<53 - 1

// InactivityPenalty returns the shells to burn from an account that has been
// inactive for the given number of days, at the given basis-point rate per
// day. This is a pure function: no scheduler in this implementation invokes
// it periodically, per the design note deferring that wiring to an embedder.
func InactivityPenalty(balance uint64, inactiveDays uint64, bpsPerDay uint64) uint64 {
	if inactiveDays == 0 || bpsPerDay == 0 {
		return 0
	}

	penalty := float64(balance) * (float64(bpsPerDay) / 10_000) * float64(inactiveDays)
	if penalty > float64(balance) {
		return balance
	}

	return uint64(penalty)
}
