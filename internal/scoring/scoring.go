// Package scoring derives the figures shown on the passport and used when
// verifying contributions and weighting governance votes. Every function is
// pure apart from the injected Roller.
package scoring

import (
	"math/rand/v2"

	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"github.com/shopspring/decimal"
)

const (
	// BadgeThreshold is the minimum impact score that qualifies for a badge.
	BadgeThreshold = 70

	impactBase       = 70
	impactSpread     = 25
	impactBonus      = 5
	rewardSpread     = 5
	rewardDivisor    = 3
	maxScore         = 100
	voteScoreStep    = 10
	contribScoreStep = 15
)

var (
	hundred      = decimal.NewFromInt(maxScore)
	supportScale = decimal.NewFromInt(10)

	regionMultipliers = map[records.Region]decimal.Decimal{
		records.RegionHighland:    decimal.RequireFromString("1.15"),
		records.RegionMekong:      decimal.RequireFromString("1.2"),
		records.RegionMountainous: decimal.RequireFromString("1.2"),
	}
)

// Roller returns a uniformly distributed integer in [0, n).
type Roller interface {
	IntN(n int) int
}

type randomRoller struct{}

func (randomRoller) IntN(n int) int {
	return rand.IntN(n)
}

// NewRandomRoller returns the process-wide pseudo-random roller.
func NewRandomRoller() Roller {
	return randomRoller{}
}

// ImpactAverage is the rounded mean impact score, 0 when there are no contributions.
func ImpactAverage(contributions []records.Contribution) int {
	if len(contributions) == 0 {
		return 0
	}
	var sum int64
	for _, contribution := range contributions {
		sum += int64(contribution.ImpactScore)
	}
	return int(decimal.NewFromInt(sum).
		Div(decimal.NewFromInt(int64(len(contributions)))).
		Round(0).
		IntPart())
}

func GovernanceScore(votes []records.Vote) int {
	return min(len(votes)*voteScoreStep, maxScore)
}

func ContributionScore(contributions []records.Contribution) int {
	return min(len(contributions)*contribScoreStep, maxScore)
}

// TokensEarned sums the base reward of every contribution.
func TokensEarned(contributions []records.Contribution) int64 {
	var total int64
	for _, contribution := range contributions {
		total += int64(contribution.ImpactScore / rewardDivisor)
	}
	return total
}

func VerifiedCount(contributions []records.Contribution) int {
	count := 0
	for _, contribution := range contributions {
		if contribution.Verified {
			count++
		}
	}
	return count
}

// ImpactScore rolls a score for a freshly verified contribution. Research
// and competition entries get a fixed bonus.
func ImpactScore(kind records.ContributionType, roll Roller) int {
	score := impactBase + roll.IntN(impactSpread)
	if kind == records.ContributionResearch || kind == records.ContributionCompetition {
		score += impactBonus
	}
	return min(score, maxScore)
}

// TokenReward is a third of the score plus a small random bonus.
func TokenReward(score int, roll Roller) int64 {
	return int64(score/rewardDivisor + roll.IntN(rewardSpread))
}

func BadgeEligible(score int) bool {
	return score >= BadgeThreshold
}

// RegionMultiplier is the vote-weight bonus for students from
// under-represented regions.
func RegionMultiplier(region records.Region) decimal.Decimal {
	if multiplier, ok := regionMultipliers[region]; ok {
		return multiplier
	}
	return decimal.NewFromInt(1)
}

// VotePower weights a token amount by the voter's region.
func VotePower(amount int64, region records.Region) decimal.Decimal {
	return decimal.NewFromInt(amount).Mul(RegionMultiplier(region))
}

// ApplySupport moves a proposal's support percentage by a tenth of the vote
// power, towards 100 on approval and towards 0 on rejection.
func ApplySupport(current decimal.Decimal, choice records.VoteChoice, power decimal.Decimal) decimal.Decimal {
	delta := power.Div(supportScale)
	next := current.Add(delta)
	if choice == records.ChoiceReject {
		next = current.Sub(delta)
	}
	if next.IsNegative() {
		return decimal.Zero
	}
	if next.GreaterThan(hundred) {
		return hundred
	}
	return next
}

// Passport is the digest of a student's record.
type Passport struct {
	Profile             records.Profile                  `json:"profile"`
	TokenBalance        int64                            `json:"tokenBalance"`
	ImpactScore         int                              `json:"impactScore"`
	GovernanceScore     int                              `json:"governanceScore"`
	ContributionScore   int                              `json:"contributionScore"`
	TokensEarned        int64                            `json:"tokensEarned"`
	VerifiedCount       int                              `json:"verifiedCount"`
	ContributionCount   int                              `json:"contributionCount"`
	VoteCount           int                              `json:"voteCount"`
	BadgesObtained      int                              `json:"badgesObtained"`
	BadgesTotal         int                              `json:"badgesTotal"`
	ContributionsByType map[records.ContributionType]int `json:"contributionsByType"`
	VoteMultiplier      string                           `json:"voteMultiplier"`
}

// Summarize computes the passport for snapshot.
func Summarize(snapshot records.Snapshot) Passport {
	byType := make(map[records.ContributionType]int, len(records.ContributionTypes))
	for _, contribution := range snapshot.Contributions {
		byType[contribution.Type]++
	}
	obtained := 0
	for _, badge := range snapshot.Badges {
		if badge.Obtained {
			obtained++
		}
	}
	return Passport{
		Profile:             snapshot.Profile,
		TokenBalance:        snapshot.TokenBalance,
		ImpactScore:         ImpactAverage(snapshot.Contributions),
		GovernanceScore:     GovernanceScore(snapshot.Votes),
		ContributionScore:   ContributionScore(snapshot.Contributions),
		TokensEarned:        TokensEarned(snapshot.Contributions),
		VerifiedCount:       VerifiedCount(snapshot.Contributions),
		ContributionCount:   len(snapshot.Contributions),
		VoteCount:           len(snapshot.Votes),
		BadgesObtained:      obtained,
		BadgesTotal:         len(snapshot.Badges),
		ContributionsByType: byType,
		VoteMultiplier:      RegionMultiplier(snapshot.Profile.Region).String(),
	}
}
