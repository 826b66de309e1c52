package scoring

import (
	"testing"

	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"github.com/shopspring/decimal"
)

// fixedRoller always rolls the same value, capped to the requested range.
type fixedRoller int

func (r fixedRoller) IntN(n int) int {
	return min(int(r), n-1)
}

func contributionsWithScores(scores ...int) []records.Contribution {
	contributions := make([]records.Contribution, 0, len(scores))
	for _, score := range scores {
		contributions = append(contributions, records.Contribution{ImpactScore: score, Verified: score%2 == 0})
	}
	return contributions
}

func TestImpactAverageRoundsHalfUp(t *testing.T) {
	testCases := []struct {
		name   string
		scores []int
		want   int
	}{
		{name: "empty", scores: nil, want: 0},
		{name: "exact", scores: []int{80, 90}, want: 85},
		{name: "half", scores: []int{80, 81}, want: 81},
		{name: "below half", scores: []int{80, 80, 81}, want: 80},
	}
	for _, testCase := range testCases {
		if got := ImpactAverage(contributionsWithScores(testCase.scores...)); got != testCase.want {
			t.Fatalf("%s: expected %d, got %d", testCase.name, testCase.want, got)
		}
	}
	if got := ImpactAverage(records.DefaultContributions()); got != 88 {
		t.Fatalf("expected seeded average 88, got %d", got)
	}
}

func TestScoresCapAtHundred(t *testing.T) {
	votes := make([]records.Vote, 12)
	if got := GovernanceScore(votes); got != 100 {
		t.Fatalf("expected governance cap, got %d", got)
	}
	if got := GovernanceScore(votes[:5]); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
	if got := ContributionScore(contributionsWithScores(1, 2, 3)); got != 45 {
		t.Fatalf("expected 45, got %d", got)
	}
	if got := ContributionScore(records.DefaultContributions()); got != 100 {
		t.Fatalf("expected contribution cap, got %d", got)
	}
}

func TestTokensEarnedFloorsEachReward(t *testing.T) {
	if got := TokensEarned(contributionsWithScores(92, 85, 2)); got != 30+28+0 {
		t.Fatalf("unexpected tokens earned %d", got)
	}
	if got := VerifiedCount(contributionsWithScores(92, 85, 2)); got != 2 {
		t.Fatalf("unexpected verified count %d", got)
	}
}

func TestImpactScoreBonusAndCap(t *testing.T) {
	if got := ImpactScore(records.ContributionQuiz, fixedRoller(0)); got != 70 {
		t.Fatalf("expected base score 70, got %d", got)
	}
	if got := ImpactScore(records.ContributionResearch, fixedRoller(10)); got != 85 {
		t.Fatalf("expected bonus score 85, got %d", got)
	}
	if got := ImpactScore(records.ContributionCompetition, fixedRoller(99)); got != 99 {
		t.Fatalf("expected 70+24+5, got %d", got)
	}
	if got := TokenReward(85, fixedRoller(4)); got != 32 {
		t.Fatalf("expected 28+4, got %d", got)
	}
	if !BadgeEligible(70) || BadgeEligible(69) {
		t.Fatalf("badge threshold is 70")
	}
}

func TestRandomRollerStaysInRange(t *testing.T) {
	roller := NewRandomRoller()
	for range 200 {
		score := ImpactScore(records.ContributionResearch, roller)
		if score < 75 || score > 99 {
			t.Fatalf("score %d out of range", score)
		}
	}
}

func TestVotePowerAppliesRegionBonus(t *testing.T) {
	testCases := []struct {
		region records.Region
		want   string
	}{
		{region: records.RegionNone, want: "20"},
		{region: records.RegionHanoi, want: "20"},
		{region: records.RegionHighland, want: "23"},
		{region: records.RegionMekong, want: "24"},
		{region: records.RegionMountainous, want: "24"},
	}
	for _, testCase := range testCases {
		got := VotePower(20, testCase.region)
		if !got.Equal(decimal.RequireFromString(testCase.want)) {
			t.Fatalf("%s: expected %s, got %s", testCase.region, testCase.want, got)
		}
	}
}

func TestApplySupportClamps(t *testing.T) {
	testCases := []struct {
		name    string
		current string
		choice  records.VoteChoice
		power   string
		want    string
	}{
		{name: "approve", current: "62", choice: records.ChoiceApprove, power: "20", want: "64"},
		{name: "reject", current: "62", choice: records.ChoiceReject, power: "23", want: "59.7"},
		{name: "ceiling", current: "99", choice: records.ChoiceApprove, power: "50", want: "100"},
		{name: "floor", current: "2", choice: records.ChoiceReject, power: "50", want: "0"},
	}
	for _, testCase := range testCases {
		got := ApplySupport(decimal.RequireFromString(testCase.current), testCase.choice, decimal.RequireFromString(testCase.power))
		if !got.Equal(decimal.RequireFromString(testCase.want)) {
			t.Fatalf("%s: expected %s, got %s", testCase.name, testCase.want, got)
		}
	}
}

func TestSummarizeSeededRecord(t *testing.T) {
	profile := records.DefaultProfile()
	profile.Region = records.RegionMekong
	passport := Summarize(records.Snapshot{
		Profile:       profile,
		TokenBalance:  300,
		Badges:        records.DefaultBadges(),
		Contributions: records.DefaultContributions(),
		Votes:         records.DefaultVotes(),
	})
	if passport.ImpactScore != 88 || passport.GovernanceScore != 50 || passport.ContributionScore != 100 {
		t.Fatalf("unexpected scores %+v", passport)
	}
	if passport.BadgesObtained != 7 || passport.BadgesTotal != 9 {
		t.Fatalf("unexpected badge counts %d/%d", passport.BadgesObtained, passport.BadgesTotal)
	}
	if passport.ContributionsByType[records.ContributionCompetition] != 3 {
		t.Fatalf("expected 3 competition entries, got %d", passport.ContributionsByType[records.ContributionCompetition])
	}
	if passport.VoteMultiplier != "1.2" {
		t.Fatalf("unexpected multiplier %s", passport.VoteMultiplier)
	}
	if passport.TokensEarned != 289 {
		t.Fatalf("unexpected tokens earned %d", passport.TokensEarned)
	}
}
