package governance

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/byteedu/internal/chain"
	"github.com/MarcoPoloResearchLab/byteedu/internal/kv"
	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seededAt = time.Date(2025, time.May, 12, 10, 0, 0, 0, time.UTC)

type governanceHarness struct {
	store   *records.Store
	service *Service
	medium  *faultyKV
	now     time.Time
}

// faultyKV fails writes to keys ending in failSuffix once it is set.
type faultyKV struct {
	kv.Store
	failSuffix string
	err        error
}

func (f *faultyKV) Put(ctx context.Context, key string, value []byte) error {
	if f.failSuffix != "" && strings.HasSuffix(key, f.failSuffix) {
		return f.err
	}
	return f.Store.Put(ctx, key, value)
}

func newGovernanceHarness(t *testing.T) *governanceHarness {
	t.Helper()
	medium, err := kv.OpenLevelDBMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = medium.Close() })

	harness := &governanceHarness{now: seededAt, medium: &faultyKV{Store: medium}}
	clock := func() time.Time { return harness.now }
	harness.store, err = records.NewStore(records.StoreConfig{
		KV:     harness.medium,
		Clock:  clock,
		Hashes: chain.NewHashesFrom(bytes.NewReader(bytes.Repeat([]byte{0x5a}, 4096))),
	})
	require.NoError(t, err)
	harness.service, err = NewService(ServiceConfig{Store: harness.store, Clock: clock})
	require.NoError(t, err)
	return harness
}

func (h *governanceHarness) proposal(t *testing.T, id int64) ProposalView {
	t.Helper()
	page, err := h.service.Proposals(context.Background(), Filter{PerPage: 100})
	require.NoError(t, err)
	for _, candidate := range page.Proposals {
		if candidate.ID == id {
			return candidate
		}
	}
	t.Fatalf("proposal %d not listed", id)
	return ProposalView{}
}

func TestProposalsPaginatesSeededCatalog(t *testing.T) {
	h := newGovernanceHarness(t)
	ctx := context.Background()

	first, err := h.service.Proposals(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 19, first.Total)
	assert.Equal(t, 4, first.TotalPages)
	assert.Equal(t, 1, first.Page)
	require.Len(t, first.Proposals, DefaultPerPage)
	assert.Equal(t, int64(12), first.Proposals[0].ID)
	assert.Equal(t, "02:13:45", first.Proposals[0].TimeLeft)
	assert.Equal(t, StatusOpen, first.Proposals[0].Status)
	assert.Len(t, first.Categories, 11)

	last, err := h.service.Proposals(ctx, Filter{Page: 9})
	require.NoError(t, err)
	assert.Equal(t, 4, last.Page)
	require.Len(t, last.Proposals, 4)
	assert.Equal(t, int64(30), last.Proposals[3].ID)

	scholarships, err := h.service.Proposals(ctx, Filter{Category: "scholarship"})
	require.NoError(t, err)
	assert.Equal(t, 3, scholarships.Total)
	for _, proposal := range scholarships.Proposals {
		assert.Equal(t, "Scholarship", proposal.Category)
	}

	none, err := h.service.Proposals(ctx, Filter{Category: "Astronomy"})
	require.NoError(t, err)
	assert.Zero(t, none.Total)
	assert.Empty(t, none.Proposals)
}

func TestCatalogIsSeededOnce(t *testing.T) {
	h := newGovernanceHarness(t)
	ctx := context.Background()
	_, err := h.service.Proposals(ctx, Filter{})
	require.NoError(t, err)

	h.now = seededAt.Add(time.Hour)
	page, err := h.service.Proposals(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "01:13:45", page.Proposals[0].TimeLeft)
	assert.Equal(t, "00:45:22", page.Proposals[1].TimeLeft)

	h.now = seededAt.Add(2 * time.Hour)
	assert.Equal(t, StatusClosed, h.proposal(t, 13).Status)
	assert.Equal(t, "00:00:00", h.proposal(t, 13).TimeLeft)
}

func TestCastVoteUpdatesSupportBalanceAndHistory(t *testing.T) {
	h := newGovernanceHarness(t)
	ctx := context.Background()

	receipt, err := h.service.CastVote(ctx, Ballot{ProposalID: 12, Amount: 20, Choice: "approve"})
	require.NoError(t, err)
	assert.Equal(t, int64(280), receipt.Balance)
	assert.Equal(t, "20", receipt.Power)
	assert.True(t, receipt.Proposal.Support.Equal(decimal.NewFromInt(64)))
	assert.True(t, h.proposal(t, 12).Support.Equal(decimal.NewFromInt(64)))

	votes, err := h.store.Votes(ctx)
	require.NoError(t, err)
	require.Len(t, votes, 6)
	assert.Equal(t, int64(12), votes[0].ProposalID)
	assert.Equal(t, records.ChoiceApprove, votes[0].Choice)
	assert.Len(t, votes[0].TxHash, 66)
	assert.True(t, votes[0].Date.Equal(seededAt))
}

func TestCastVoteAppliesRegionBonus(t *testing.T) {
	h := newGovernanceHarness(t)
	ctx := context.Background()
	region := records.RegionHighland
	_, err := h.store.UpdateProfile(ctx, records.ProfilePatch{Region: &region})
	require.NoError(t, err)

	receipt, err := h.service.CastVote(ctx, Ballot{ProposalID: 14, Amount: 20, Choice: "reject"})
	require.NoError(t, err)
	assert.Equal(t, "23", receipt.Power)
	assert.True(t, receipt.Proposal.Support.Equal(decimal.RequireFromString("80.7")), receipt.Proposal.Support.String())
	assert.Equal(t, int64(280), receipt.Balance, "the bonus weights the vote but spends the nominal amount")
}

func TestCastVoteRejections(t *testing.T) {
	testCases := []struct {
		name   string
		prep   func(t *testing.T, h *governanceHarness)
		ballot Ballot
		want   error
	}{
		{name: "unknown proposal", ballot: Ballot{ProposalID: 99, Amount: 5, Choice: "approve"}, want: ErrUnknownProposal},
		{name: "bad choice", ballot: Ballot{ProposalID: 12, Amount: 5, Choice: "abstain"}, want: ErrInvalidBallot},
		{name: "zero amount", ballot: Ballot{ProposalID: 12, Amount: 0, Choice: "approve"}, want: ErrInvalidBallot},
		{name: "above cap", ballot: Ballot{ProposalID: 12, Amount: MaxVoteAmount + 1, Choice: "approve"}, want: ErrInvalidBallot},
		{
			name: "insufficient balance",
			prep: func(t *testing.T, h *governanceHarness) {
				_, err := h.store.SetTokenBalance(context.Background(), 10)
				require.NoError(t, err)
			},
			ballot: Ballot{ProposalID: 12, Amount: 11, Choice: "approve"},
			want:   ErrInsufficientBalance,
		},
		{
			name: "closed",
			prep: func(t *testing.T, h *governanceHarness) {
				_, err := h.service.Proposals(context.Background(), Filter{})
				require.NoError(t, err)
				h.now = seededAt.Add(3 * time.Hour)
			},
			ballot: Ballot{ProposalID: 13, Amount: 5, Choice: "approve"},
			want:   ErrProposalClosed,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			h := newGovernanceHarness(t)
			if testCase.prep != nil {
				testCase.prep(t, h)
			}
			ctx := context.Background()
			before, err := h.store.TokenBalance(ctx)
			require.NoError(t, err)

			_, err = h.service.CastVote(ctx, testCase.ballot)
			require.ErrorIs(t, err, testCase.want)

			after, err := h.store.TokenBalance(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			votes, err := h.store.Votes(ctx)
			require.NoError(t, err)
			assert.Len(t, votes, 5)
		})
	}
}

func TestSupportClampsAtBounds(t *testing.T) {
	h := newGovernanceHarness(t)
	ctx := context.Background()
	_, err := h.store.SetTokenBalance(ctx, 1000)
	require.NoError(t, err)

	for range 4 {
		_, err := h.service.CastVote(ctx, Ballot{ProposalID: 16, Amount: MaxVoteAmount, Choice: "approve"})
		require.NoError(t, err)
	}
	assert.True(t, h.proposal(t, 16).Support.Equal(decimal.NewFromInt(100)))
}

func TestFormatTimeLeft(t *testing.T) {
	assert.Equal(t, "00:00:00", formatTimeLeft(0))
	assert.Equal(t, "19:10:00", formatTimeLeft(countdown(19, 10, 0)))
	assert.Equal(t, "01:00:01", formatTimeLeft(time.Hour+time.Second+400*time.Millisecond))
}

func TestCatalogReopensOnceEveryProposalClosed(t *testing.T) {
	h := newGovernanceHarness(t)
	ctx := context.Background()
	_, err := h.service.CastVote(ctx, Ballot{ProposalID: 12, Amount: 20, Choice: "approve"})
	require.NoError(t, err)

	h.now = seededAt.Add(19 * time.Hour)
	assert.Equal(t, StatusClosed, h.proposal(t, 12).Status)
	assert.Equal(t, StatusOpen, h.proposal(t, 30).Status)

	h.now = seededAt.Add(20 * time.Hour)
	page, err := h.service.Proposals(ctx, Filter{PerPage: 100})
	require.NoError(t, err)
	require.Len(t, page.Proposals, 19)
	for _, proposal := range page.Proposals {
		assert.Equal(t, StatusOpen, proposal.Status, "proposal %d", proposal.ID)
	}
	reopened := h.proposal(t, 12)
	assert.Equal(t, "02:13:45", reopened.TimeLeft)
	assert.True(t, reopened.Support.Equal(decimal.NewFromInt(64)), reopened.Support.String())

	receipt, err := h.service.CastVote(ctx, Ballot{ProposalID: 13, Amount: 10, Choice: "approve"})
	require.NoError(t, err)
	assert.Equal(t, int64(270), receipt.Balance)
}

func TestProposalsClampsEmptyResultToFirstPage(t *testing.T) {
	h := newGovernanceHarness(t)
	page, err := h.service.Proposals(context.Background(), Filter{Category: "Astronomy", Page: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 0, page.TotalPages)
	assert.Equal(t, 1, page.Page)
	assert.Empty(t, page.Proposals)
}

func TestCastVoteRollsBackOnFailedWrite(t *testing.T) {
	for _, suffix := range []string{records.KeyVotes, KeyProposals} {
		t.Run(suffix, func(t *testing.T) {
			h := newGovernanceHarness(t)
			ctx := context.Background()
			before := h.proposal(t, 12).Support

			cause := errors.New("quota exceeded")
			h.medium.failSuffix = suffix
			h.medium.err = cause
			_, err := h.service.CastVote(ctx, Ballot{ProposalID: 12, Amount: 20, Choice: "approve"})
			require.ErrorIs(t, err, cause)
			h.medium.failSuffix = ""

			balance, err := h.store.TokenBalance(ctx)
			require.NoError(t, err)
			assert.Equal(t, records.DefaultTokenBalance, balance)
			assert.True(t, h.proposal(t, 12).Support.Equal(before), h.proposal(t, 12).Support.String())
			votes, err := h.store.Votes(ctx)
			require.NoError(t, err)
			assert.Len(t, votes, 5)
		})
	}
}
