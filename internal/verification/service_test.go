package verification

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
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fixedRoller int

func (r fixedRoller) IntN(n int) int {
	return min(int(r), n-1)
}

type stubIDProvider struct {
	ids []string
	err error
}

func (p *stubIDProvider) NewID() (string, error) {
	if p.err != nil {
		return "", p.err
	}
	id := p.ids[0]
	p.ids = p.ids[1:]
	return id, nil
}

var submitInstant = time.Date(2025, time.April, 2, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *records.Store {
	t.Helper()
	medium, err := kv.OpenLevelDBMemory()
	if err != nil {
		t.Fatalf("open medium: %v", err)
	}
	t.Cleanup(func() { _ = medium.Close() })
	store, err := records.NewStore(records.StoreConfig{
		KV:     medium,
		Clock:  func() time.Time { return submitInstant },
		Hashes: chain.NewHashesFrom(bytes.NewReader(bytes.Repeat([]byte{0x11}, 1024))),
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestSubmitRecordsContributionAndReward(t *testing.T) {
	store := newTestStore(t)
	core, logs := observer.New(zap.InfoLevel)
	service, err := NewService(ServiceConfig{
		Store:      store,
		Roller:     fixedRoller(10),
		IDProvider: &stubIDProvider{ids: []string{"0192d1f4-0000-7000-8000-000000000001"}},
		Logger:     zap.New(core),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	receipt, err := service.Submit(ctx, Submission{FileName: "  ICPC_Regional_Finalist.pdf ", Type: "Competition"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.Contribution.ImpactScore != 85 {
		t.Fatalf("expected 70+10+5, got %d", receipt.Contribution.ImpactScore)
	}
	if receipt.TokensAwarded != 28+4 {
		t.Fatalf("unexpected reward %d", receipt.TokensAwarded)
	}
	if receipt.Balance != records.DefaultTokenBalance+receipt.TokensAwarded {
		t.Fatalf("unexpected balance %d", receipt.Balance)
	}
	if !receipt.BadgeEligible {
		t.Fatalf("score 85 is badge eligible")
	}
	if receipt.TxHash != "0x"+strings.Repeat("11", 32) {
		t.Fatalf("unexpected tx hash %s", receipt.TxHash)
	}

	contributions, err := store.Contributions(ctx)
	if err != nil {
		t.Fatalf("contributions: %v", err)
	}
	head := contributions[0]
	if head.ID != "0192d1f4-0000-7000-8000-000000000001" || head.FileName != "ICPC_Regional_Finalist.pdf" ||
		head.Type != records.ContributionCompetition || !head.Verified || !head.UploadDate.Equal(submitInstant) {
		t.Fatalf("unexpected stored contribution %+v", head)
	}
	if len(contributions) != 11 {
		t.Fatalf("expected 11 contributions, got %d", len(contributions))
	}
	if logs.FilterMessage("contribution verified").Len() != 1 {
		t.Fatalf("expected one verification log entry")
	}
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	store := newTestStore(t)
	service, err := NewService(ServiceConfig{Store: store, IDProvider: NewUUIDProvider()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	for _, submission := range []Submission{
		{FileName: "", Type: "quiz"},
		{FileName: "a.pdf", Type: "essay"},
		{FileName: strings.Repeat("a", 300), Type: "quiz"},
	} {
		if _, err := service.Submit(context.Background(), submission); !errors.Is(err, ErrInvalidSubmission) {
			t.Fatalf("expected ErrInvalidSubmission for %+v, got %v", submission, err)
		}
	}
	if balance, _ := store.TokenBalance(context.Background()); balance != records.DefaultTokenBalance {
		t.Fatalf("rejected submissions must not pay out, balance %d", balance)
	}
}

func TestSubmitSurfacesIDFailure(t *testing.T) {
	store := newTestStore(t)
	service, err := NewService(ServiceConfig{Store: store, IDProvider: &stubIDProvider{err: errors.New("clock skew")}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = service.Submit(context.Background(), Submission{FileName: "a.pdf", Type: "quiz"})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "verification.submit.id_failed" {
		t.Fatalf("expected id_failed service error, got %v", err)
	}
}

func TestUUIDProviderIssuesDistinctIDs(t *testing.T) {
	provider := NewUUIDProvider()
	first, err := provider.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	second, err := provider.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if first == second || len(first) != 36 {
		t.Fatalf("unexpected ids %q %q", first, second)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceConfig{IDProvider: NewUUIDProvider()}); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := NewService(ServiceConfig{Store: newTestStore(t)}); err == nil {
		t.Fatalf("expected error without id provider")
	}
}
