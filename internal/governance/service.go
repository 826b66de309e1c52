// Package governance serves the proposal catalog and records token-weighted
// votes against it.
package governance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"github.com/MarcoPoloResearchLab/byteedu/internal/scoring"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// KeyProposals is the record the catalog is persisted under.
	KeyProposals = "proposals"

	// DefaultPerPage is the page size used when a filter does not set one.
	DefaultPerPage = 5

	// MaxVoteAmount caps the tokens a single vote may commit.
	MaxVoteAmount = 50

	categoryAll = "all"
)

var (
	ErrUnknownProposal     = errors.New("governance: unknown proposal")
	ErrProposalClosed      = errors.New("governance: proposal closed")
	ErrInsufficientBalance = errors.New("governance: insufficient token balance")
	ErrInvalidBallot       = errors.New("governance: invalid ballot")

	errMissingStore = errors.New("records store is required")
	noOpLogger      = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "governance.service.new"
	opCatalog    = "governance.catalog"
	opCastVote   = "governance.cast_vote"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// Status is the voting state of a proposal.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Proposal is a persisted catalog entry. Support is a percentage in [0, 100].
type Proposal struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Support     decimal.Decimal `json:"support"`
	EndsAt      time.Time       `json:"endsAt"`
}

// ProposalView is a proposal as seen at a particular instant.
type ProposalView struct {
	Proposal
	Status   Status `json:"status"`
	TimeLeft string `json:"timeLeft"`
}

// Filter selects a page of the catalog. An empty or "all" category matches
// every proposal.
type Filter struct {
	Category string
	Page     int
	PerPage  int
}

type Page struct {
	Proposals  []ProposalView `json:"proposals"`
	Page       int            `json:"page"`
	PerPage    int            `json:"perPage"`
	TotalPages int            `json:"totalPages"`
	Total      int            `json:"total"`
	Categories []string       `json:"categories"`
}

// Ballot is a request to commit tokens to one side of a proposal.
type Ballot struct {
	ProposalID int64  `json:"proposalId"`
	Amount     int64  `json:"amount"`
	Choice     string `json:"choice"`
}

type VoteReceipt struct {
	Vote     records.Vote `json:"vote"`
	Proposal ProposalView `json:"proposal"`
	Power    string       `json:"power"`
	Balance  int64        `json:"balance"`
}

type ServiceConfig struct {
	Store  *records.Store
	Clock  func() time.Time
	Logger *zap.Logger
}

type Service struct {
	mu     sync.Mutex
	store  *records.Store
	clock  func() time.Time
	logger *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = cfg.Store.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{store: cfg.Store, clock: clock, logger: logger}, nil
}

// Proposals returns one page of the catalog, seeding it on first use.
func (s *Service) Proposals(ctx context.Context, filter Filter) (Page, error) {
	s.mu.Lock()
	catalog, err := s.catalog(ctx)
	s.mu.Unlock()
	if err != nil {
		return Page{}, err
	}

	now := s.clock().UTC()
	categories := make([]string, 0, len(catalog))
	matching := make([]Proposal, 0, len(catalog))
	category := strings.TrimSpace(filter.Category)
	for _, proposal := range catalog {
		if !slices.Contains(categories, proposal.Category) {
			categories = append(categories, proposal.Category)
		}
		if category == "" || strings.EqualFold(category, categoryAll) || strings.EqualFold(category, proposal.Category) {
			matching = append(matching, proposal)
		}
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	totalPages := (len(matching) + perPage - 1) / perPage
	page := min(max(filter.Page, 1), max(totalPages, 1))
	start := min((page-1)*perPage, len(matching))
	end := min(start+perPage, len(matching))

	views := make([]ProposalView, 0, end-start)
	for _, proposal := range matching[start:end] {
		views = append(views, view(proposal, now))
	}
	return Page{
		Proposals:  views,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Total:      len(matching),
		Categories: categories,
	}, nil
}

// CastVote spends ballot.Amount tokens on the proposal. The vote is weighted
// by the voter's region before it moves the proposal's support.
func (s *Service) CastVote(ctx context.Context, ballot Ballot) (VoteReceipt, error) {
	choice, ok := records.ParseVoteChoice(ballot.Choice)
	if !ok {
		return VoteReceipt{}, fmt.Errorf("%w: choice must be approve or reject", ErrInvalidBallot)
	}
	if ballot.Amount <= 0 || ballot.Amount > MaxVoteAmount {
		return VoteReceipt{}, fmt.Errorf("%w: amount must be between 1 and %d", ErrInvalidBallot, MaxVoteAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, err := s.catalog(ctx)
	if err != nil {
		return VoteReceipt{}, err
	}
	index := slices.IndexFunc(catalog, func(p Proposal) bool { return p.ID == ballot.ProposalID })
	if index < 0 {
		return VoteReceipt{}, ErrUnknownProposal
	}
	now := s.clock().UTC()
	if !now.Before(catalog[index].EndsAt) {
		return VoteReceipt{}, ErrProposalClosed
	}

	balance, err := s.store.TokenBalance(ctx)
	if err != nil {
		return VoteReceipt{}, err
	}
	if ballot.Amount > balance {
		return VoteReceipt{}, fmt.Errorf("%w: need %d, have %d", ErrInsufficientBalance, ballot.Amount, balance)
	}
	profile, err := s.store.Profile(ctx)
	if err != nil {
		return VoteReceipt{}, err
	}
	txHash, err := s.store.Hashes().TxHash()
	if err != nil {
		s.logError(opCastVote, "hash_failed", err)
		return VoteReceipt{}, newServiceError(opCastVote, "hash_failed", err)
	}

	power := scoring.VotePower(ballot.Amount, profile.Region)
	vote := records.Vote{
		ProposalID: ballot.ProposalID,
		Amount:     ballot.Amount,
		Choice:     choice,
		Date:       now,
		TxHash:     txHash,
	}
	updated := slices.Clone(catalog)
	updated[index].Support = scoring.ApplySupport(catalog[index].Support, choice, power)

	// Writes run charge, support, history; a failed step restores the earlier ones.
	remaining, err := s.store.DeductTokens(ctx, ballot.Amount)
	if err != nil {
		return VoteReceipt{}, err
	}
	if err := s.store.SaveDocument(ctx, KeyProposals, updated); err != nil {
		s.logError(opCastVote, "catalog_write_failed", err, zap.Int64("proposal_id", ballot.ProposalID))
		s.restore(ctx, balance, nil)
		return VoteReceipt{}, newServiceError(opCastVote, "catalog_write_failed", err)
	}
	if err := s.store.AddVote(ctx, vote); err != nil {
		s.restore(ctx, balance, catalog)
		return VoteReceipt{}, err
	}

	s.logger.Info("vote recorded",
		zap.Int64("proposal_id", ballot.ProposalID),
		zap.Int64("amount", ballot.Amount),
		zap.String("choice", string(choice)),
		zap.String("power", power.String()))
	return VoteReceipt{
		Vote:     vote,
		Proposal: view(updated[index], now),
		Power:    power.String(),
		Balance:  remaining,
	}, nil
}

// restore puts back the balance and, when given, the catalog of a vote that
// could not be completed.
func (s *Service) restore(ctx context.Context, balance int64, catalog []Proposal) {
	if _, err := s.store.SetTokenBalance(ctx, balance); err != nil {
		s.logError(opCastVote, "balance_restore_failed", err)
	}
	if catalog == nil {
		return
	}
	if err := s.store.SaveDocument(ctx, KeyProposals, catalog); err != nil {
		s.logError(opCastVote, "catalog_restore_failed", err)
	}
}

// catalog must be called with s.mu held.
func (s *Service) catalog(ctx context.Context) ([]Proposal, error) {
	var catalog []Proposal
	found, err := s.store.LoadDocument(ctx, KeyProposals, &catalog)
	if err != nil {
		s.logError(opCatalog, "read_failed", err)
		return nil, newServiceError(opCatalog, "read_failed", err)
	}
	now := s.clock().UTC()
	if found && len(catalog) > 0 {
		if !allClosed(catalog, now) {
			return catalog, nil
		}
		catalog = reopen(catalog, now)
		if err := s.store.SaveDocument(ctx, KeyProposals, catalog); err != nil {
			s.logError(opCatalog, "reopen_failed", err)
			return nil, newServiceError(opCatalog, "reopen_failed", err)
		}
		s.logger.Info("proposal catalog reopened", zap.Int("proposals", len(catalog)))
		return catalog, nil
	}
	catalog = seedCatalog(now)
	if err := s.store.SaveDocument(ctx, KeyProposals, catalog); err != nil {
		s.logError(opCatalog, "seed_failed", err)
		return nil, newServiceError(opCatalog, "seed_failed", err)
	}
	s.logger.Info("proposal catalog seeded", zap.Int("proposals", len(catalog)))
	return catalog, nil
}

func view(proposal Proposal, now time.Time) ProposalView {
	remaining := max(proposal.EndsAt.Sub(now), 0)
	status := StatusOpen
	if remaining == 0 {
		status = StatusClosed
	}
	return ProposalView{Proposal: proposal, Status: status, TimeLeft: formatTimeLeft(remaining)}
}

func formatTimeLeft(remaining time.Duration) string {
	total := int64(remaining / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	if s.logger == nil || err == nil {
		return
	}
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("governance service error", attrs...)
}
