// Package records owns the persisted student model: profile, token balance,
// badge catalog, contribution and vote history, and the session flags. It is
// the only component that writes to the key-value medium.
package records

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/byteedu/internal/chain"
	"github.com/MarcoPoloResearchLab/byteedu/internal/kv"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Logical keys, namespaced by the configured prefix.
const (
	KeyContributions = "contributions"
	KeyTokens        = "tokens"
	KeyBadges        = "badges"
	KeyVotes         = "votes"
	KeyProfile       = "profile"
	KeyAuthenticated = "authenticated"
	KeyCurrentUser   = "current_user"
	KeyVersion       = "version"
)

// DefaultKeyPrefix namespaces every key when no prefix is configured.
const DefaultKeyPrefix = "byteedu_"

const maxScore = 100

var noOpLogger = zap.NewNop()

// StoreConfig describes the dependencies of a Store.
type StoreConfig struct {
	KV        kv.Store
	KeyPrefix string
	Clock     func() time.Time
	Hashes    chain.HashGenerator
	Logger    *zap.Logger
}

// Store is the single source of truth for persisted student state.
type Store struct {
	mu     sync.Mutex
	kv     kv.Store
	prefix string
	clock  func() time.Time
	hashes chain.HashGenerator
	logger *zap.Logger
}

// NewStore constructs a Store over the provided medium.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.KV == nil {
		return nil, newStoreError(opNewStore, "missing_kv", errMissingKV)
	}
	if cfg.Hashes == nil {
		return nil, newStoreError(opNewStore, "missing_hashes", errMissingHashes)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		kv:     cfg.KV,
		prefix: prefix,
		clock:  clock,
		hashes: cfg.Hashes,
		logger: logger,
	}, nil
}

// Now returns the store clock reading in UTC.
func (s *Store) Now() time.Time {
	return s.clock().UTC()
}

// Hashes exposes the generator used for placeholder receipts.
func (s *Store) Hashes() chain.HashGenerator {
	return s.hashes
}

// Profile returns the persisted profile or the default one.
func (s *Store) Profile(ctx context.Context) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadProfile(ctx)
}

// UpdateProfile merges patch onto the current profile and persists the result.
func (s *Store) UpdateProfile(ctx context.Context, patch ProfilePatch) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeProfile(ctx, patch)
}

func (s *Store) loadProfile(ctx context.Context) (Profile, error) {
	var profile Profile
	found, err := s.readDocument(ctx, KeyProfile, &profile)
	if err != nil {
		return Profile{}, s.fail(opProfile, "read_failed", err)
	}
	if !found {
		return DefaultProfile(), nil
	}
	return profile, nil
}

func (s *Store) mergeProfile(ctx context.Context, patch ProfilePatch) (Profile, error) {
	current, err := s.loadProfile(ctx)
	if err != nil {
		return Profile{}, err
	}
	if patch.Region != nil && !patch.Region.Valid() {
		return Profile{}, invalid("region", "must be between 0 and 6")
	}
	merged := patch.Apply(current)
	if err := s.writeDocument(ctx, KeyProfile, merged); err != nil {
		return Profile{}, s.fail(opProfile, "write_failed", err)
	}
	return merged, nil
}

// TokenBalance returns the current balance, DefaultTokenBalance when unset.
func (s *Store) TokenBalance(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTokens(ctx)
}

// SetTokenBalance overwrites the balance.
func (s *Store) SetTokenBalance(ctx context.Context, balance int64) (int64, error) {
	if balance < 0 {
		return 0, invalid("balance", "must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return balance, s.writeTokens(ctx, balance)
}

// AddTokens increases the balance by amount and returns the new balance.
func (s *Store) AddTokens(ctx context.Context, amount int64) (int64, error) {
	if amount < 0 {
		return 0, invalid("amount", "must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.loadTokens(ctx)
	if err != nil {
		return 0, err
	}
	next := current + amount
	return next, s.writeTokens(ctx, next)
}

// DeductTokens decreases the balance by amount, flooring at zero.
func (s *Store) DeductTokens(ctx context.Context, amount int64) (int64, error) {
	if amount < 0 {
		return 0, invalid("amount", "must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.loadTokens(ctx)
	if err != nil {
		return 0, err
	}
	next := max(0, current-amount)
	return next, s.writeTokens(ctx, next)
}

func (s *Store) loadTokens(ctx context.Context) (int64, error) {
	raw, found, err := s.readRaw(ctx, KeyTokens)
	if err != nil {
		return 0, s.fail(opTokens, "read_failed", err)
	}
	if !found {
		return DefaultTokenBalance, nil
	}
	balance, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		s.logger.Warn("discarding unreadable record", zap.String("key", s.key(KeyTokens)), zap.Error(err))
		return DefaultTokenBalance, nil
	}
	return balance, nil
}

func (s *Store) writeTokens(ctx context.Context, balance int64) error {
	if err := s.kv.Put(ctx, s.key(KeyTokens), []byte(strconv.FormatInt(balance, 10))); err != nil {
		return s.fail(opTokens, "write_failed", err)
	}
	return nil
}

// Badges returns the badge catalog. A persisted badge missing the tx hash
// the default catalog ships for its id is backfilled, and the catalog is
// re-persisted when that happens.
func (s *Store) Badges(ctx context.Context) ([]Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadBadges(ctx)
}

func (s *Store) loadBadges(ctx context.Context) ([]Badge, error) {
	var badges []Badge
	found, err := s.readDocument(ctx, KeyBadges, &badges)
	if err != nil {
		return nil, s.fail(opBadges, "read_failed", err)
	}
	if !found {
		return DefaultBadges(), nil
	}

	defaults := make(map[string]Badge, 9)
	for _, badge := range DefaultBadges() {
		defaults[badge.ID] = badge
	}
	backfilled := false
	for index, badge := range badges {
		fallback, ok := defaults[badge.ID]
		if ok && badge.TxHash == "" && fallback.TxHash != "" {
			badges[index].TxHash = fallback.TxHash
			backfilled = true
		}
	}
	if backfilled {
		if err := s.writeDocument(ctx, KeyBadges, badges); err != nil {
			return nil, s.fail(opBadges, "write_failed", err)
		}
	}
	return badges, nil
}

// EarnBadge marks the badge obtained, stamps its earned date and assigns a
// mint hash when it has none. Unknown ids leave the catalog untouched and
// report found=false. Badges that are already obtained are returned as is.
func (s *Store) EarnBadge(ctx context.Context, id string) (Badge, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	badges, err := s.loadBadges(ctx)
	if err != nil {
		return Badge{}, false, err
	}
	index := -1
	for i, badge := range badges {
		if badge.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return Badge{}, false, nil
	}
	if badges[index].Obtained {
		return badges[index], true, nil
	}

	earnedAt := s.Now()
	badges[index].Obtained = true
	badges[index].EarnedDate = &earnedAt
	if badges[index].TxHash == "" {
		hash, err := s.hashes.BadgeHash()
		if err != nil {
			return Badge{}, true, s.fail(opBadges, "hash_failed", err)
		}
		badges[index].TxHash = hash
	}
	if err := s.writeDocument(ctx, KeyBadges, badges); err != nil {
		return Badge{}, true, s.fail(opBadges, "write_failed", err)
	}
	return badges[index], true, nil
}

// ResetBadges overwrites the catalog with the defaults.
func (s *Store) ResetBadges(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeDocument(ctx, KeyBadges, DefaultBadges()); err != nil {
		return s.fail(opBadges, "write_failed", err)
	}
	return nil
}

// Contributions returns the contribution history, newest first.
func (s *Store) Contributions(ctx context.Context) ([]Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadContributions(ctx)
}

func (s *Store) loadContributions(ctx context.Context) ([]Contribution, error) {
	var contributions []Contribution
	found, err := s.readDocument(ctx, KeyContributions, &contributions)
	if err != nil {
		return nil, s.fail(opContributions, "read_failed", err)
	}
	if !found {
		return DefaultContributions(), nil
	}
	return contributions, nil
}

// AddContribution validates c and prepends it to the history.
func (s *Store) AddContribution(ctx context.Context, c Contribution) error {
	c.ID = strings.TrimSpace(c.ID)
	if err := validateContribution(c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contributions, err := s.loadContributions(ctx)
	if err != nil {
		return err
	}
	for _, existing := range contributions {
		if existing.ID == c.ID {
			return invalid("id", "already recorded")
		}
	}
	updated := append([]Contribution{c}, contributions...)
	if err := s.writeDocument(ctx, KeyContributions, updated); err != nil {
		return s.fail(opContributions, "write_failed", err)
	}
	return nil
}

func validateContribution(c Contribution) error {
	if c.ID == "" {
		return invalid("id", "must not be empty")
	}
	if strings.TrimSpace(c.FileName) == "" {
		return invalid("fileName", "must not be empty")
	}
	if _, ok := ParseContributionType(string(c.Type)); !ok {
		return invalid("type", "unknown contribution type")
	}
	if c.ImpactScore < 0 || c.ImpactScore > maxScore {
		return invalid("impactScore", "must be between 0 and 100")
	}
	return nil
}

// Votes returns the vote history, newest first.
func (s *Store) Votes(ctx context.Context) ([]Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadVotes(ctx)
}

func (s *Store) loadVotes(ctx context.Context) ([]Vote, error) {
	var votes []Vote
	found, err := s.readDocument(ctx, KeyVotes, &votes)
	if err != nil {
		return nil, s.fail(opVotes, "read_failed", err)
	}
	if !found {
		return DefaultVotes(), nil
	}
	return votes, nil
}

// AddVote validates v and prepends it to the history. It does not touch
// the token balance.
func (s *Store) AddVote(ctx context.Context, v Vote) error {
	if v.ProposalID <= 0 {
		return invalid("proposalId", "must be positive")
	}
	if v.Amount < 0 {
		return invalid("amount", "must not be negative")
	}
	if _, ok := ParseVoteChoice(string(v.Choice)); !ok {
		return invalid("choice", "must be approve or reject")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	votes, err := s.loadVotes(ctx)
	if err != nil {
		return err
	}
	updated := append([]Vote{v}, votes...)
	if err := s.writeDocument(ctx, KeyVotes, updated); err != nil {
		return s.fail(opVotes, "write_failed", err)
	}
	return nil
}

// InitResult reports what InitializeStorage wrote.
type InitResult struct {
	PreviousVersion string
	BadgesRefreshed bool
	Seeded          []string
}

// InitializeStorage seeds absent collections with their defaults. When the
// stored schema version differs from SchemaVersion the badge catalog is
// overwritten so new catalog fields reach existing clients; other
// collections are never overwritten.
func (s *Store) InitializeStorage(ctx context.Context) (InitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := InitResult{}
	version, found, err := s.readRaw(ctx, KeyVersion)
	if err != nil {
		return InitResult{}, s.fail(opInitialize, "version_read_failed", err)
	}
	if found {
		result.PreviousVersion = string(version)
	}
	if !found || string(version) != SchemaVersion {
		if err := s.writeDocument(ctx, KeyBadges, DefaultBadges()); err != nil {
			return InitResult{}, s.fail(opInitialize, "badges_write_failed", err)
		}
		if err := s.kv.Put(ctx, s.key(KeyVersion), []byte(SchemaVersion)); err != nil {
			return InitResult{}, s.fail(opInitialize, "version_write_failed", err)
		}
		result.BadgesRefreshed = true
	}

	seeds := []struct {
		name  string
		value func() ([]byte, error)
	}{
		{KeyProfile, func() ([]byte, error) { return sonic.Marshal(DefaultProfile()) }},
		{KeyBadges, func() ([]byte, error) { return sonic.Marshal(DefaultBadges()) }},
		{KeyTokens, func() ([]byte, error) { return []byte(strconv.FormatInt(DefaultTokenBalance, 10)), nil }},
		{KeyContributions, func() ([]byte, error) { return sonic.Marshal(DefaultContributions()) }},
		{KeyVotes, func() ([]byte, error) { return sonic.Marshal(DefaultVotes()) }},
	}
	for _, seed := range seeds {
		_, present, err := s.readRaw(ctx, seed.name)
		if err != nil {
			return InitResult{}, s.fail(opInitialize, "read_failed", err, zap.String("key", seed.name))
		}
		if present {
			continue
		}
		value, err := seed.value()
		if err != nil {
			return InitResult{}, s.fail(opInitialize, "encode_failed", err, zap.String("key", seed.name))
		}
		if err := s.kv.Put(ctx, s.key(seed.name), value); err != nil {
			return InitResult{}, s.fail(opInitialize, "seed_failed", err, zap.String("key", seed.name))
		}
		result.Seeded = append(result.Seeded, seed.name)
	}

	s.logger.Info("storage initialized",
		zap.String("previous_version", result.PreviousVersion),
		zap.Bool("badges_refreshed", result.BadgesRefreshed),
		zap.Strings("seeded", result.Seeded))
	return result, nil
}

// Snapshot reads every collection in one pass.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		snapshot Snapshot
		err      error
	)
	if snapshot.Profile, err = s.loadProfile(ctx); err != nil {
		return Snapshot{}, err
	}
	if snapshot.TokenBalance, err = s.loadTokens(ctx); err != nil {
		return Snapshot{}, err
	}
	if snapshot.Badges, err = s.loadBadges(ctx); err != nil {
		return Snapshot{}, err
	}
	if snapshot.Contributions, err = s.loadContributions(ctx); err != nil {
		return Snapshot{}, err
	}
	if snapshot.Votes, err = s.loadVotes(ctx); err != nil {
		return Snapshot{}, err
	}
	if snapshot.Authenticated, err = s.loadAuthenticated(ctx); err != nil {
		return Snapshot{}, err
	}
	if snapshot.CurrentUser, err = s.loadCurrentUser(ctx); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

// LoadDocument decodes the record stored under name into dst. It reports
// false when the record is absent or unreadable.
func (s *Store) LoadDocument(ctx context.Context, name string, dst any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readDocument(ctx, name, dst)
}

// SaveDocument encodes value and stores it under name.
func (s *Store) SaveDocument(ctx context.Context, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeDocument(ctx, name, value)
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// readRaw treats missing and blank values alike.
func (s *Store) readRaw(ctx context.Context, name string) ([]byte, bool, error) {
	raw, err := s.kv.Get(ctx, s.key(name))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false, nil
	}
	return raw, true, nil
}

func (s *Store) readDocument(ctx context.Context, name string, dst any) (bool, error) {
	raw, found, err := s.readRaw(ctx, name)
	if err != nil || !found {
		return false, err
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false, nil
	}
	if err := sonic.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("discarding unreadable record", zap.String("key", s.key(name)), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (s *Store) writeDocument(ctx context.Context, name string, value any) error {
	encoded, err := sonic.Marshal(value)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, s.key(name), encoded)
}

func (s *Store) fail(operation, reason string, err error, fields ...zap.Field) error {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("records store error", attrs...)
	return newStoreError(operation, reason, err)
}
