package server

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

const defaultPollInterval = 2 * time.Second

var errMissingSnapshotSource = errors.New("snapshot source dependency required")

// SnapshotSource reads the full persisted state.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (records.Snapshot, error)
}

type SnapshotPollerConfig struct {
	Source     SnapshotSource
	Dispatcher *RealtimeDispatcher
	Interval   time.Duration
	Clock      func() time.Time
	Logger     *zap.Logger
}

// SnapshotPoller re-reads the store on an interval and announces which
// collections changed since the previous read. Writes made by other
// processes sharing the medium reach stream subscribers this way.
type SnapshotPoller struct {
	source     SnapshotSource
	dispatcher *RealtimeDispatcher
	interval   time.Duration
	clock      func() time.Time
	logger     *zap.Logger
	digests    map[string]uint64
}

func NewSnapshotPoller(cfg SnapshotPollerConfig) (*SnapshotPoller, error) {
	if cfg.Source == nil {
		return nil, errMissingSnapshotSource
	}
	if cfg.Dispatcher == nil {
		return nil, errMissingRealtime
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotPoller{
		source:     cfg.Source,
		dispatcher: cfg.Dispatcher,
		interval:   interval,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Run polls until ctx is cancelled.
func (p *SnapshotPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("snapshot poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll reads one snapshot and publishes the collections whose content
// changed. The first poll only records the baseline.
func (p *SnapshotPoller) Poll(ctx context.Context) ([]string, error) {
	snapshot, err := p.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	current, err := digestSnapshot(snapshot)
	if err != nil {
		return nil, err
	}

	previous := p.digests
	p.digests = current
	if previous == nil {
		return nil, nil
	}
	var changed []string
	for _, name := range snapshotCollections {
		if previous[name] != current[name] {
			changed = append(changed, name)
		}
	}
	if len(changed) == 0 {
		return nil, nil
	}

	recipient := snapshot.Profile.DID
	if snapshot.CurrentUser != nil {
		recipient = snapshot.CurrentUser.DID
	}
	p.dispatcher.Publish(RealtimeMessage{
		DID:         recipient,
		EventType:   RealtimeEventSnapshotChanged,
		Collections: changed,
		Timestamp:   p.clock().UTC(),
	})
	p.logger.Debug("snapshot changed", zap.Strings("collections", changed))
	return changed, nil
}

var snapshotCollections = []string{
	records.KeyProfile,
	records.KeyTokens,
	records.KeyBadges,
	records.KeyContributions,
	records.KeyVotes,
	"session",
}

func digestSnapshot(snapshot records.Snapshot) (map[string]uint64, error) {
	parts := map[string]any{
		records.KeyProfile:       snapshot.Profile,
		records.KeyTokens:        snapshot.TokenBalance,
		records.KeyBadges:        snapshot.Badges,
		records.KeyContributions: snapshot.Contributions,
		records.KeyVotes:         snapshot.Votes,
		"session":                []any{snapshot.Authenticated, snapshot.CurrentUser},
	}
	digests := make(map[string]uint64, len(parts))
	for name, value := range parts {
		encoded, err := sonic.Marshal(value)
		if err != nil {
			return nil, err
		}
		digests[name] = xxhash.Sum64(encoded)
	}
	return digests, nil
}
