package server

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"go.uber.org/goleak"
)

type scriptedSource struct {
	mu       sync.Mutex
	snapshot records.Snapshot
	err      error
	reads    int
}

func (s *scriptedSource) Snapshot(context.Context) (records.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.snapshot, s.err
}

func (s *scriptedSource) update(mutate func(*records.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.snapshot)
}

func (s *scriptedSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func seededSnapshot() records.Snapshot {
	return records.Snapshot{
		Profile:       records.DefaultProfile(),
		TokenBalance:  records.DefaultTokenBalance,
		Badges:        records.DefaultBadges(),
		Contributions: records.DefaultContributions(),
		Votes:         records.DefaultVotes(),
	}
}

func TestNewSnapshotPollerRequiresDependencies(t *testing.T) {
	if _, err := NewSnapshotPoller(SnapshotPollerConfig{Dispatcher: NewRealtimeDispatcher()}); !errors.Is(err, errMissingSnapshotSource) {
		t.Fatalf("expected errMissingSnapshotSource, got %v", err)
	}
	if _, err := NewSnapshotPoller(SnapshotPollerConfig{Source: &scriptedSource{}}); !errors.Is(err, errMissingRealtime) {
		t.Fatalf("expected errMissingRealtime, got %v", err)
	}
}

func TestSnapshotPollerReportsChangedCollections(t *testing.T) {
	source := &scriptedSource{snapshot: seededSnapshot()}
	dispatcher := NewRealtimeDispatcher()
	poller, err := NewSnapshotPoller(SnapshotPollerConfig{Source: source, Dispatcher: dispatcher})
	if err != nil {
		t.Fatalf("failed to construct poller: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, cleanup := dispatcher.Subscribe(ctx, records.DefaultProfile().DID)
	defer cleanup()

	changed, err := poller.Poll(ctx)
	if err != nil || changed != nil {
		t.Fatalf("expected silent baseline poll, got %v (%v)", changed, err)
	}
	changed, err = poller.Poll(ctx)
	if err != nil || changed != nil {
		t.Fatalf("expected no changes, got %v (%v)", changed, err)
	}

	source.update(func(snapshot *records.Snapshot) {
		snapshot.TokenBalance = 120
		snapshot.Votes = snapshot.Votes[1:]
	})
	changed, err = poller.Poll(ctx)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if !slices.Equal(changed, []string{records.KeyTokens, records.KeyVotes}) {
		t.Fatalf("unexpected changed collections: %v", changed)
	}

	select {
	case message := <-stream:
		if message.EventType != RealtimeEventSnapshotChanged || !slices.Equal(message.Collections, changed) {
			t.Fatalf("unexpected message: %+v", message)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected snapshot change to be published")
	}
}

func TestSnapshotPollerAddressesCurrentUser(t *testing.T) {
	source := &scriptedSource{snapshot: seededSnapshot()}
	dispatcher := NewRealtimeDispatcher()
	poller, err := NewSnapshotPoller(SnapshotPollerConfig{Source: source, Dispatcher: dispatcher})
	if err != nil {
		t.Fatalf("failed to construct poller: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const did = "did:byteedu:0xF1E2D3C4B5A6F7E8D9C0B1A2F3E4D5C6B"
	stream, cleanup := dispatcher.Subscribe(ctx, did)
	defer cleanup()

	if _, err := poller.Poll(ctx); err != nil {
		t.Fatalf("baseline poll failed: %v", err)
	}
	source.update(func(snapshot *records.Snapshot) {
		user := records.DefaultProfile()
		user.DID = did
		snapshot.Authenticated = true
		snapshot.CurrentUser = &user
	})
	changed, err := poller.Poll(ctx)
	if err != nil || !slices.Equal(changed, []string{"session"}) {
		t.Fatalf("expected session change, got %v (%v)", changed, err)
	}
	select {
	case message := <-stream:
		if message.DID != did {
			t.Fatalf("expected message for %s, got %s", did, message.DID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected message for current user")
	}
}

func TestSnapshotPollerRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	source := &scriptedSource{snapshot: seededSnapshot(), err: errors.New("medium offline")}
	poller, err := NewSnapshotPoller(SnapshotPollerConfig{
		Source:     source,
		Dispatcher: NewRealtimeDispatcher(),
		Interval:   5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to construct poller: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for source.readCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("expected poller to keep polling after failures")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}
