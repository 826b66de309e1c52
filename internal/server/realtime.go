package server

import (
	"context"
	"sync"
	"time"
)

const (
	RealtimeEventSnapshotChanged = "snapshot-changed"
	realtimeEventHeartbeat       = "heartbeat"
	realtimeSourceBackend        = "byteedu-api"
)

// RealtimeMessage announces that persisted collections of a student changed.
type RealtimeMessage struct {
	DID         string
	EventType   string
	Collections []string
	Timestamp   time.Time
}

// RealtimeDispatcher fans messages out to the stream subscribers of a DID.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a stream for did until ctx ends or cleanup is called.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, did string) (<-chan RealtimeMessage, func()) {
	if did == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(did, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() { d.unregisterSubscriber(did, subscriber.id) })
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers message to every subscriber of message.DID. Slow
// subscribers with a full buffer miss the message.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.DID == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.DID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// SubscriberCount reports the number of open streams for did.
func (d *RealtimeDispatcher) SubscriberCount(did string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[did])
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(did string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[did]; !ok {
		d.subscribers[did] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[did][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(did string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[did]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, did)
		}
	}
	d.mu.Unlock()
}
