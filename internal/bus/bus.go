// Package bus provides the in-process pub/sub message bus that carries
// wire-level traffic between the runtime core and its peripherals: mode
// control requests and responses, recognized speech, and status beacons.
// Plugins running on their own goroutines communicate back into the core
// only through this bus; they never touch core state directly.
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// DefaultHistorySize is the number of recent messages retained for inspection.
	DefaultHistorySize = 256

	// DefaultChannelBuffer is the buffer size for subscriber channels.
	DefaultChannelBuffer = 64
)

// SubscriptionID identifies a single topic subscription.
type SubscriptionID string

// Subscription routes messages for one subscriber. The handler runs on a
// dedicated goroutine owned by the bus, never on the publisher's goroutine.
type Subscription struct {
	ID      SubscriptionID
	Topic   Topic
	Handler func(Message)
	ch      chan Message
	done    chan struct{}
}

// Bus is a thread-safe topic-based pub/sub hub with bounded history.
// Publishing never blocks: a subscriber whose channel is full misses the
// message rather than stalling the publisher.
type Bus struct {
	subs   map[SubscriptionID]*Subscription
	subsMu sync.RWMutex

	topicSubs   map[Topic]map[SubscriptionID]*Subscription
	topicSubsMu sync.RWMutex

	history     []Message
	historyMu   sync.RWMutex
	historySize int

	counter atomic.Uint64
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// New creates a bus with default history capacity.
func New() *Bus {
	return NewWithHistory(DefaultHistorySize)
}

// NewWithHistory creates a bus retaining up to historySize recent messages.
func NewWithHistory(historySize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		subs:        make(map[SubscriptionID]*Subscription),
		topicSubs:   make(map[Topic]map[SubscriptionID]*Subscription),
		history:     make([]Message, 0, historySize),
		historySize: historySize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Subscribe registers a handler for a topic. The handler is invoked on a
// goroutine owned by the bus. Returns an ID usable with Unsubscribe, or the
// empty ID when the bus is already closed.
func (b *Bus) Subscribe(topic Topic, handler func(Message)) SubscriptionID {
	if b.closed.Load() {
		return ""
	}

	id := SubscriptionID(fmt.Sprintf("sub_%d", b.counter.Add(1)))
	sub := &Subscription{
		ID:      id,
		Topic:   topic,
		Handler: handler,
		ch:      make(chan Message, DefaultChannelBuffer),
		done:    make(chan struct{}),
	}

	b.subsMu.Lock()
	b.subs[id] = sub
	b.subsMu.Unlock()

	b.topicSubsMu.Lock()
	if b.topicSubs[topic] == nil {
		b.topicSubs[topic] = make(map[SubscriptionID]*Subscription)
	}
	b.topicSubs[topic][id] = sub
	b.topicSubsMu.Unlock()

	b.wg.Add(1)
	go b.pump(sub)

	return id
}

// pump delivers messages to a single subscriber until it unsubscribes or the
// bus closes.
func (b *Bus) pump(sub *Subscription) {
	defer b.wg.Done()

	for {
		select {
		case msg := <-sub.ch:
			sub.Handler(msg)
		case <-sub.done:
			return
		case <-b.ctx.Done():
			return
		}
	}
}

// Unsubscribe removes a subscription by ID.
func (b *Bus) Unsubscribe(id SubscriptionID) error {
	if b.closed.Load() {
		return fmt.Errorf("bus is closed")
	}

	b.subsMu.Lock()
	sub, ok := b.subs[id]
	if !ok {
		b.subsMu.Unlock()
		return fmt.Errorf("subscription %s not found", id)
	}
	delete(b.subs, id)
	b.subsMu.Unlock()

	b.topicSubsMu.Lock()
	if subs, ok := b.topicSubs[sub.Topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(b.topicSubs, sub.Topic)
		}
	}
	b.topicSubsMu.Unlock()

	close(sub.done)
	return nil
}

// Publish delivers a message to every subscriber of its topic.
func (b *Bus) Publish(msg Message) error {
	if b.closed.Load() {
		return fmt.Errorf("bus is closed")
	}

	b.addToHistory(msg)

	b.topicSubsMu.RLock()
	for _, sub := range b.topicSubs[msg.Topic] {
		select {
		case sub.ch <- msg:
		default:
			// Subscriber is not keeping up; drop rather than block.
		}
	}
	b.topicSubsMu.RUnlock()

	return nil
}

func (b *Bus) addToHistory(msg Message) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	b.history = append(b.history, msg)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
}

// History returns a copy of the retained message history.
func (b *Bus) History() []Message {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	out := make([]Message, len(b.history))
	copy(out, b.history)
	return out
}

// SubscriberCount returns the number of active subscriptions for a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.topicSubsMu.RLock()
	defer b.topicSubsMu.RUnlock()
	return len(b.topicSubs[topic])
}

// Close shuts down the bus and stops all subscriber goroutines.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("bus already closed")
	}

	b.cancel()
	b.wg.Wait()

	b.subsMu.Lock()
	b.subs = make(map[SubscriptionID]*Subscription)
	b.subsMu.Unlock()

	b.topicSubsMu.Lock()
	b.topicSubs = make(map[Topic]map[SubscriptionID]*Subscription)
	b.topicSubsMu.Unlock()

	return nil
}
