package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// ChannelBus implements EventBus using Go channels. It is the default bus:
// events stay inside the process and die with it.
type ChannelBus struct {
	mu     sync.RWMutex
	buffer int
	topics map[string][]*channelSubscription
	closed bool
}

type channelSubscription struct {
	bus    *ChannelBus
	id     string
	topic  string
	ch     chan *domain.Message
	cancel context.CancelFunc
}

// NewChannelBus creates a channel-based event bus. Each subscriber gets its
// own buffer of bufferSize messages.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		buffer: bufferSize,
		topics: make(map[string][]*channelSubscription),
	}
}

// Publish sends a message to every subscriber of a topic. Delivery is
// non-blocking: a subscriber whose buffer is full misses the message, so a
// stalled consumer never backs up scoring.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	subs := append([]*channelSubscription(nil), b.topics[topic]...)
	b.mu.RUnlock()

	msg := &domain.Message{
		ID:        uuid.New().String(),
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UnixNano(),
	}

	for _, sub := range subs {
		select {
		case sub.ch <- msg:
		default:
			// Full buffer; drop for this subscriber.
		}
	}
	return nil
}

// Subscribe registers a handler for a topic. The handler runs on a dedicated
// goroutine until Unsubscribe, bus Close, or ctx cancellation.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSubscription{
		bus:    b,
		id:     uuid.New().String(),
		topic:  topic,
		ch:     make(chan *domain.Message, b.buffer),
		cancel: cancel,
	}
	b.topics[topic] = append(b.topics[topic], sub)

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case msg := <-sub.ch:
				if msg != nil {
					_ = handler(subCtx, msg)
				}
			}
		}
	}()

	return sub, nil
}

// Ping checks bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close cancels every subscription and rejects further use.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.topics {
		for _, sub := range subs {
			sub.cancel()
		}
	}
	b.topics = make(map[string][]*channelSubscription)
	return nil
}

// remove drops a subscription from its topic list.
func (b *ChannelBus) remove(s *channelSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[s.topic]
	for i, sub := range subs {
		if sub.id == s.id {
			b.topics[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[s.topic]) == 0 {
		delete(b.topics, s.topic)
	}
}

// Unsubscribe stops the handler and removes the subscription from the bus.
func (s *channelSubscription) Unsubscribe() error {
	s.cancel()
	s.bus.remove(s)
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.topic
}
