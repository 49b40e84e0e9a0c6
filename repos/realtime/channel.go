package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const outboxSize = 256

var ErrClosed = errors.New("realtime channel closed")

// Event is one inbound action. Origin is the session id of the emitter.
type Event struct {
	Action  string          `json:"action"`
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

type Handler func(ctx context.Context, event Event)

// Channel is the bidirectional event bus sessions talk over.
type Channel interface {
	SessionID() string
	// Emit queues the action and returns without waiting for delivery. ack, when not nil,
	// is called from another goroutine once the transport accepted the message.
	Emit(ctx context.Context, action string, payload any, ack func()) error
	On(action string, handler Handler) error
	Close() error
}

type outgoing struct {
	action string
	msg    *message.Message
	ack    func()
}

// Bus implements Channel over a watermill publisher and subscriber.
type Bus struct {
	sessionID  string
	prefix     string
	publisher  message.Publisher
	subscriber message.Subscriber
	ownsPubSub bool
	log        *slog.Logger

	outbox chan outgoing
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func newBus(publisher message.Publisher, subscriber message.Subscriber, ownsPubSub bool, prefix, sessionID string, log *slog.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		sessionID:  sessionID,
		prefix:     prefix,
		publisher:  publisher,
		subscriber: subscriber,
		ownsPubSub: ownsPubSub,
		log:        log.With(slog.String("session_id", sessionID)),
		outbox:     make(chan outgoing, outboxSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	b.wg.Add(1)
	go b.publishLoop()
	return b
}

func (b *Bus) SessionID() string {
	return b.sessionID
}

func (b *Bus) topic(action string) string {
	return b.prefix + "." + action
}

func (b *Bus) Emit(ctx context.Context, action string, payload any, ack func()) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", action, err)
	}
	body, err := json.Marshal(Event{Action: action, Origin: b.sessionID, Payload: raw})
	if err != nil {
		return fmt.Errorf("encoding %s envelope: %w", action, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set("action", action)
	msg.Metadata.Set("origin", b.sessionID)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.outbox <- outgoing{action: action, msg: msg, ack: ack}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publishLoop publishes in emission order.
func (b *Bus) publishLoop() {
	defer b.wg.Done()
	for out := range b.outbox {
		if err := b.publisher.Publish(b.topic(out.action), out.msg); err != nil {
			b.log.Error("Failed to publish message",
				slog.String("action", out.action),
				slog.Any("error", err),
			)
			continue
		}
		b.log.Debug("Message published", slog.String("action", out.action), slog.String("uuid", out.msg.UUID))
		if out.ack != nil {
			go out.ack()
		}
	}
}

func (b *Bus) On(action string, handler Handler) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	messages, err := b.subscriber.Subscribe(b.ctx, b.topic(action))
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", action, err)
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range messages {
			b.handle(action, msg, handler)
		}
	}()
	return nil
}

func (b *Bus) handle(action string, msg *message.Message, handler Handler) {
	defer msg.Ack()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Handler panicked", slog.String("action", action), slog.Any("panic", r))
		}
	}()

	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		b.log.Warn("Dropping undecodable message", slog.String("action", action), slog.Any("error", err))
		return
	}
	handler(msg.Context(), event)
}

// Close stops subscriptions, flushes queued emissions and releases the transport if this bus owns it.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.outbox)
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	if !b.ownsPubSub {
		return nil
	}
	return errors.Join(b.publisher.Close(), b.subscriber.Close())
}

// Decode unmarshals an event payload.
func Decode[T any](event Event) (T, error) {
	var v T
	if err := json.Unmarshal(event.Payload, &v); err != nil {
		return v, fmt.Errorf("decoding %s payload: %w", event.Action, err)
	}
	return v, nil
}
