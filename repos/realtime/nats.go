package realtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	nc "github.com/nats-io/nats.go"
)

// NewNATS connects a session to a NATS server. Core NATS fan-out is used: every session receives
// every action, there is no queue group and no JetStream.
func NewNATS(natsURL, prefix, sessionID string, log *slog.Logger) (*Bus, error) {
	logger := watermill.NewSlogLogger(log)
	marshaler := &wmnats.NATSMarshaler{}
	options := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(1 * time.Second),
		nc.Name("tournament-desk-" + sessionID),
	}

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:         natsURL,
			NatsOptions: options,
			Marshaler:   marshaler,
			JetStream:   wmnats.JetStreamConfig{Disabled: true},
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(
		wmnats.SubscriberConfig{
			URL:            natsURL,
			NatsOptions:    options,
			Unmarshaler:    marshaler,
			JetStream:      wmnats.JetStreamConfig{Disabled: true},
			CloseTimeout:   5 * time.Second,
			AckWaitTimeout: 30 * time.Second,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("failed to create NATS subscriber: %w", err)
	}

	return newBus(publisher, subscriber, true, prefix, sessionID, log), nil
}
